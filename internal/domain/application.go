package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidApplication is returned when an application fails structural validation.
var ErrInvalidApplication = errors.New("invalid application")

// DocumentType is the kind of identity document presented by the applicant.
type DocumentType string

const (
	DocumentNationalID  DocumentType = "CC" // cédula de ciudadanía
	DocumentForeignerID DocumentType = "CE" // cédula de extranjería
	DocumentMinorID     DocumentType = "TI" // tarjeta de identidad
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentNationalID, DocumentForeignerID, DocumentMinorID:
		return true
	}
	return false
}

// ApplicationRequest is the credit application as submitted by the applicant.
// Income, payer and tenure are declared values; the payroll extraction is the
// source of truth for the rules.
type ApplicationRequest struct {
	// Identification
	DocumentNumber string       `json:"documentNumber" yaml:"documentNumber"`
	DocumentType   DocumentType `json:"documentType" yaml:"documentType"`

	// Applicant profile
	ClientType string `json:"clientType,omitempty" yaml:"clientType,omitempty"`
	Payer      string `json:"payer" yaml:"payer"`

	// Declared financials
	DeclaredGrossIncome float64 `json:"declaredGrossIncome" yaml:"declaredGrossIncome"`

	// Declared job tenure
	TenureYears       int  `json:"tenureYears" yaml:"tenureYears"`
	TenureExtraMonths *int `json:"tenureExtraMonths,omitempty" yaml:"tenureExtraMonths,omitempty"`

	// Requested credit
	RequestedAmount     float64 `json:"requestedAmount" yaml:"requestedAmount"`
	RequestedTermMonths *int    `json:"requestedTermMonths,omitempty" yaml:"requestedTermMonths,omitempty"`

	// Documents, base64 encoded
	PayrollDocument  string `json:"payrollDocument,omitempty" yaml:"-"`
	IdentityDocument string `json:"identityDocument,omitempty" yaml:"-"`
}

// Validate checks the structural invariants of an application.
// It does not apply any eligibility rule.
func (a *ApplicationRequest) Validate() error {
	if a.DocumentNumber == "" {
		return fmt.Errorf("%w: documentNumber is required", ErrInvalidApplication)
	}
	if a.DocumentType != "" && !a.DocumentType.Valid() {
		return fmt.Errorf("%w: unknown documentType %q", ErrInvalidApplication, a.DocumentType)
	}
	if a.TenureYears < 0 {
		return fmt.Errorf("%w: tenureYears must not be negative", ErrInvalidApplication)
	}
	if m := a.TenureExtraMonths; m != nil && (*m < 0 || *m > 11) {
		return fmt.Errorf("%w: tenureExtraMonths must be between 0 and 11", ErrInvalidApplication)
	}
	if t := a.RequestedTermMonths; t != nil && *t < 0 {
		return fmt.Errorf("%w: requestedTermMonths must not be negative", ErrInvalidApplication)
	}
	if a.RequestedAmount < 0 {
		return fmt.Errorf("%w: requestedAmount must not be negative", ErrInvalidApplication)
	}
	if a.DeclaredGrossIncome < 0 {
		return fmt.Errorf("%w: declaredGrossIncome must not be negative", ErrInvalidApplication)
	}
	return nil
}

// TenureMonths returns the declared job tenure in whole months.
func (a *ApplicationRequest) TenureMonths() int {
	months := a.TenureYears * 12
	if a.TenureExtraMonths != nil {
		months += *a.TenureExtraMonths
	}
	return months
}

// WithoutDocuments returns a copy of the request with the document payloads dropped.
func (a ApplicationRequest) WithoutDocuments() ApplicationRequest {
	a.PayrollDocument = ""
	a.IdentityDocument = ""
	return a
}

// Application is a received application as stored by the repository.
type Application struct {
	ID        string             `json:"id"`
	TenantID  string             `json:"tenantId"`
	Request   ApplicationRequest `json:"request"`
	CreatedAt time.Time          `json:"createdAt"`
}
