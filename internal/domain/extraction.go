package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidExtraction is returned when a provider result breaks its invariants.
var ErrInvalidExtraction = errors.New("invalid extraction")

// PayrollExtraction is the structured income data read from a payslip.
// All amounts are in the same currency unit.
type PayrollExtraction struct {
	GrossIncome          float64 `json:"grossIncome"`
	LegalDeductions      float64 `json:"legalDeductions"`
	OtherDeductions      float64 `json:"otherDeductions"`
	NetIncome            float64 `json:"netIncome"`
	DetectedPayer        string  `json:"detectedPayer"`
	DetectedContractType *string `json:"detectedContractType,omitempty"`
}

// TotalDeductions is the sum of legal and other deductions.
func (p *PayrollExtraction) TotalDeductions() float64 {
	return p.LegalDeductions + p.OtherDeductions
}

// Validate checks that net income and deductions are non-negative.
func (p *PayrollExtraction) Validate() error {
	if p.NetIncome < 0 {
		return fmt.Errorf("%w: netIncome must not be negative", ErrInvalidExtraction)
	}
	if p.LegalDeductions < 0 || p.OtherDeductions < 0 {
		return fmt.Errorf("%w: deductions must not be negative", ErrInvalidExtraction)
	}
	return nil
}

// IdentityExtraction is the structured identity data read from an ID document.
// A nil *IdentityExtraction means extraction failed; Valid=false means the
// document was read but is not usable.
type IdentityExtraction struct {
	DocumentNumber string       `json:"documentNumber"`
	DocumentType   DocumentType `json:"documentType"`
	FirstNames     string       `json:"firstNames"`
	LastNames      string       `json:"lastNames"`
	BirthDate      *time.Time   `json:"birthDate,omitempty"`
	ComputedAge    *int         `json:"computedAge,omitempty"`
	Sex            *string      `json:"sex,omitempty"`
	Nationality    *string      `json:"nationality,omitempty"`
	Valid          bool         `json:"valid"`
}

// BureauReport is the credit history summary returned by the bureau.
type BureauReport struct {
	Score                 int  `json:"score"`
	HistoricalDaysPastDue int  `json:"historicalDaysPastDue"`
	ObligationsInArrears  int  `json:"obligationsInArrears"`
	HistoricalChargeOffs  bool `json:"historicalChargeOffs"`
	RecentlyNormalized    bool `json:"recentlyNormalized"`
}

// PayrollExtractor reads a payslip image.
// It returns nil, nil when nothing could be extracted.
type PayrollExtractor interface {
	ExtractPayroll(ctx context.Context, document string) (*PayrollExtraction, error)
}

// IdentityExtractor reads an identity document image.
// It returns nil, nil when nothing could be extracted.
type IdentityExtractor interface {
	ExtractIdentity(ctx context.Context, document string) (*IdentityExtraction, error)
}

// ApplicationPayrollExtractor is an optional PayrollExtractor extension for
// providers that read the payslip alongside the application that submitted it.
type ApplicationPayrollExtractor interface {
	ExtractPayrollFor(ctx context.Context, app *ApplicationRequest) (*PayrollExtraction, error)
}

// ApplicationIdentityExtractor is the IdentityExtractor counterpart.
type ApplicationIdentityExtractor interface {
	ExtractIdentityFor(ctx context.Context, app *ApplicationRequest) (*IdentityExtraction, error)
}

// BureauLookup fetches the credit bureau report for a document number.
// It returns nil, nil when the bureau has no report.
type BureauLookup interface {
	LookupReport(ctx context.Context, documentNumber string) (*BureauReport, error)
}

// ProvidersConfig selects and configures the external data providers.
type ProvidersConfig struct {
	// Mode is "mock" (fixed fixtures) or "http" (bureau over HTTP, OCR mocked)
	Mode string `json:"mode" yaml:"mode"`

	BureauURL     string        `json:"bureauUrl" yaml:"bureauUrl"`
	BureauTimeout time.Duration `json:"bureauTimeout" yaml:"bureauTimeout"`
	BureauTTL     time.Duration `json:"bureauTtl" yaml:"bureauTtl"`

	// GatherTimeout bounds the concurrent fetch of all inputs for one application
	GatherTimeout time.Duration `json:"gatherTimeout" yaml:"gatherTimeout"`
}
