// Package mock provides deterministic document and bureau providers for
// development and tests. No real OCR or bureau integration exists yet.
package mock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// Payroll returns a fixed payroll extraction. A document that is base64 JSON
// of a PayrollExtraction is returned as-is instead, so callers can drive
// specific scenarios through the normal request path.
type Payroll struct {
	Fixture domain.PayrollExtraction
}

// NewPayroll returns the standard pensioner payslip fixture.
func NewPayroll() *Payroll {
	contract := "PENSIONADO"
	return &Payroll{Fixture: domain.PayrollExtraction{
		GrossIncome:          6_000_000,
		LegalDeductions:      900_000,
		OtherDeductions:      200_000,
		NetIncome:            4_900_000,
		DetectedPayer:        "FONDO_NACIONAL_MAGISTERIO",
		DetectedContractType: &contract,
	}}
}

// ExtractPayroll implements domain.PayrollExtractor.
func (p *Payroll) ExtractPayroll(ctx context.Context, document string) (*domain.PayrollExtraction, error) {
	out, _, err := p.extract(ctx, document)
	return out, err
}

// ExtractPayrollFor implements domain.ApplicationPayrollExtractor. The
// fixture reports the payer the applicant declared, as a real payslip of that
// payer would.
func (p *Payroll) ExtractPayrollFor(ctx context.Context, app *domain.ApplicationRequest) (*domain.PayrollExtraction, error) {
	out, fromFixture, err := p.extract(ctx, app.PayrollDocument)
	if err != nil || out == nil {
		return out, err
	}
	if fromFixture && app.Payer != "" {
		out.DetectedPayer = app.Payer
	}
	return out, nil
}

func (p *Payroll) extract(ctx context.Context, document string) (*domain.PayrollExtraction, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if document == AbsentDocument {
		return nil, false, nil
	}

	var decoded domain.PayrollExtraction
	if decodeFixture(document, &decoded) {
		return &decoded, false, nil
	}

	out := p.Fixture
	return &out, true, nil
}

// Identity returns a fixed identity extraction, or a base64 JSON override.
type Identity struct {
	Fixture domain.IdentityExtraction
}

// NewIdentity returns a valid national ID reporting an age of 58.
func NewIdentity() *Identity {
	birth := time.Date(1966, 5, 10, 0, 0, 0, 0, time.UTC)
	age := 58
	return &Identity{Fixture: domain.IdentityExtraction{
		DocumentType: domain.DocumentNationalID,
		FirstNames:   "MOCK",
		LastNames:    "MOCK",
		BirthDate:    &birth,
		ComputedAge:  &age,
		Valid:        true,
	}}
}

// ExtractIdentity implements domain.IdentityExtractor.
func (i *Identity) ExtractIdentity(ctx context.Context, document string) (*domain.IdentityExtraction, error) {
	out, _, err := i.extract(ctx, document)
	return out, err
}

// ExtractIdentityFor implements domain.ApplicationIdentityExtractor. The
// fixture carries the applicant's document number and type.
func (i *Identity) ExtractIdentityFor(ctx context.Context, app *domain.ApplicationRequest) (*domain.IdentityExtraction, error) {
	out, fromFixture, err := i.extract(ctx, app.IdentityDocument)
	if err != nil || out == nil || !fromFixture {
		return out, err
	}
	if app.DocumentNumber != "" {
		out.DocumentNumber = app.DocumentNumber
	}
	if app.DocumentType != "" {
		out.DocumentType = app.DocumentType
	}
	return out, nil
}

func (i *Identity) extract(ctx context.Context, document string) (*domain.IdentityExtraction, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if document == AbsentDocument {
		return nil, false, nil
	}

	var decoded domain.IdentityExtraction
	if decodeFixture(document, &decoded) {
		return &decoded, false, nil
	}

	out := i.Fixture
	return &out, true, nil
}

// AbsentDocument is base64 JSON null. Document mocks treat it as a failed
// extraction.
const AbsentDocument = "bnVsbA=="

// Identity scenarios.
const (
	ScenarioOK         = "ok"
	ScenarioMinor      = "minor"
	ScenarioUnreadable = "unreadable"
	ScenarioFailed     = "failed"
)

// ScenarioIdentity simulates the outcomes an identity OCR can produce.
type ScenarioIdentity struct {
	Scenario string
}

// ExtractIdentity implements domain.IdentityExtractor.
func (s *ScenarioIdentity) ExtractIdentity(ctx context.Context, _ string) (*domain.IdentityExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sex, nationality := "M", "CO"
	switch s.Scenario {
	case ScenarioFailed:
		return nil, nil
	case ScenarioUnreadable:
		return &domain.IdentityExtraction{DocumentType: domain.DocumentNationalID, Valid: false}, nil
	case ScenarioMinor:
		birth := time.Date(2010, 5, 20, 0, 0, 0, 0, time.UTC)
		age := 14
		return &domain.IdentityExtraction{
			DocumentNumber: "1234567890",
			DocumentType:   domain.DocumentNationalID,
			FirstNames:     "Juan",
			LastNames:      "Pérez",
			BirthDate:      &birth,
			ComputedAge:    &age,
			Sex:            &sex,
			Nationality:    &nationality,
			Valid:          true,
		}, nil
	default:
		birth := time.Date(1995, 3, 15, 0, 0, 0, 0, time.UTC)
		age := 29
		return &domain.IdentityExtraction{
			DocumentNumber: "1234567890",
			DocumentType:   domain.DocumentNationalID,
			FirstNames:     "Juan",
			LastNames:      "Pérez",
			BirthDate:      &birth,
			ComputedAge:    &age,
			Sex:            &sex,
			Nationality:    &nationality,
			Valid:          true,
		}, nil
	}
}

// Bureau returns reports by document number, falling back to Default.
type Bureau struct {
	mu      sync.RWMutex
	reports map[string]*domain.BureauReport
	Default *domain.BureauReport
	calls   int
}

// NewBureau returns a bureau whose default report is a clean 720 score.
func NewBureau() *Bureau {
	return &Bureau{
		reports: make(map[string]*domain.BureauReport),
		Default: &domain.BureauReport{Score: 720},
	}
}

// Set registers the report for a document number. A nil report means the
// bureau has no data for it.
func (b *Bureau) Set(documentNumber string, report *domain.BureauReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[documentNumber] = report
}

// LookupReport implements domain.BureauLookup.
func (b *Bureau) LookupReport(ctx context.Context, documentNumber string) (*domain.BureauReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.calls++
	report, ok := b.reports[documentNumber]
	b.mu.Unlock()

	if !ok {
		report = b.Default
	}
	if report == nil {
		return nil, nil
	}
	out := *report
	return &out, nil
}

// Calls returns how many lookups were made.
func (b *Bureau) Calls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls
}

func decodeFixture(document string, v any) bool {
	if document == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(document)
	if err != nil {
		return false
	}
	return len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, v) == nil
}
