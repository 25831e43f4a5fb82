// Package decisioncontext turns raw application, document and bureau inputs
// into the canonical DecisionContext consumed by the rules.
package decisioncontext

import (
	"math"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// Build derives a DecisionContext from the raw inputs. Any of payroll,
// identity and bureau may be nil; fields that depend on a missing input are
// left nil. Build never fails and never mutates its arguments.
func Build(
	app domain.ApplicationRequest,
	payroll *domain.PayrollExtraction,
	identity *domain.IdentityExtraction,
	bureau *domain.BureauReport,
) domain.DecisionContext {
	c := domain.DecisionContext{
		Application: app.WithoutDocuments(),
	}

	// Income and payer
	if payroll != nil {
		p := *payroll
		c.Payroll = &p
		c.NetMonthlyIncome = ptr(p.NetIncome)
		c.Payer = ptr(p.DetectedPayer)
		if p.GrossIncome > 0 {
			c.PayrollDiscountRatio = ptr(p.TotalDeductions() / p.GrossIncome)
		}
	}

	// Age
	if identity != nil {
		id := *identity
		c.Identity = &id
		if id.ComputedAge != nil {
			c.CurrentAge = ptr(*id.ComputedAge)
		}
	}
	if c.CurrentAge != nil && app.RequestedTermMonths != nil {
		c.AgeAtMaturity = ptr(AgeAtMaturity(*c.CurrentAge, *app.RequestedTermMonths))
	}

	// Bureau
	if bureau != nil {
		b := *bureau
		c.Bureau = &b
		c.ActiveDelinquency = ptr(b.ObligationsInArrears > 0)
		c.HadChargeOffs = ptr(b.HistoricalChargeOffs)
		c.BureauScore = ptr(b.Score)
	}

	// Presence only; validity is not checked here.
	c.OCRValidationPassed = payroll != nil && identity != nil

	return c
}

// AgeAtMaturity projects an age to the end of a term given in months.
func AgeAtMaturity(age, termMonths int) int {
	return int(math.Floor(float64(age) + float64(termMonths)/12))
}

func ptr[T any](v T) *T {
	return &v
}
