// Package evaluator composes context building and rule validation into a
// single credit evaluation.
package evaluator

import (
	"github.com/santiagomg2003-png/motor-credito/internal/decisioncontext"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/hardrules"
)

// Evaluate builds the decision context and runs the hard rules with the
// default limits and payer allow-list.
func Evaluate(
	app domain.ApplicationRequest,
	payroll *domain.PayrollExtraction,
	identity *domain.IdentityExtraction,
	bureau *domain.BureauReport,
) domain.RuleResult {
	c := decisioncontext.Build(app, payroll, identity, bureau)
	return hardrules.Validate(&c)
}

// Evaluator runs the hard rules with a configured validator.
type Evaluator struct {
	validator *hardrules.Validator
}

// New creates an Evaluator. A nil validator uses the defaults.
func New(validator *hardrules.Validator) *Evaluator {
	if validator == nil {
		validator = hardrules.NewValidator(hardrules.DefaultLimits(), nil)
	}
	return &Evaluator{validator: validator}
}

// Evaluate returns the hard rule verdict for the inputs.
func (e *Evaluator) Evaluate(
	app domain.ApplicationRequest,
	payroll *domain.PayrollExtraction,
	identity *domain.IdentityExtraction,
	bureau *domain.BureauReport,
) domain.RuleResult {
	result, _ := e.Decide(app, payroll, identity, bureau)
	return result
}

// Decide is Evaluate that also returns the context it built, so an approved
// context can be handed on unchanged.
func (e *Evaluator) Decide(
	app domain.ApplicationRequest,
	payroll *domain.PayrollExtraction,
	identity *domain.IdentityExtraction,
	bureau *domain.BureauReport,
) (domain.RuleResult, *domain.DecisionContext) {
	c := decisioncontext.Build(app, payroll, identity, bureau)
	return e.validator.Validate(&c), &c
}

// Validator returns the validator in use.
func (e *Evaluator) Validator() *hardrules.Validator {
	return e.validator
}
