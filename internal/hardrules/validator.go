// Package hardrules implements the fixed, ordered battery of eligibility checks
// every credit application must pass before any further processing.
package hardrules

import (
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// Limits are the thresholds applied by the hard rules.
type Limits struct {
	// MinNetIncome is the lowest accepted net monthly income (inclusive)
	MinNetIncome float64

	// MaxDebtRatio is the discount ratio at which the application is rejected (exclusive)
	MaxDebtRatio float64

	// MinAge is the lowest accepted current age (inclusive)
	MinAge int

	// MaxAgeAtMaturity is the highest accepted age at loan maturity (inclusive)
	MaxAgeAtMaturity int
}

// DefaultLimits returns the production thresholds.
func DefaultLimits() Limits {
	return Limits{
		MinNetIncome:     1_750_905,
		MaxDebtRatio:     0.5,
		MinAge:           20,
		MaxAgeAtMaturity: 75,
	}
}

// LimitsFromConfig maps configured thresholds onto Limits.
func LimitsFromConfig(cfg domain.HardRulesConfig) Limits {
	return Limits{
		MinNetIncome:     cfg.MinNetIncome,
		MaxDebtRatio:     cfg.MaxDebtRatio,
		MinAge:           cfg.MinAge,
		MaxAgeAtMaturity: cfg.MaxAgeAtMaturity,
	}
}

// check is one step of the chain. fails is only called after every earlier
// check passed, so it may rely on the fields those checks guarantee present.
type check struct {
	ruleID string
	code   domain.RejectionCode
	reason string
	fails  func(c *domain.DecisionContext) bool
	detail func(c *domain.DecisionContext) map[string]any
}

// Validator runs the hard rules in order and stops at the first failure.
type Validator struct {
	limits Limits
	payers *PayerRegistry
	checks []check
}

var defaultValidator = NewValidator(DefaultLimits(), DefaultPayers())

// Validate runs the hard rules with the default limits and payers.
func Validate(c *domain.DecisionContext) domain.RuleResult {
	return defaultValidator.Validate(c)
}

// NewValidator creates a validator. A nil registry means DefaultPayers.
func NewValidator(limits Limits, payers *PayerRegistry) *Validator {
	if payers == nil {
		payers = DefaultPayers()
	}
	v := &Validator{limits: limits, payers: payers}
	v.checks = v.buildChecks()
	return v
}

// Validate returns the verdict for c.
func (v *Validator) Validate(c *domain.DecisionContext) domain.RuleResult {
	result, _ := v.Run(c)
	return result
}

// Run returns the verdict for c and how many checks were evaluated.
func (v *Validator) Run(c *domain.DecisionContext) (domain.RuleResult, int) {
	for i, chk := range v.checks {
		if !chk.fails(c) {
			continue
		}
		var detail map[string]any
		if chk.detail != nil {
			detail = chk.detail(c)
		}
		return domain.Reject(chk.ruleID, chk.code, chk.reason, detail), i + 1
	}
	return domain.Approve(), len(v.checks)
}

// Limits returns the thresholds in use.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Payers returns the payer allow-list in use.
func (v *Validator) Payers() *PayerRegistry {
	return v.payers
}

// ChecksCount returns the number of checks in the chain.
func (v *Validator) ChecksCount() int {
	return len(v.checks)
}

func (v *Validator) buildChecks() []check {
	l := v.limits
	return []check{
		{
			ruleID: domain.RuleOCR,
			code:   domain.CodeOCRInvalid,
			reason: "documents could not be validated",
			fails: func(c *domain.DecisionContext) bool {
				return !c.OCRValidationPassed
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{
					"payroll_present":  c.Payroll != nil,
					"identity_present": c.Identity != nil,
				}
			},
		},
		{
			ruleID: domain.RulePayer,
			code:   domain.CodePayerNotDetected,
			reason: "payer could not be detected",
			fails: func(c *domain.DecisionContext) bool {
				return c.Payer == nil || *c.Payer == ""
			},
		},
		{
			ruleID: domain.RulePayer,
			code:   domain.CodePayerNotAuthorized,
			reason: "payer is not authorized",
			fails: func(c *domain.DecisionContext) bool {
				return !v.payers.Authorized(*c.Payer)
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{
					"payer":      *c.Payer,
					"normalized": NormalizePayer(*c.Payer),
				}
			},
		},
		{
			ruleID: domain.RuleIncomeFound,
			code:   domain.CodeIncomeNotDetected,
			reason: "net income could not be detected",
			fails: func(c *domain.DecisionContext) bool {
				return c.NetMonthlyIncome == nil
			},
		},
		{
			ruleID: domain.RuleIncomeFloor,
			code:   domain.CodeInsufficientIncome,
			reason: "net income is below the minimum",
			fails: func(c *domain.DecisionContext) bool {
				return *c.NetMonthlyIncome < l.MinNetIncome
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{"net_monthly_income": *c.NetMonthlyIncome, "minimum": l.MinNetIncome}
			},
		},
		{
			ruleID: domain.RuleDebtRatio,
			code:   domain.CodeDeductionsNotDetected,
			reason: "payroll deductions could not be computed",
			fails: func(c *domain.DecisionContext) bool {
				return c.PayrollDiscountRatio == nil
			},
		},
		{
			ruleID: domain.RuleDebtRatio,
			code:   domain.CodeDebtRatioExceeded,
			reason: "current debt ratio exceeds the limit",
			fails: func(c *domain.DecisionContext) bool {
				return *c.PayrollDiscountRatio >= l.MaxDebtRatio
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{"payroll_discount_ratio": *c.PayrollDiscountRatio, "limit": l.MaxDebtRatio}
			},
		},
		{
			ruleID: domain.RuleAge,
			code:   domain.CodeAgeNotDetected,
			reason: "age could not be validated",
			fails: func(c *domain.DecisionContext) bool {
				return c.CurrentAge == nil
			},
		},
		{
			ruleID: domain.RuleAge,
			code:   domain.CodeMaturityAgeUndefined,
			reason: "age at maturity could not be computed",
			fails: func(c *domain.DecisionContext) bool {
				return c.AgeAtMaturity == nil
			},
		},
		{
			ruleID: domain.RuleAge,
			code:   domain.CodeMinimumAgeNotMet,
			reason: "applicant is below the minimum age",
			fails: func(c *domain.DecisionContext) bool {
				return *c.CurrentAge < l.MinAge
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{"current_age": *c.CurrentAge, "minimum": l.MinAge}
			},
		},
		{
			ruleID: domain.RuleMaturityLimit,
			code:   domain.CodeMaturityAgeExceeded,
			reason: "age at maturity exceeds the maximum",
			fails: func(c *domain.DecisionContext) bool {
				return *c.AgeAtMaturity > l.MaxAgeAtMaturity
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				return map[string]any{"age_at_maturity": *c.AgeAtMaturity, "maximum": l.MaxAgeAtMaturity}
			},
		},
		{
			// Absent bureau data is not delinquency.
			ruleID: domain.RuleDelinquency,
			code:   domain.CodeActiveDelinquency,
			reason: "applicant has active delinquency",
			fails: func(c *domain.DecisionContext) bool {
				return c.ActiveDelinquency != nil && *c.ActiveDelinquency
			},
			detail: func(c *domain.DecisionContext) map[string]any {
				if c.Bureau == nil {
					return nil
				}
				return map[string]any{"obligations_in_arrears": c.Bureau.ObligationsInArrears}
			},
		},
	}
}
