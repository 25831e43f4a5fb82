package hardrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// passingContext returns a context that satisfies every hard rule.
func passingContext() *domain.DecisionContext {
	return &domain.DecisionContext{
		Payroll:              &domain.PayrollExtraction{},
		Identity:             &domain.IdentityExtraction{Valid: true},
		Bureau:               &domain.BureauReport{Score: 720},
		NetMonthlyIncome:     ptr(4_900_000.0),
		PayrollDiscountRatio: ptr(0.183),
		CurrentAge:           ptr(58),
		AgeAtMaturity:        ptr(64),
		ActiveDelinquency:    ptr(false),
		HadChargeOffs:        ptr(false),
		BureauScore:          ptr(720),
		OCRValidationPassed:  true,
		Payer:                ptr("FONDO_NACIONAL_MAGISTERIO"),
	}
}

func TestValidateApproves(t *testing.T) {
	result := Validate(passingContext())

	assert.True(t, result.Approved)
	assert.Empty(t, result.RuleID)
	assert.Empty(t, result.RejectionCode)
	assert.Empty(t, result.Reason)
	assert.Nil(t, result.Detail)
}

func TestValidateSingleFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.DecisionContext)
		rule   string
		code   domain.RejectionCode
	}{
		{"OCRFailed", func(c *domain.DecisionContext) { c.OCRValidationPassed = false }, domain.RuleOCR, domain.CodeOCRInvalid},
		{"PayerAbsent", func(c *domain.DecisionContext) { c.Payer = nil }, domain.RulePayer, domain.CodePayerNotDetected},
		{"PayerEmpty", func(c *domain.DecisionContext) { c.Payer = ptr("") }, domain.RulePayer, domain.CodePayerNotDetected},
		{"PayerUnknown", func(c *domain.DecisionContext) { c.Payer = ptr("EMPRESA_PRIVADA_SAS") }, domain.RulePayer, domain.CodePayerNotAuthorized},
		{"IncomeAbsent", func(c *domain.DecisionContext) { c.NetMonthlyIncome = nil }, domain.RuleIncomeFound, domain.CodeIncomeNotDetected},
		{"IncomeLow", func(c *domain.DecisionContext) { c.NetMonthlyIncome = ptr(1_000_000.0) }, domain.RuleIncomeFloor, domain.CodeInsufficientIncome},
		{"RatioAbsent", func(c *domain.DecisionContext) { c.PayrollDiscountRatio = nil }, domain.RuleDebtRatio, domain.CodeDeductionsNotDetected},
		{"RatioHigh", func(c *domain.DecisionContext) { c.PayrollDiscountRatio = ptr(0.7) }, domain.RuleDebtRatio, domain.CodeDebtRatioExceeded},
		{"AgeAbsent", func(c *domain.DecisionContext) { c.CurrentAge = nil }, domain.RuleAge, domain.CodeAgeNotDetected},
		{"MaturityAbsent", func(c *domain.DecisionContext) { c.AgeAtMaturity = nil }, domain.RuleAge, domain.CodeMaturityAgeUndefined},
		{"TooYoung", func(c *domain.DecisionContext) { c.CurrentAge = ptr(18) }, domain.RuleAge, domain.CodeMinimumAgeNotMet},
		{"TooOldAtMaturity", func(c *domain.DecisionContext) { c.AgeAtMaturity = ptr(80) }, domain.RuleMaturityLimit, domain.CodeMaturityAgeExceeded},
		{"Delinquent", func(c *domain.DecisionContext) { c.ActiveDelinquency = ptr(true) }, domain.RuleDelinquency, domain.CodeActiveDelinquency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := passingContext()
			tt.mutate(c)

			result := Validate(c)

			require.False(t, result.Approved)
			assert.Equal(t, tt.rule, result.RuleID)
			assert.Equal(t, tt.code, result.RejectionCode)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestValidateOrder(t *testing.T) {
	t.Run("OCRBeforeEverything", func(t *testing.T) {
		c := &domain.DecisionContext{OCRValidationPassed: false, ActiveDelinquency: ptr(true)}
		assert.Equal(t, domain.CodeOCRInvalid, Validate(c).RejectionCode)
	})

	t.Run("PayerBeforeIncome", func(t *testing.T) {
		c := passingContext()
		c.Payer = ptr("UNKNOWN")
		c.NetMonthlyIncome = nil
		assert.Equal(t, domain.CodePayerNotAuthorized, Validate(c).RejectionCode)
	})

	t.Run("IncomeBeforeDebtRatio", func(t *testing.T) {
		c := passingContext()
		c.NetMonthlyIncome = ptr(100.0)
		c.PayrollDiscountRatio = ptr(0.9)
		assert.Equal(t, domain.CodeInsufficientIncome, Validate(c).RejectionCode)
	})

	t.Run("DebtRatioBeforeAge", func(t *testing.T) {
		c := passingContext()
		c.PayrollDiscountRatio = ptr(0.9)
		c.CurrentAge = nil
		assert.Equal(t, domain.CodeDebtRatioExceeded, Validate(c).RejectionCode)
	})

	t.Run("MaturityUndefinedBeforeMinimumAge", func(t *testing.T) {
		c := passingContext()
		c.CurrentAge = ptr(15)
		c.AgeAtMaturity = nil
		assert.Equal(t, domain.CodeMaturityAgeUndefined, Validate(c).RejectionCode)
	})

	t.Run("MinimumAgeBeforeMaturityCeiling", func(t *testing.T) {
		c := passingContext()
		c.CurrentAge = ptr(15)
		c.AgeAtMaturity = ptr(90)
		assert.Equal(t, domain.CodeMinimumAgeNotMet, Validate(c).RejectionCode)
	})

	t.Run("MaturityBeforeDelinquency", func(t *testing.T) {
		c := passingContext()
		c.AgeAtMaturity = ptr(76)
		c.ActiveDelinquency = ptr(true)
		assert.Equal(t, domain.CodeMaturityAgeExceeded, Validate(c).RejectionCode)
	})
}

func TestValidateBoundaries(t *testing.T) {
	t.Run("IncomeAtMinimumPasses", func(t *testing.T) {
		c := passingContext()
		c.NetMonthlyIncome = ptr(1_750_905.0)
		assert.True(t, Validate(c).Approved)
	})

	t.Run("IncomeOneBelowFails", func(t *testing.T) {
		c := passingContext()
		c.NetMonthlyIncome = ptr(1_750_904.0)
		assert.Equal(t, domain.CodeInsufficientIncome, Validate(c).RejectionCode)
	})

	t.Run("RatioAtLimitFails", func(t *testing.T) {
		c := passingContext()
		c.PayrollDiscountRatio = ptr(0.5)
		assert.Equal(t, domain.CodeDebtRatioExceeded, Validate(c).RejectionCode)
	})

	t.Run("RatioJustBelowPasses", func(t *testing.T) {
		c := passingContext()
		c.PayrollDiscountRatio = ptr(0.4999)
		assert.True(t, Validate(c).Approved)
	})

	t.Run("ZeroRatioPasses", func(t *testing.T) {
		c := passingContext()
		c.PayrollDiscountRatio = ptr(0.0)
		assert.True(t, Validate(c).Approved)
	})

	t.Run("AgeAtMinimumPasses", func(t *testing.T) {
		c := passingContext()
		c.CurrentAge = ptr(20)
		assert.True(t, Validate(c).Approved)
	})

	t.Run("AgeBelowMinimumFails", func(t *testing.T) {
		c := passingContext()
		c.CurrentAge = ptr(19)
		assert.Equal(t, domain.CodeMinimumAgeNotMet, Validate(c).RejectionCode)
	})

	t.Run("MaturityAtMaximumPasses", func(t *testing.T) {
		c := passingContext()
		c.AgeAtMaturity = ptr(75)
		assert.True(t, Validate(c).Approved)
	})

	t.Run("MaturityAboveMaximumFails", func(t *testing.T) {
		c := passingContext()
		c.AgeAtMaturity = ptr(76)
		assert.Equal(t, domain.CodeMaturityAgeExceeded, Validate(c).RejectionCode)
	})
}

func TestValidateWithoutBureau(t *testing.T) {
	c := passingContext()
	c.Bureau = nil
	c.ActiveDelinquency = nil
	c.HadChargeOffs = nil
	c.BureauScore = nil

	assert.True(t, Validate(c).Approved)
}

func TestValidateDetail(t *testing.T) {
	c := passingContext()
	c.NetMonthlyIncome = ptr(1_000_000.0)

	result := Validate(c)

	require.NotNil(t, result.Detail)
	assert.Equal(t, 1_000_000.0, result.Detail["net_monthly_income"])
	assert.Equal(t, 1_750_905.0, result.Detail["minimum"])
}

func TestRunCountsEvaluatedChecks(t *testing.T) {
	v := NewValidator(DefaultLimits(), nil)

	_, n := v.Run(passingContext())
	assert.Equal(t, v.ChecksCount(), n)
	assert.Equal(t, 12, n)

	_, n = v.Run(&domain.DecisionContext{})
	assert.Equal(t, 1, n)
}

func TestCustomLimits(t *testing.T) {
	limits := DefaultLimits()
	limits.MinNetIncome = 5_000_000
	v := NewValidator(limits, NewPayerRegistry([]string{"ACME"}))

	c := passingContext()
	assert.Equal(t, domain.CodePayerNotAuthorized, v.Validate(c).RejectionCode)

	c.Payer = ptr("acme")
	assert.Equal(t, domain.CodeInsufficientIncome, v.Validate(c).RejectionCode)
	assert.Equal(t, limits, v.Limits())
}

func TestValidateIsDeterministic(t *testing.T) {
	c := passingContext()
	c.PayrollDiscountRatio = ptr(0.6)

	first := Validate(c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate(c))
	}
}

func TestLimitsFromConfig(t *testing.T) {
	cfg := domain.DefaultConfig().HardRules
	assert.Equal(t, DefaultLimits(), LimitsFromConfig(cfg))
}
