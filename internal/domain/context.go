package domain

// DecisionContext is the canonical evaluation record for one application.
// Every derived field is a pointer: nil means the input needed to compute it
// was absent, which is never the same as zero.
type DecisionContext struct {
	Application ApplicationRequest  `json:"application"`
	Payroll     *PayrollExtraction  `json:"payroll,omitempty"`
	Identity    *IdentityExtraction `json:"identity,omitempty"`
	Bureau      *BureauReport       `json:"bureau,omitempty"`

	NetMonthlyIncome     *float64 `json:"netMonthlyIncome"`
	PayrollDiscountRatio *float64 `json:"payrollDiscountRatio"`
	CurrentAge           *int     `json:"currentAge"`
	AgeAtMaturity        *int     `json:"ageAtMaturity"`
	ActiveDelinquency    *bool    `json:"activeDelinquency"`
	HadChargeOffs        *bool    `json:"hadChargeOffs"`
	BureauScore          *int     `json:"bureauScore"`
	OCRValidationPassed  bool     `json:"ocrValidationPassed"`
	Payer                *string  `json:"payer"`
}

// ModelVariables are the context values handed to a downstream scoring model.
type ModelVariables struct {
	PayrollDiscountRatio  float64 `json:"payrollDiscountRatio"`
	NetMonthlyIncome      float64 `json:"netMonthlyIncome"`
	BureauScore           int     `json:"bureauScore"`
	HistoricalDaysPastDue int     `json:"historicalDaysPastDue"`
	TenureYears           int     `json:"tenureYears"`
	Age                   int     `json:"age"`
	TermMonths            int     `json:"termMonths"`
}

// ModelVariables extracts the model inputs. The second result is false when
// any of them is absent, in which case the returned value must not be used.
func (c *DecisionContext) ModelVariables() (ModelVariables, bool) {
	if c.PayrollDiscountRatio == nil || c.NetMonthlyIncome == nil ||
		c.BureauScore == nil || c.CurrentAge == nil ||
		c.Bureau == nil || c.Application.RequestedTermMonths == nil {
		return ModelVariables{}, false
	}
	return ModelVariables{
		PayrollDiscountRatio:  *c.PayrollDiscountRatio,
		NetMonthlyIncome:      *c.NetMonthlyIncome,
		BureauScore:           *c.BureauScore,
		HistoricalDaysPastDue: c.Bureau.HistoricalDaysPastDue,
		TenureYears:           c.Application.TenureYears,
		Age:                   *c.CurrentAge,
		TermMonths:            *c.Application.RequestedTermMonths,
	}, true
}
