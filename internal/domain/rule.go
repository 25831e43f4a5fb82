package domain

import "time"

// RuleResult is the verdict of a rule chain.
// When Approved is false, RuleID, RejectionCode and Reason identify the first
// rule that failed.
type RuleResult struct {
	Approved      bool           `json:"approved"`
	RuleID        string         `json:"ruleId,omitempty"`
	RejectionCode RejectionCode  `json:"rejectionCode,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Approve returns an approving result.
func Approve() RuleResult {
	return RuleResult{Approved: true}
}

// Reject returns a rejecting result.
func Reject(ruleID string, code RejectionCode, reason string, detail map[string]any) RuleResult {
	return RuleResult{
		RuleID:        ruleID,
		RejectionCode: code,
		Reason:        reason,
		Detail:        detail,
	}
}

// Hard rule identifiers.
const (
	RuleOCR           = "HR-01"
	RulePayer         = "HR-02"
	RuleIncomeFound   = "HR-03"
	RuleIncomeFloor   = "HR-04"
	RuleAge           = "HR-05"
	RuleDelinquency   = "HR-06"
	RuleDebtRatio     = "HR-07"
	RuleMaturityLimit = "HR-08"
)

// RejectionCode is the machine-readable reason for a rejection.
type RejectionCode string

const (
	CodeOCRInvalid            RejectionCode = "OCR_INVALID"
	CodePayerNotDetected      RejectionCode = "PAYER_NOT_DETECTED"
	CodePayerNotAuthorized    RejectionCode = "PAYER_NOT_AUTHORIZED"
	CodeIncomeNotDetected     RejectionCode = "INCOME_NOT_DETECTED"
	CodeInsufficientIncome    RejectionCode = "INSUFFICIENT_INCOME"
	CodeDeductionsNotDetected RejectionCode = "DEDUCTIONS_NOT_DETECTED"
	CodeDebtRatioExceeded     RejectionCode = "DEBT_RATIO_EXCEEDED"
	CodeAgeNotDetected        RejectionCode = "AGE_NOT_DETECTED"
	CodeMaturityAgeUndefined  RejectionCode = "MATURITY_AGE_UNDEFINED"
	CodeMinimumAgeNotMet      RejectionCode = "MINIMUM_AGE_NOT_MET"
	CodeMaturityAgeExceeded   RejectionCode = "MATURITY_AGE_EXCEEDED"
	CodeActiveDelinquency     RejectionCode = "ACTIVE_DELINQUENCY"
)

// PolicyRule is an operator-configured eligibility gate written in CEL.
// It runs after the hard rules; the application is rejected when the
// expression evaluates to true.
type PolicyRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the decision context variables, must yield a bool
	Expression string `json:"expression"`

	RejectionCode RejectionCode `json:"rejectionCode"`
	Reason        string        `json:"reason"`

	// Lower priority runs first
	Priority int `json:"priority"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// GlobalTenantID owns policy rules that apply to every tenant.
const GlobalTenantID = "*"
