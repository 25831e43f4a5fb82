package domain

import (
	"time"
)

// Evaluation is the complete, persisted outcome of evaluating one application.
type Evaluation struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	ApplicationID  string    `json:"applicationId"`
	DocumentNumber string    `json:"documentNumber"`
	Status         string    `json:"status"` // "APPROVED" or "REJECTED"
	Timestamp      time.Time `json:"timestamp"`

	// Verdict of the hard rules, or of the first failing policy rule
	Result RuleResult `json:"result"`

	// Present only when the application passed every rule
	ModelVariables *ModelVariables `json:"modelVariables,omitempty"`

	// Processing metadata
	Metadata EvaluationMetadata `json:"metadata"`

	// Context is handed unchanged to the downstream stage; it is not persisted.
	Context *DecisionContext `json:"-"`
}

// EvaluationMetadata contains processing information.
type EvaluationMetadata struct {
	TraceID              string   `json:"traceId"`
	GatherMs             int64    `json:"gatherMs"`
	RulesMs              int64    `json:"rulesMs"`
	TotalMs              int64    `json:"totalMs"`
	HardRulesEvaluated   int      `json:"hardRulesEvaluated"`
	PolicyRulesEvaluated int      `json:"policyRulesEvaluated"`
	PolicyRuleErrors     []string `json:"policyRuleErrors,omitempty"`
	RecentApplications   int64    `json:"recentApplications"`
	EngineVersion        string   `json:"engineVersion"`
}

// EvaluationResponse is the API response for a credit evaluation.
type EvaluationResponse struct {
	EvaluationID   string             `json:"evaluationId"`
	ApplicationID  string             `json:"applicationId"`
	TenantID       string             `json:"tenantId"`
	Status         string             `json:"status"`
	Approved       bool               `json:"approved"`
	RuleID         string             `json:"ruleId,omitempty"`
	RejectionCode  RejectionCode      `json:"rejectionCode,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	Detail         map[string]any     `json:"detail,omitempty"`
	ModelVariables *ModelVariables    `json:"modelVariables,omitempty"`
	Metadata       EvaluationMetadata `json:"metadata"`
}

// Evaluation status constants
const (
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// StatusOf maps a rule result to an evaluation status.
func StatusOf(r RuleResult) string {
	if r.Approved {
		return StatusApproved
	}
	return StatusRejected
}

// ToResponse converts an Evaluation to an API response.
func (e *Evaluation) ToResponse() *EvaluationResponse {
	return &EvaluationResponse{
		EvaluationID:   e.ID,
		ApplicationID:  e.ApplicationID,
		TenantID:       e.TenantID,
		Status:         e.Status,
		Approved:       e.Result.Approved,
		RuleID:         e.Result.RuleID,
		RejectionCode:  e.Result.RejectionCode,
		Reason:         e.Result.Reason,
		Detail:         e.Result.Detail,
		ModelVariables: e.ModelVariables,
		Metadata:       e.Metadata,
	}
}
