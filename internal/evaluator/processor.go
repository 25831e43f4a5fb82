package evaluator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/santiagomg2003-png/motor-credito/internal/decisioncontext"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/hardrules"
	"github.com/santiagomg2003-png/motor-credito/internal/rules"
)

// EngineVersion is stamped on every evaluation.
const EngineVersion = "motor-credito-1.0"

var tracer = otel.Tracer("motor-credito-evaluator")

// PolicyEvaluator runs the configurable policy rules.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in *rules.Input) rules.Outcome
}

// Processor produces the full, persistable evaluation of an application.
// Hard rules run first; policy rules run only when every hard rule passed.
type Processor struct {
	validator *hardrules.Validator
	policies  PolicyEvaluator
}

// NewProcessor creates a processor. policies may be nil.
func NewProcessor(validator *hardrules.Validator, policies PolicyEvaluator) *Processor {
	if validator == nil {
		validator = hardrules.NewValidator(hardrules.DefaultLimits(), nil)
	}
	return &Processor{validator: validator, policies: policies}
}

// Input contains all data needed for one evaluation.
type Input struct {
	TenantID      string
	ApplicationID string
	TraceID       string

	Application domain.ApplicationRequest
	Payroll     *domain.PayrollExtraction
	Identity    *domain.IdentityExtraction
	Bureau      *domain.BureauReport

	// RecentApplications is the applicant's evaluation count in the velocity window
	RecentApplications int64

	GatherMs  int64
	StartTime time.Time
}

// Process evaluates the input and returns the evaluation record.
func (p *Processor) Process(ctx context.Context, input *Input) *domain.Evaluation {
	ctx, span := tracer.Start(ctx, "evaluator.process",
		trace.WithAttributes(
			attribute.String("tenant.id", input.TenantID),
			attribute.String("application.id", input.ApplicationID),
		),
	)
	defer span.End()

	start := time.Now()
	if input.StartTime.IsZero() {
		input.StartTime = start
	}

	c := decisioncontext.Build(input.Application, input.Payroll, input.Identity, input.Bureau)
	result, hardEvaluated := p.validator.Run(&c)

	meta := domain.EvaluationMetadata{
		TraceID:            input.TraceID,
		GatherMs:           input.GatherMs,
		HardRulesEvaluated: hardEvaluated,
		RecentApplications: input.RecentApplications,
		EngineVersion:      EngineVersion,
	}

	if result.Approved && p.policies != nil {
		outcome := p.policies.Evaluate(ctx, &rules.Input{
			Context:            &c,
			RecentApplications: input.RecentApplications,
		})
		result = outcome.Result
		meta.PolicyRulesEvaluated = outcome.Evaluated
		meta.PolicyRuleErrors = outcome.Errors
	}

	meta.RulesMs = time.Since(start).Milliseconds()
	meta.TotalMs = time.Since(input.StartTime).Milliseconds()

	eval := &domain.Evaluation{
		ID:             uuid.New().String(),
		TenantID:       input.TenantID,
		ApplicationID:  input.ApplicationID,
		DocumentNumber: input.Application.DocumentNumber,
		Status:         domain.StatusOf(result),
		Timestamp:      time.Now().UTC(),
		Result:         result,
		Metadata:       meta,
		Context:        &c,
	}

	if result.Approved {
		if vars, ok := c.ModelVariables(); ok {
			eval.ModelVariables = &vars
		}
	}

	span.SetAttributes(
		attribute.String("evaluation.status", eval.Status),
		attribute.String("evaluation.rule_id", result.RuleID),
		attribute.String("evaluation.rejection_code", string(result.RejectionCode)),
	)

	return eval
}

// Validator returns the hard rule validator in use.
func (p *Processor) Validator() *hardrules.Validator {
	return p.validator
}

// IsRejected reports whether the evaluation rejected the application.
func IsRejected(eval *domain.Evaluation) bool {
	return eval.Status == domain.StatusRejected
}

// HandOff returns the context for the downstream stage, or nil when the
// application was rejected.
func HandOff(eval *domain.Evaluation) *domain.DecisionContext {
	if IsRejected(eval) {
		return nil
	}
	return eval.Context
}
