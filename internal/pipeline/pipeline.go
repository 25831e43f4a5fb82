// Package pipeline runs one credit application end to end: velocity,
// persistence, input gathering, rule evaluation and event publication.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/evaluator"
	"github.com/santiagomg2003-png/motor-credito/internal/intake"
	"github.com/santiagomg2003-png/motor-credito/internal/metrics"
)

// Gatherer fetches the external inputs of an application.
type Gatherer interface {
	Gather(ctx context.Context, app *domain.ApplicationRequest) (intake.Inputs, intake.Latencies)
}

// VelocityTracker records an application and returns the applicant's earlier count.
type VelocityTracker interface {
	Track(ctx context.Context, tenantID, documentNumber string) (int64, error)
}

// Pipeline evaluates applications. Repo, bus, velocity and metrics are optional.
type Pipeline struct {
	gatherer  Gatherer
	processor *evaluator.Processor
	velocity  VelocityTracker
	repo      domain.Repository
	bus       domain.EventBus
	metrics   *metrics.Metrics
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	Velocity VelocityTracker
	Repo     domain.Repository
	Bus      domain.EventBus
	Metrics  *metrics.Metrics
}

// New creates a pipeline.
func New(gatherer Gatherer, processor *evaluator.Processor, opts Options) *Pipeline {
	return &Pipeline{
		gatherer:  gatherer,
		processor: processor,
		velocity:  opts.Velocity,
		repo:      opts.Repo,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
	}
}

// Request is one application to evaluate.
type Request struct {
	TenantID    string                    `json:"tenantId"`
	TraceID     string                    `json:"traceId,omitempty"`
	Application domain.ApplicationRequest `json:"application"`
}

// Evaluate runs the application through the full pipeline. Only structural
// validation fails the call; infrastructure errors are logged and skipped.
func (p *Pipeline) Evaluate(ctx context.Context, req *Request) (*domain.Evaluation, error) {
	start := time.Now()

	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidApplication)
	}
	if err := req.Application.Validate(); err != nil {
		return nil, err
	}
	app := &req.Application

	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	var recent int64
	if p.velocity != nil {
		n, err := p.velocity.Track(ctx, req.TenantID, app.DocumentNumber)
		if err != nil {
			slog.Warn("velocity unavailable, recent applications treated as zero",
				"tenant_id", req.TenantID,
				"error", err,
			)
		} else {
			recent = n
		}
	}

	record := &domain.Application{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Request:   app.WithoutDocuments(),
		CreatedAt: start.UTC(),
	}
	if p.repo != nil {
		if err := p.repo.SaveApplication(ctx, req.TenantID, record); err != nil {
			slog.Error("failed to save application",
				"tenant_id", req.TenantID,
				"application_id", record.ID,
				"error", err,
			)
		}
	}

	inputs, lat := p.gatherer.Gather(ctx, app)

	eval := p.processor.Process(ctx, &evaluator.Input{
		TenantID:           req.TenantID,
		ApplicationID:      record.ID,
		TraceID:            traceID,
		Application:        *app,
		Payroll:            inputs.Payroll,
		Identity:           inputs.Identity,
		Bureau:             inputs.Bureau,
		RecentApplications: recent,
		GatherMs:           lat.Total.Milliseconds(),
		StartTime:          start,
	})

	p.metrics.ObserveEvaluation(eval)

	if p.repo != nil {
		if err := p.repo.SaveEvaluation(ctx, req.TenantID, eval); err != nil {
			slog.Error("failed to save evaluation",
				"tenant_id", req.TenantID,
				"evaluation_id", eval.ID,
				"error", err,
			)
		}
	}

	p.publish(ctx, eval)

	slog.Info("application evaluated",
		"tenant_id", req.TenantID,
		"evaluation_id", eval.ID,
		"status", eval.Status,
		"rule_id", eval.Result.RuleID,
		"rejection_code", eval.Result.RejectionCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return eval, nil
}

// publish emits the decision, and the rejection when there is one.
func (p *Pipeline) publish(ctx context.Context, eval *domain.Evaluation) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(eval.ToResponse())
	if err != nil {
		slog.Error("failed to encode decision", "evaluation_id", eval.ID, "error", err)
		return
	}

	topics := []string{domain.TopicDecision}
	if evaluator.IsRejected(eval) {
		topics = append(topics, domain.TopicRejected)
	}
	for _, topic := range topics {
		if err := p.bus.Publish(ctx, eval.TenantID, topic, payload); err != nil {
			slog.Error("failed to publish evaluation",
				"tenant_id", eval.TenantID,
				"evaluation_id", eval.ID,
				"topic", topic,
				"error", err,
			)
		}
	}
}
