// Package worker evaluates credit applications received on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/santiagomg2003-png/motor-credito/internal/bus"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/pipeline"
)

// ErrStopped is returned for messages delivered after Stop began.
var ErrStopped = errors.New("worker: stopped")

// Evaluator runs one application through the evaluation pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, req *pipeline.Request) (*domain.Evaluation, error)
}

// Worker consumes credit.application.received and evaluates each application.
// The pipeline persists and publishes the decision; request messages also get
// the verdict as a reply.
type Worker struct {
	bus      domain.EventBus
	pipeline Evaluator

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	slots         chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to consume for
	TenantIDs []string

	// WorkerCount bounds concurrent evaluations across all tenants
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, p Evaluator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		pipeline: p,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes for every configured tenant.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return errors.New("worker: at least one tenant is required")
	}

	count := cfg.WorkerCount
	if count <= 0 {
		count = 4
	}
	w.slots = make(chan struct{}, count)

	for _, tenantID := range cfg.TenantIDs {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationReceived, w.handleMessage)
		if err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.mu.Lock()
		w.subscriptions = append(w.subscriptions, sub)
		w.mu.Unlock()
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"worker_count", count,
		"topic", domain.TopicApplicationReceived,
	)
	return nil
}

// handleMessage hands the message to a free slot, waiting while all are busy.
// Messages arriving once Stop has begun are refused so they can be redelivered.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrStopped
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.slots
		return ErrStopped
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer func() {
			<-w.slots
			w.wg.Done()
		}()
		// Accepted evaluations run to completion even while stopping.
		w.process(context.WithoutCancel(w.ctx), msg)
	}()
	return nil
}

// process evaluates one message. The tenant always comes from the envelope.
func (w *Worker) process(ctx context.Context, msg *domain.Message) {
	var req pipeline.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"tenant_id", msg.TenantID,
			"error", err,
		)
		w.reply(ctx, msg, errorReply{Error: "invalid application message"})
		return
	}

	req.TenantID = msg.TenantID
	if req.TraceID == "" {
		req.TraceID = msg.ID
	}

	eval, err := w.pipeline.Evaluate(ctx, &req)
	if err != nil {
		slog.Warn("application rejected as invalid",
			"message_id", msg.ID,
			"tenant_id", msg.TenantID,
			"error", err,
		)
		w.reply(ctx, msg, errorReply{Error: err.Error()})
		return
	}

	w.reply(ctx, msg, eval.ToResponse())
}

type errorReply struct {
	Error string `json:"error"`
}

func (w *Worker) reply(ctx context.Context, msg *domain.Message, v any) {
	if msg.Metadata[bus.MetaReplyTo] == "" {
		return
	}
	payload, _ := json.Marshal(v)
	if err := bus.Reply(ctx, w.bus, msg, payload); err != nil {
		slog.Error("failed to reply",
			"message_id", msg.ID,
			"tenant_id", msg.TenantID,
			"error", err,
		)
	}
}

// Stop unsubscribes, refuses further messages and waits for in-flight
// evaluations. It is safe to call more than once.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats describes the worker's subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.slots),
	}
}
