package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// RuleStore lists persisted policy rules.
type RuleStore interface {
	ListPolicyRules(ctx context.Context, tenantID string) ([]*domain.PolicyRule, error)
}

// Reloader refreshes the engine from the rule store, on demand or on a cron schedule.
type Reloader struct {
	engine   *Engine
	store    RuleStore
	tenantID string
	timeout  time.Duration
	cron     *cron.Cron

	// OnReload, when set, receives the loaded rule count after every successful reload.
	OnReload func(count int)
}

// NewReloader creates a reloader for the rules owned by tenantID.
func NewReloader(engine *Engine, store RuleStore, tenantID string) *Reloader {
	return &Reloader{
		engine:   engine,
		store:    store,
		tenantID: tenantID,
		timeout:  30 * time.Second,
	}
}

// Reload replaces the engine's rules with the stored ones and returns how many are loaded.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	stored, err := r.store.ListPolicyRules(ctx, r.tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list policy rules: %w", err)
	}

	if err := r.engine.ReloadRules(stored); err != nil {
		return 0, err
	}

	count := r.engine.RulesCount()
	if r.OnReload != nil {
		r.OnReload(count)
	}
	return count, nil
}

// Start schedules Reload using a cron spec such as "@every 5m" or "*/10 * * * *".
// An empty spec does nothing.
func (r *Reloader) Start(spec string) error {
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		count, err := r.Reload(ctx)
		if err != nil {
			slog.Error("scheduled policy rule reload failed", "error", err)
			return
		}
		slog.Debug("policy rules reloaded", "rules_count", count)
	})
	if err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}

	r.cron = c
	c.Start()
	slog.Info("policy rule reload scheduled", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running reload to finish.
func (r *Reloader) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
