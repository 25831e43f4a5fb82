// motor-credito evaluates payroll-backed credit applications.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/api"
	"github.com/santiagomg2003-png/motor-credito/internal/bus"
	"github.com/santiagomg2003-png/motor-credito/internal/cache"
	"github.com/santiagomg2003-png/motor-credito/internal/config"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/evaluator"
	"github.com/santiagomg2003-png/motor-credito/internal/hardrules"
	"github.com/santiagomg2003-png/motor-credito/internal/intake"
	"github.com/santiagomg2003-png/motor-credito/internal/metrics"
	"github.com/santiagomg2003-png/motor-credito/internal/pipeline"
	"github.com/santiagomg2003-png/motor-credito/internal/repository"
	"github.com/santiagomg2003-png/motor-credito/internal/rules"
	"github.com/santiagomg2003-png/motor-credito/internal/velocity"
	"github.com/santiagomg2003-png/motor-credito/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting motor-credito",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"providers", cfg.Providers.Mode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("motor-credito stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("motor-credito shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config) error {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.New()

	payers := hardrules.DefaultPayers()
	if cfg.HardRules.PayersFile != "" {
		payers, err = hardrules.LoadPayers(cfg.HardRules.PayersFile)
		if err != nil {
			return err
		}
	}
	validator := hardrules.NewValidator(hardrules.LimitsFromConfig(cfg.HardRules), payers)
	slog.Info("hard rules initialized",
		"checks", validator.ChecksCount(),
		"payers", payers.Len(),
	)

	engine, err := rules.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	reloader := rules.NewReloader(engine, repo, domain.GlobalTenantID)
	reloader.OnReload = m.SetPolicyRulesLoaded
	if n, err := reloader.Reload(ctx); err != nil {
		// Start without policy rules; they can be reloaded through the API.
		slog.Warn("failed to load policy rules", "error", err)
	} else {
		slog.Info("policy engine initialized", "rules_count", n)
	}
	if cfg.PolicyRules.ReloadSchedule != "" {
		if err := reloader.Start(cfg.PolicyRules.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid policy reload schedule: %w", err)
		}
		defer reloader.Stop()
	}

	gatherer, err := intake.NewFromConfig(cfg.Providers, cacheImpl, m)
	if err != nil {
		return err
	}

	p := pipeline.New(gatherer, evaluator.NewProcessor(validator, engine), pipeline.Options{
		Velocity: velocity.NewService(repo, cacheImpl, cfg.PolicyRules.VelocityWindow),
		Repo:     repo,
		Bus:      busImpl,
		Metrics:  m,
	})

	var asyncWorker *worker.Worker
	if tenants := tenantsFromEnv(); len(tenants) > 0 {
		asyncWorker = worker.NewWorker(busImpl, p)
		if err := asyncWorker.Start(worker.Config{TenantIDs: tenants, WorkerCount: workerCount()}); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		slog.Info("async worker started", "tenant_count", len(tenants))
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Pipeline: p,
		Engine:   engine,
		Reloader: reloader,
		Payers:   payers,
		Repo:     repo,
		Cache:    cacheImpl,
		Bus:      busImpl,
		Metrics:  m,
		Version:  Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("motor-credito is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	var stopper interface{ Stop() error }
	if asyncWorker != nil {
		stopper = asyncWorker
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdown(shutdownCtx, srv, stopper)
	return nil
}

// shutdown stops HTTP intake first so no application is queued after the
// worker has left, then drains the worker. The bus closes after both.
func shutdown(ctx context.Context, srv interface{ Shutdown(context.Context) error }, w interface{ Stop() error }) {
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if w != nil {
		if err := w.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("MOTOR_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// tenantsFromEnv parses MOTOR_TENANTS, a comma-separated list of tenants the
// async worker consumes applications for.
func tenantsFromEnv() []string {
	var tenants []string
	for _, t := range strings.Split(os.Getenv("MOTOR_TENANTS"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

func workerCount() int {
	var n int
	if _, err := fmt.Sscanf(os.Getenv("MOTOR_WORKERS"), "%d", &n); err != nil || n <= 0 {
		return 4
	}
	return n
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  motor-credito :: payroll credit decisions")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /credit/evaluate                          - Evaluate an application")
	fmt.Println("    POST   /credit/applications                      - Queue an application")
	fmt.Println("    GET    /credit/evaluations/{id}                  - Get evaluation by ID")
	fmt.Println("    GET    /credit/applications/{document}/evaluations - Applicant history")
	fmt.Println("    GET    /credit/payers                            - Authorized payers")
	fmt.Println("    GET    /policy-rules                             - List policy rules")
	fmt.Println("    POST   /policy-rules                             - Create a policy rule")
	fmt.Println("    DELETE /policy-rules/{id}                        - Disable a policy rule")
	fmt.Println("    POST   /policy-rules/reload                      - Hot-reload policy rules")
	fmt.Println("    GET    /health                                   - Health check")
	fmt.Println()
}
