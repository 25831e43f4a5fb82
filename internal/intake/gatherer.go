// Package intake collects the external inputs an evaluation needs.
package intake

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/metrics"
)

// Provider sources, used as metric labels.
const (
	SourcePayroll  = "payroll"
	SourceIdentity = "identity"
	SourceBureau   = "bureau"
)

// Inputs are the provider results for one application. Nil means absent.
type Inputs struct {
	Payroll  *domain.PayrollExtraction
	Identity *domain.IdentityExtraction
	Bureau   *domain.BureauReport
}

// Latencies records how long each provider took.
type Latencies struct {
	Payroll  time.Duration
	Identity time.Duration
	Bureau   time.Duration
	Total    time.Duration
}

// Gatherer fetches payroll, identity and bureau data concurrently.
// Provider failures never fail the gather; they yield absent inputs.
type Gatherer struct {
	payroll  domain.PayrollExtractor
	identity domain.IdentityExtractor
	bureau   domain.BureauLookup
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewGatherer creates a gatherer. A zero timeout defaults to 15s; m may be nil.
func NewGatherer(
	payroll domain.PayrollExtractor,
	identity domain.IdentityExtractor,
	bureau domain.BureauLookup,
	timeout time.Duration,
	m *metrics.Metrics,
) *Gatherer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gatherer{
		payroll:  payroll,
		identity: identity,
		bureau:   bureau,
		timeout:  timeout,
		metrics:  m,
	}
}

// Gather fetches all inputs for the application.
func (g *Gatherer) Gather(ctx context.Context, app *domain.ApplicationRequest) (Inputs, Latencies) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var in Inputs
	var lat Latencies
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		t := time.Now()
		out, err := g.extractPayroll(ctx, app)
		lat.Payroll = time.Since(t)

		if err == nil && out != nil {
			err = out.Validate()
		}
		if g.observe(SourcePayroll, lat.Payroll, err, app.DocumentNumber) {
			in.Payroll = out
		}
		return nil
	})

	eg.Go(func() error {
		t := time.Now()
		out, err := g.extractIdentity(ctx, app)
		lat.Identity = time.Since(t)

		if g.observe(SourceIdentity, lat.Identity, err, app.DocumentNumber) {
			in.Identity = out
		}
		return nil
	})

	eg.Go(func() error {
		t := time.Now()
		out, err := g.bureau.LookupReport(ctx, app.DocumentNumber)
		lat.Bureau = time.Since(t)

		if g.observe(SourceBureau, lat.Bureau, err, app.DocumentNumber) {
			in.Bureau = out
		}
		return nil
	})

	_ = eg.Wait()
	lat.Total = time.Since(start)

	return in, lat
}

// extractPayroll hands the whole application to extractors that accept it.
func (g *Gatherer) extractPayroll(ctx context.Context, app *domain.ApplicationRequest) (*domain.PayrollExtraction, error) {
	if x, ok := g.payroll.(domain.ApplicationPayrollExtractor); ok {
		return x.ExtractPayrollFor(ctx, app)
	}
	return g.payroll.ExtractPayroll(ctx, app.PayrollDocument)
}

func (g *Gatherer) extractIdentity(ctx context.Context, app *domain.ApplicationRequest) (*domain.IdentityExtraction, error) {
	if x, ok := g.identity.(domain.ApplicationIdentityExtractor); ok {
		return x.ExtractIdentityFor(ctx, app)
	}
	return g.identity.ExtractIdentity(ctx, app.IdentityDocument)
}

// observe records the call and reports whether its result is usable.
func (g *Gatherer) observe(source string, d time.Duration, err error, documentNumber string) bool {
	g.metrics.ObserveProvider(source, d, err != nil)
	if err != nil {
		slog.Warn("provider failed, input treated as absent",
			"source", source,
			"document_number", documentNumber,
			"duration_ms", d.Milliseconds(),
			"error", err,
		)
		return false
	}
	return true
}
