package intake

import (
	"fmt"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/metrics"
	"github.com/santiagomg2003-png/motor-credito/internal/providers/bureau"
	"github.com/santiagomg2003-png/motor-credito/internal/providers/mock"
)

// NewFromConfig wires the providers selected by cfg into a Gatherer.
// Document extraction is always mocked; in "http" mode the bureau is
// queried over HTTP with reports cached in c.
func NewFromConfig(cfg domain.ProvidersConfig, c domain.Cache, m *metrics.Metrics) (*Gatherer, error) {
	var lookup domain.BureauLookup

	switch cfg.Mode {
	case "", "mock":
		lookup = mock.NewBureau()
	case "http":
		if cfg.BureauURL == "" {
			return nil, fmt.Errorf("providers: bureauUrl is required for http mode")
		}
		lookup = bureau.NewClient(cfg.BureauURL, cfg.BureauTimeout)
		if c != nil {
			lookup = bureau.NewCachedLookup(lookup, c, cfg.BureauTTL)
		}
	default:
		return nil, fmt.Errorf("unsupported providers mode: %s", cfg.Mode)
	}

	return NewGatherer(mock.NewPayroll(), mock.NewIdentity(), lookup, cfg.GatherTimeout, m), nil
}
