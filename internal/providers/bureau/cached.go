package bureau

import (
	"context"
	"log/slog"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// cacheTenant namespaces bureau reports in the cache. Reports are about the
// applicant, not the tenant, so they are shared.
const cacheTenant = "_bureau"

// CachedLookup serves bureau reports from cache before hitting the bureau.
// Absent reports are not cached.
type CachedLookup struct {
	next  domain.BureauLookup
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedLookup wraps next with a cache. A zero ttl defaults to 24h.
func NewCachedLookup(next domain.BureauLookup, cache domain.Cache, ttl time.Duration) *CachedLookup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl}
}

// LookupReport implements domain.BureauLookup.
func (c *CachedLookup) LookupReport(ctx context.Context, documentNumber string) (*domain.BureauReport, error) {
	if cached, err := c.cache.GetBureauReport(ctx, cacheTenant, documentNumber); err != nil {
		slog.Warn("bureau cache read failed", "error", err)
	} else if cached != nil {
		return cached, nil
	}

	report, err := c.next.LookupReport(ctx, documentNumber)
	if err != nil || report == nil {
		return report, err
	}

	if err := c.cache.SetBureauReport(ctx, cacheTenant, documentNumber, report, c.ttl); err != nil {
		slog.Warn("bureau cache write failed", "error", err)
	}

	return report, nil
}
