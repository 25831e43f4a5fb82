// Package velocity counts how often a document number applies for credit.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// ErrNoDataSource is returned when neither a cache nor a repository is configured.
var ErrNoDataSource = errors.New("no data source available")

// ApplicationCounter counts stored applications.
type ApplicationCounter interface {
	CountApplicationsByDocument(ctx context.Context, tenantID string, documentNumber string, since time.Time) (int64, error)
}

// Service tracks application velocity per document number.
// The cache counter is the fast path; the repository is the fallback.
type Service struct {
	repo   ApplicationCounter
	cache  domain.Cache
	window time.Duration
	now    func() time.Time
}

// NewService creates a velocity service. Either repo or cache may be nil.
// A zero window defaults to 30 days.
func NewService(repo ApplicationCounter, cache domain.Cache, window time.Duration) *Service {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		window: window,
		now:    time.Now,
	}
}

// Window returns the look-back window.
func (s *Service) Window() time.Duration {
	return s.window
}

// Track records a new application for the document and returns how many
// earlier applications it made within the window.
func (s *Service) Track(ctx context.Context, tenantID, documentNumber string) (int64, error) {
	if tenantID == "" || documentNumber == "" {
		return 0, fmt.Errorf("tenantID and documentNumber are required")
	}

	if s.cache != nil {
		count, err := s.cache.IncrementCounter(ctx, tenantID, counterKey(documentNumber), s.window)
		if err == nil {
			return count - 1, nil
		}
		slog.Warn("velocity counter unavailable, falling back to repository",
			"tenant_id", tenantID,
			"error", err,
		)
	}

	if s.repo != nil {
		return s.Count(ctx, tenantID, documentNumber)
	}

	return 0, ErrNoDataSource
}

// Count returns the stored applications for the document within the window.
func (s *Service) Count(ctx context.Context, tenantID, documentNumber string) (int64, error) {
	if s.repo == nil {
		return 0, ErrNoDataSource
	}

	since := s.now().Add(-s.window)
	count, err := s.repo.CountApplicationsByDocument(ctx, tenantID, documentNumber, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}

func counterKey(documentNumber string) string {
	return "apps:" + documentNumber
}
