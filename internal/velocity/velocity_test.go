package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/cache"
	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

type fakeCounter struct {
	count int64
	err   error
	since time.Time
}

func (f *fakeCounter) CountApplicationsByDocument(_ context.Context, _ string, _ string, since time.Time) (int64, error) {
	f.since = since
	return f.count, f.err
}

// brokenCache fails every counter increment.
type brokenCache struct {
	domain.Cache
}

func (brokenCache) IncrementCounter(context.Context, string, string, time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func TestVelocityService(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("FirstApplication", func(t *testing.T) {
		svc := NewService(nil, cache.NewLRUCache(100), time.Hour)
		count, err := svc.Track(ctx, tenantID, "1020304050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 earlier applications, got %d", count)
		}
	})

	t.Run("RepeatedApplications", func(t *testing.T) {
		svc := NewService(nil, cache.NewLRUCache(100), time.Hour)
		var count int64
		for i := 0; i < 4; i++ {
			var err error
			count, err = svc.Track(ctx, tenantID, "1020304050")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if count != 3 {
			t.Errorf("expected 3 earlier applications, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		svc := NewService(nil, cache.NewLRUCache(100), time.Hour)
		_, _ = svc.Track(ctx, "tenant-a", "1020304050")
		_, _ = svc.Track(ctx, "tenant-a", "1020304050")

		count, err := svc.Track(ctx, "tenant-b", "1020304050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("tenant-b should not see tenant-a applications, got %d", count)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		svc := NewService(nil, cache.NewLRUCache(100), time.Hour)
		if _, err := svc.Track(ctx, "", "1020304050"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("RequiresDocumentNumber", func(t *testing.T) {
		svc := NewService(nil, cache.NewLRUCache(100), time.Hour)
		if _, err := svc.Track(ctx, tenantID, ""); err == nil {
			t.Error("expected error for empty documentNumber")
		}
	})

	t.Run("FallsBackToRepository", func(t *testing.T) {
		repo := &fakeCounter{count: 2}
		svc := NewService(repo, brokenCache{}, 24*time.Hour)
		fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }

		count, err := svc.Track(ctx, tenantID, "1020304050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 2 {
			t.Errorf("expected repository count 2, got %d", count)
		}
		if want := fixed.Add(-24 * time.Hour); !repo.since.Equal(want) {
			t.Errorf("expected since %v, got %v", want, repo.since)
		}
	})

	t.Run("RepositoryError", func(t *testing.T) {
		svc := NewService(&fakeCounter{err: errors.New("disk full")}, nil, time.Hour)
		if _, err := svc.Track(ctx, tenantID, "1020304050"); err == nil {
			t.Error("expected repository error to propagate")
		}
	})
}

func TestNoDataSource(t *testing.T) {
	svc := NewService(nil, nil, 0)

	_, err := svc.Track(context.Background(), "tenant-001", "1020304050")
	if !errors.Is(err, ErrNoDataSource) {
		t.Errorf("expected ErrNoDataSource, got %v", err)
	}
	if svc.Window() != 30*24*time.Hour {
		t.Errorf("expected default window of 30 days, got %v", svc.Window())
	}
}
