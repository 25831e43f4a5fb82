package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLRU(size int) (*LRUCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache(size)
	c.now = clock.now
	return c, clock
}

func TestLRUCache(t *testing.T) {
	cache, clock := newTestLRU(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if val, _ := cache.Get(ctx, tenantID, "key2"); val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Second)

		if val, _ := cache.Get(ctx, tenantID, "expiring"); val == nil {
			t.Error("expected value before expiration")
		}

		clock.advance(11 * time.Second)

		if val, _ := cache.Get(ctx, tenantID, "expiring"); val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		small, _ := newTestLRU(3)

		_ = small.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = small.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = small.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' is the least recently used
		_, _ = small.Get(ctx, tenantID, "a")
		_ = small.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		if val, _ := small.Get(ctx, tenantID, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := small.Get(ctx, tenantID, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-001", "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-002", "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, "tenant-001", "shared-key")
		val2, _ := cache.Get(ctx, "tenant-002", "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := cache.Set(ctx, "", "key", []byte("value"), time.Minute); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
		if _, err := cache.Get(ctx, "", "key"); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
		if _, err := cache.IncrementCounter(ctx, "", "key", time.Minute); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("expected ErrTenantRequired, got %v", err)
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := time.Hour

		count1, err := cache.IncrementCounter(ctx, tenantID, "apps:1020304050", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		if count2, _ := cache.IncrementCounter(ctx, tenantID, "apps:1020304050", window); count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		clock.advance(window + time.Second)

		if count3, _ := cache.IncrementCounter(ctx, tenantID, "apps:1020304050", window); count3 != 1 {
			t.Errorf("expected count 1 once earlier hits left the window, got %d", count3)
		}
	})

	t.Run("BureauReport", func(t *testing.T) {
		report := &domain.BureauReport{Score: 640, ObligationsInArrears: 1, HistoricalChargeOffs: true}

		if err := cache.SetBureauReport(ctx, tenantID, "1020304050", report, time.Hour); err != nil {
			t.Fatalf("SetBureauReport failed: %v", err)
		}

		got, err := cache.GetBureauReport(ctx, tenantID, "1020304050")
		if err != nil {
			t.Fatalf("GetBureauReport failed: %v", err)
		}
		if got == nil || *got != *report {
			t.Errorf("expected %+v, got %+v", report, got)
		}

		miss, err := cache.GetBureauReport(ctx, tenantID, "999")
		if err != nil || miss != nil {
			t.Errorf("expected nil miss, got %+v, %v", miss, err)
		}
	})

	t.Run("CorruptBureauReport", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, bureauKey("bad"), []byte("{not json"), time.Minute)

		if _, err := cache.GetBureauReport(ctx, tenantID, "bad"); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, _ := newTestLRU(50)
		_ = stats.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = stats.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)

		size, capacity := stats.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		closing, _ := newTestLRU(10)
		_ = closing.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := closing.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if val, _ := closing.Get(ctx, tenantID, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestCounterSlidingWindow(t *testing.T) {
	cache, clock := newTestLRU(100)
	ctx := context.Background()
	window := 30 * 24 * time.Hour
	day := 24 * time.Hour

	// Applications on day 0, day 29 and day 31: the day-31 one still sees day 29.
	steps := []struct {
		advance time.Duration
		want    int64
	}{
		{0, 1},
		{29 * day, 2},
		{2 * day, 2},
		{29 * day, 2},
		{31 * day, 1},
	}

	for i, step := range steps {
		clock.advance(step.advance)
		got, err := cache.IncrementCounter(ctx, "tenant-001", "apps:1020304050", window)
		if err != nil {
			t.Fatalf("step %d: IncrementCounter failed: %v", i, err)
		}
		if got != step.want {
			t.Errorf("step %d: expected %d, got %d", i, step.want, got)
		}
	}
}

func TestCounterPruning(t *testing.T) {
	cache, clock := newTestLRU(2)
	ctx := context.Background()

	_, _ = cache.IncrementCounter(ctx, "t", "a", time.Minute)
	_, _ = cache.IncrementCounter(ctx, "t", "b", time.Minute)
	clock.advance(2 * time.Minute)
	_, _ = cache.IncrementCounter(ctx, "t", "c", time.Minute)

	if len(cache.counters) != 1 {
		t.Errorf("expected expired counters to be pruned, have %d", len(cache.counters))
	}
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
