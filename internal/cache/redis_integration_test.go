//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	return opts.Addr
}

func TestRedisCacheIntegration(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	remote, err := NewRedisCache(addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer remote.Close()

	t.Run("BureauReport", func(t *testing.T) {
		report := &domain.BureauReport{Score: 700, HistoricalDaysPastDue: 30}
		if err := remote.SetBureauReport(ctx, "_bureau", "123", report, time.Minute); err != nil {
			t.Fatalf("SetBureauReport failed: %v", err)
		}
		got, err := remote.GetBureauReport(ctx, "_bureau", "123")
		if err != nil || got == nil || *got != *report {
			t.Errorf("expected %+v, got %+v (%v)", report, got, err)
		}
	})

	t.Run("Counter", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			n, err := remote.IncrementCounter(ctx, "tenant-001", "apps:123", time.Minute)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if n != i {
				t.Errorf("expected %d, got %d", i, n)
			}
		}
	})

	t.Run("TwoPhase", func(t *testing.T) {
		tp := newTwoPhase(NewLRUCache(10), remote, time.Minute)

		if err := remote.Set(ctx, "tenant-001", "only-l2", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, err := tp.Get(ctx, "tenant-001", "only-l2")
		if err != nil || string(val) != "v" {
			t.Fatalf("expected L2 hit, got %q (%v)", val, err)
		}
		if size, _ := tp.Stats(); size != 1 {
			t.Errorf("expected L1 populated after L2 hit, size %d", size)
		}
	})
}
