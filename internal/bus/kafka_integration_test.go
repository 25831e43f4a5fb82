//go:build integration

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

func TestKafkaBusIntegration(t *testing.T) {
	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get seed broker: %v", err)
	}

	bus, err := NewKafkaBus(domain.EventBusConfig{KafkaBrokers: []string{broker}})
	if err != nil {
		t.Fatalf("failed to create kafka bus: %v", err)
	}
	defer bus.Close()

	if err := bus.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	received := make(chan *domain.Message, 1)
	sub, err := bus.Subscribe(ctx, "tenant-001", domain.TopicDecision, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	// Give the consumer group time to join before producing.
	time.Sleep(3 * time.Second)

	if err := bus.Publish(ctx, "tenant-001", domain.TopicDecision, []byte(`{"approved":true}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.TenantID != "tenant-001" || string(msg.Payload) != `{"approved":true}` {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("timeout waiting for kafka message")
	}

	if _, err := bus.Request(ctx, "tenant-001", domain.TopicDecision, nil); err != ErrRequestUnsupported {
		t.Errorf("expected ErrRequestUnsupported, got %v", err)
	}
}
