package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// KafkaBus implements EventBus on Kafka using franz-go.
// Topics are motor.<tenant>.<topic>; records are keyed by tenant so a
// tenant's events keep their order within a partition. Request-reply is
// not supported.
type KafkaBus struct {
	mu            sync.Mutex
	producer      *kgo.Client
	admin         *kadm.Client
	brokers       []string
	group         string
	subscriptions map[string]*kafkaSubscription
	closed        bool
}

type kafkaSubscription struct {
	id     string
	topic  string
	client *kgo.Client
	cancel context.CancelFunc
	done   chan struct{}
	bus    *KafkaBus
}

// NewKafkaBus creates a producer client for the configured brokers.
func NewKafkaBus(cfg domain.EventBusConfig) (*KafkaBus, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.KafkaBrokers...),
		kgo.ClientID("motor-credito"),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	group := cfg.KafkaConsumerGroup
	if group == "" {
		group = "motor-credito"
	}

	return &KafkaBus{
		producer:      producer,
		admin:         kadm.NewClient(producer),
		brokers:       cfg.KafkaBrokers,
		group:         group,
		subscriptions: make(map[string]*kafkaSubscription),
	}, nil
}

// Publish produces a JSON envelope and waits for the broker acknowledgement.
func (b *KafkaBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return ErrTenantRequired
	}

	msg := newMessage(tenantID, topic, payload)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	record := &kgo.Record{
		Topic: kafkaTopic(tenantID, topic),
		Key:   []byte(tenantID),
		Value: data,
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", record.Topic, err)
	}
	return nil
}

// Subscribe starts a consumer-group client for the tenant's topic.
func (b *KafkaBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	name := kafkaTopic(tenantID, topic)
	if err := b.ensureTopic(ctx, name); err != nil {
		return nil, err
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ConsumerGroup(b.group+"."+topic),
		kgo.ConsumeTopics(name),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		id:     uuid.New().String(),
		topic:  topic,
		client: client,
		cancel: cancel,
		done:   make(chan struct{}),
		bus:    b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		client.Close()
		return nil, ErrClosed
	}
	b.subscriptions[sub.id] = sub
	b.mu.Unlock()

	go sub.consume(subCtx, handler)

	return sub, nil
}

func (s *kafkaSubscription) consume(ctx context.Context, handler domain.MessageHandler) {
	defer close(s.done)

	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			var msg domain.Message
			if err := json.Unmarshal(r.Value, &msg); err != nil {
				slog.Error("failed to unmarshal kafka record", "topic", r.Topic, "offset", r.Offset, "error", err)
				return
			}
			if err := handler(ctx, &msg); err != nil {
				slog.Error("handler error",
					"topic", r.Topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		})
	}
}

// ensureTopic creates the topic if the broker does not have it yet.
func (b *KafkaBus) ensureTopic(ctx context.Context, name string) error {
	resp, err := b.admin.CreateTopics(ctx, 1, -1, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", name, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", name, r.Err)
		}
	}
	return nil
}

// Request is not available on Kafka.
func (b *KafkaBus) Request(context.Context, string, string, []byte) ([]byte, error) {
	return nil, ErrRequestUnsupported
}

// Ping checks broker connectivity.
func (b *KafkaBus) Ping(ctx context.Context) error {
	return b.producer.Ping(ctx)
}

// Close stops all consumers and the producer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*kafkaSubscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.subscriptions = make(map[string]*kafkaSubscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	b.producer.Close()
	return nil
}

// kafkaTopic maps a tenant topic onto a legal Kafka topic name.
func kafkaTopic(tenantID, topic string) string {
	return "motor." + strings.ReplaceAll(tenantID, "*", "_all") + "." + topic
}

func (s *kafkaSubscription) stop() {
	s.cancel()
	s.client.Close()
	<-s.done
}

// Unsubscribe stops the consumer.
func (s *kafkaSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	_, ok := s.bus.subscriptions[s.id]
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()

	if ok {
		s.stop()
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *kafkaSubscription) Topic() string {
	return s.topic
}
