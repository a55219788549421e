package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/pkg/kafka"
)

// EventPublisher defines the interface for publishing checkout outcome events
type EventPublisher interface {
	// PublishOutcome publishes the outcome of a payment attempt
	PublishOutcome(ctx context.Context, checkout *domain.Checkout) error

	// Close closes the event publisher
	Close() error
}

// messageProducer is the subset of *kafka.Producer the publisher uses
type messageProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
	Close()
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    messageProducer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "checkout-service-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:        cfg.Brokers,
		ClientID:       clientID,
		MaxRetries:     3,
		RetryInterval:  2 * time.Second,
		BatchSize:      100,
		LingerMs:       10,
		RequireAllAcks: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return newKafkaEventPublisher(producer, cfg.Topic, cfg.ServiceName), nil
}

func newKafkaEventPublisher(producer messageProducer, topic, serviceName string) *KafkaEventPublisher {
	if topic == "" {
		topic = "checkout-events"
	}
	if serviceName == "" {
		serviceName = "checkout-service"
	}
	return &KafkaEventPublisher{producer: producer, topic: topic, serviceName: serviceName}
}

// PublishOutcome publishes a checkout outcome event keyed by checkout id
func (p *KafkaEventPublisher) PublishOutcome(ctx context.Context, checkout *domain.Checkout) error {
	eventID := uuid.New().String()
	event, ok := domain.NewCheckoutEvent(checkout, eventID, time.Now())
	if !ok {
		return fmt.Errorf("checkout %s has no outcome to publish (state %s)", checkout.ID, checkout.State)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		Topic: p.topic,
		Key:   []byte(checkout.ID),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(event.EventType),
			"event_id":     eventID,
			"source":       p.serviceName,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishOutcome is a no-op
func (p *NoOpEventPublisher) PublishOutcome(ctx context.Context, checkout *domain.Checkout) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
