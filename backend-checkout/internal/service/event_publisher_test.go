package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/pkg/kafka"
)

type fakeProducer struct {
	messages []*kafka.Message
	err      error
	closed   bool
}

func (p *fakeProducer) Produce(ctx context.Context, msg *kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() {
	p.closed = true
}

func succeededCheckout(t *testing.T) *domain.Checkout {
	t.Helper()
	now := time.Now()
	c, err := domain.NewCheckout("42", groupTarget(t), domain.EquipmentSelection{}, decimalPtr(100), nil, "MYR", now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.BeginValidation(now))
	require.NoError(t, c.BeginSubmission("intent-1", now))
	require.NoError(t, c.Succeed(domain.BookingResult{TotalAmount: decimal.NewFromInt(65)}, now))
	return c
}

func TestKafkaEventPublisher_PublishOutcome(t *testing.T) {
	producer := &fakeProducer{}
	publisher := newKafkaEventPublisher(producer, "", "")
	c := succeededCheckout(t)

	require.NoError(t, publisher.PublishOutcome(context.Background(), c))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "checkout-events", msg.Topic)
	assert.Equal(t, c.ID, string(msg.Key))
	assert.Equal(t, "checkout.succeeded", msg.Headers["event_type"])
	assert.Equal(t, "checkout-service", msg.Headers["source"])
	assert.NotEmpty(t, msg.Headers["event_id"])

	var event domain.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, c.ID, event.CheckoutID)
	assert.Equal(t, "intent-1", event.IntentID)
	assert.Equal(t, []string{"s1", "s2", "s3"}, event.SessionIDs)
	require.NotNil(t, event.PaidTotal)
	assert.True(t, event.PaidTotal.Equal(decimal.NewFromInt(65)))
}

func TestKafkaEventPublisher_Errors(t *testing.T) {
	t.Run("no outcome yet", func(t *testing.T) {
		producer := &fakeProducer{}
		publisher := newKafkaEventPublisher(producer, "topic", "svc")
		c, err := domain.NewCheckout("42", groupTarget(t), domain.EquipmentSelection{}, nil, nil, "MYR", time.Now(), time.Minute)
		require.NoError(t, err)

		assert.Error(t, publisher.PublishOutcome(context.Background(), c))
		assert.Empty(t, producer.messages)
	})

	t.Run("producer failure", func(t *testing.T) {
		producer := &fakeProducer{err: errors.New("broker down")}
		publisher := newKafkaEventPublisher(producer, "topic", "svc")

		err := publisher.PublishOutcome(context.Background(), succeededCheckout(t))
		assert.ErrorContains(t, err, "broker down")
	})
}

func TestKafkaEventPublisher_Close(t *testing.T) {
	producer := &fakeProducer{}
	publisher := newKafkaEventPublisher(producer, "topic", "svc")
	require.NoError(t, publisher.Close())
	assert.True(t, producer.closed)
}

func TestNewKafkaEventPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaEventPublisher(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewKafkaEventPublisher(context.Background(), &EventPublisherConfig{Topic: "t"})
	assert.Error(t, err)
}

func TestNoOpEventPublisher(t *testing.T) {
	p := NewNoOpEventPublisher()
	assert.NoError(t, p.PublishOutcome(context.Background(), succeededCheckout(t)))
	assert.NoError(t, p.Close())
}
