package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

const validEvent = `{
	"event_type": "orders/create",
	"shop_id": "shop-1",
	"order": {
		"id": "1002",
		"customer_email": "jane@example.com",
		"line_items": [{"sku": "MUG", "quantity": 1}, {"sku": null, "quantity": 3}],
		"created_at": "2025-03-14T12:00:00Z"
	}
}`

func TestParseOrderEvent(t *testing.T) {
	t.Run("valid event inherits shop", func(t *testing.T) {
		event, err := ParseOrderEvent([]byte(validEvent))
		require.NoError(t, err)
		assert.Equal(t, models.OrderEventCreated, event.EventType)
		assert.Equal(t, "shop-1", event.Order.ShopID)
		assert.Equal(t, "1002", event.Order.ID)
		require.Len(t, event.Order.LineItems, 2)
		assert.Nil(t, event.Order.LineItems[1].SKU)
		assert.Nil(t, event.Order.ShippingAddress)
	})

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"unknown event type", `{"event_type":"orders/paid","shop_id":"shop-1","order":{"id":"1","created_at":"2025-03-14T12:00:00Z"}}`},
		{"missing shop", `{"event_type":"orders/create","order":{"id":"1","created_at":"2025-03-14T12:00:00Z"}}`},
		{"missing order id", `{"event_type":"orders/create","shop_id":"shop-1","order":{"created_at":"2025-03-14T12:00:00Z"}}`},
		{"missing created_at", `{"event_type":"orders/create","shop_id":"shop-1","order":{"id":"1"}}`},
		{"shop mismatch", `{"event_type":"orders/create","shop_id":"shop-1","order":{"id":"1","shop_id":"shop-2","created_at":"2025-03-14T12:00:00Z"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrderEvent([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishAlert(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, "duplicate-alerts", testLogger())

	alert := models.DuplicateAlert{
		ShopID:         "shop-1",
		OrderID:        "1002",
		MatchedOrderID: "1001",
		Confidence:     100,
		Reason:         "Same email, Same SKU",
	}
	require.NoError(t, producer.PublishAlert(context.Background(), alert))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "duplicate-alerts", msg.Topic)
	assert.Equal(t, "shop-1/1002", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, AlertEventType, headers["event_type"])
	assert.Equal(t, "shop-1", headers["shop_id"])

	var published models.DuplicateAlert
	require.NoError(t, json.Unmarshal(msg.Value, &published))
	assert.Equal(t, "1001", published.MatchedOrderID)
	assert.False(t, published.DetectedAt.IsZero())
}

func TestProducer_PublishAlert_Error(t *testing.T) {
	producer := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "duplicate-alerts", testLogger())
	assert.Error(t, producer.PublishAlert(context.Background(), models.DuplicateAlert{ShopID: "shop-1"}))
}

type fakeDLQ struct {
	entries []*models.DeadLetter
}

func (d *fakeDLQ) Add(_ context.Context, entry *models.DeadLetter) (string, error) {
	d.entries = append(d.entries, entry)
	return "1-0", nil
}

var errRetry = errors.New("try again")

func newTestConsumer(handler MessageHandler, dlq *fakeDLQ) *Consumer {
	return &Consumer{
		logger:    testLogger(),
		handler:   handler,
		retryable: func(err error) bool { return errors.Is(err, errRetry) },
		dlq:       dlq,
		config:    ConsumerConfig{MaxAttempts: 3, RetryBackoff: time.Millisecond},
	}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	msg := kafka.Message{Topic: "orders", Partition: 2, Offset: 42, Key: []byte("shop-1/1002"), Value: []byte(validEvent)}

	t.Run("success commits", func(t *testing.T) {
		dlq := &fakeDLQ{}
		var got *models.OrderEvent
		c := newTestConsumer(func(_ context.Context, m *IncomingMessage) error {
			got = m.Event
			return nil
		}, dlq)

		assert.True(t, c.processMessage(context.Background(), msg))
		require.NotNil(t, got)
		assert.Equal(t, "1002", got.Order.ID)
		assert.Empty(t, dlq.entries)
	})

	t.Run("malformed is dead-lettered and committed", func(t *testing.T) {
		dlq := &fakeDLQ{}
		called := false
		c := newTestConsumer(func(context.Context, *IncomingMessage) error {
			called = true
			return nil
		}, dlq)

		bad := msg
		bad.Value = []byte(`{"event_type":"nope"}`)
		assert.True(t, c.processMessage(context.Background(), bad))
		assert.False(t, called)
		require.Len(t, dlq.entries, 1)
		assert.Equal(t, models.DeadLetterMalformed, dlq.entries[0].Reason)
		assert.Equal(t, int64(42), dlq.entries[0].Offset)
	})

	t.Run("retryable error retried then succeeds", func(t *testing.T) {
		dlq := &fakeDLQ{}
		calls := 0
		c := newTestConsumer(func(context.Context, *IncomingMessage) error {
			calls++
			if calls < 3 {
				return errRetry
			}
			return nil
		}, dlq)

		assert.True(t, c.processMessage(context.Background(), msg))
		assert.Equal(t, 3, calls)
		assert.Empty(t, dlq.entries)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		dlq := &fakeDLQ{}
		calls := 0
		c := newTestConsumer(func(context.Context, *IncomingMessage) error {
			calls++
			return errRetry
		}, dlq)

		assert.True(t, c.processMessage(context.Background(), msg))
		assert.Equal(t, 3, calls)
		require.Len(t, dlq.entries, 1)
		assert.Equal(t, models.DeadLetterRetriesExhausted, dlq.entries[0].Reason)
		assert.Equal(t, "shop-1", dlq.entries[0].ShopID)
		assert.Equal(t, "1002", dlq.entries[0].OrderID)
		assert.Equal(t, 3, dlq.entries[0].Attempts)
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		dlq := &fakeDLQ{}
		calls := 0
		c := newTestConsumer(func(context.Context, *IncomingMessage) error {
			calls++
			return errors.New("boom")
		}, dlq)

		assert.True(t, c.processMessage(context.Background(), msg))
		assert.Equal(t, 1, calls)
		require.Len(t, dlq.entries, 1)
		assert.Equal(t, models.DeadLetterRejected, dlq.entries[0].Reason)
	})

	t.Run("shutdown mid-retry leaves message uncommitted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := newTestConsumer(func(context.Context, *IncomingMessage) error {
			cancel()
			return errRetry
		}, &fakeDLQ{})
		c.config.RetryBackoff = time.Hour

		assert.False(t, c.processMessage(ctx, msg))
	})
}
