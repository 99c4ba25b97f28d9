package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ErrMalformedMessage marks a message that can never be processed and should not be retried.
var ErrMalformedMessage = errors.New("malformed order event")

var validate = validator.New()

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Event *models.OrderEvent
}

func newIncomingMessage(msg kafka.Message) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
	}
}

// ParseOrderEvent decodes and validates the message value. The order inherits the envelope's shop
// when it carries none; a conflicting shop is rejected.
func (m *IncomingMessage) ParseOrderEvent() (*models.OrderEvent, error) {
	event, err := ParseOrderEvent(m.Value)
	if err != nil {
		return nil, err
	}
	m.Event = event
	return event, nil
}

// ParseOrderEvent decodes a JSON order event
func ParseOrderEvent(data []byte) (*models.OrderEvent, error) {
	var event models.OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if event.Order.ID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrMalformedMessage)
	}
	if event.Order.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: order created_at is required", ErrMalformedMessage)
	}

	switch event.Order.ShopID {
	case "":
		event.Order.ShopID = event.ShopID
	case event.ShopID:
	default:
		return nil, fmt.Errorf("%w: order shop %q does not match event shop %q", ErrMalformedMessage, event.Order.ShopID, event.ShopID)
	}

	return &event, nil
}

// GetShopID returns the shop of the parsed event, falling back to the shop_id header
func (m *IncomingMessage) GetShopID() string {
	if m.Event != nil {
		return m.Event.ShopID
	}
	return m.Headers["shop_id"]
}

// GetOrderID returns the order of the parsed event
func (m *IncomingMessage) GetOrderID() string {
	if m.Event != nil {
		return m.Event.Order.ID
	}
	return ""
}

// OrderKey is the partition key for order events: all events of one order land on one partition.
func OrderKey(shopID, orderID string) string {
	return shopID + "/" + orderID
}
