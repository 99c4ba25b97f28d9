package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	AlertEventType = "duplicate.detected"
	SchemaVersion  = "1.0"
)

// MessageWriter is the subset of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes duplicate alerts and order events
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer over an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishAlert publishes a duplicate alert keyed by the flagged order
func (p *Producer) PublishAlert(ctx context.Context, alert models.DuplicateAlert) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishAlert")
	defer span.End()

	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(AlertEventType)},
		{Key: "shop_id", Value: []byte(alert.ShopID)},
		{Key: "schema_version", Value: []byte(SchemaVersion)},
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(OrderKey(alert.ShopID, alert.OrderID)),
		Value:   data,
		Headers: append(headers, traceHeaders(ctx)...),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish duplicate alert")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"shop_id":          alert.ShopID,
		"order_id":         alert.OrderID,
		"matched_order_id": alert.MatchedOrderID,
		"confidence":       alert.Confidence,
	}).Debug("Published duplicate alert")

	return nil
}

// PublishOrderEvent publishes an order event to the producer's topic, used to replay dead letters and seed test data
func (p *Producer) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishOrderEvent")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "shop_id", Value: []byte(event.ShopID)},
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(OrderKey(event.ShopID, event.Order.ID)),
		Value:   data,
		Headers: append(headers, traceHeaders(ctx)...),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish order event")
		return err
	}
	return nil
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := tracing.InjectHeaders(ctx)
	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
