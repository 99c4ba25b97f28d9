package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MessageHandler processes incoming Kafka messages
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// DeadLetterSink parks messages that cannot be processed
type DeadLetterSink interface {
	Add(ctx context.Context, entry *models.DeadLetter) (string, error)
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	MaxAttempts   int           // Handler attempts for retryable errors before dead-lettering (default: 5)
	RetryBackoff  time.Duration // Initial delay between attempts, doubled each time (default: 200ms)
}

// Consumer handles Kafka message consumption
type Consumer struct {
	reader    *kafka.Reader
	logger    ectologger.Logger
	handler   MessageHandler
	retryable func(error) bool
	dlq       DeadLetterSink
	config    ConsumerConfig
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// NewConsumer creates a new Kafka consumer. retryable classifies handler errors; dlq may be nil.
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler, retryable func(error) bool, dlq DeadLetterSink) *Consumer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		logger:    logger,
		handler:   handler,
		retryable: retryable,
		dlq:       dlq,
		config:    cfg,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.config.Topic,
		"group": c.config.ConsumerGroup,
	}).Info("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.WithContext(ctx).Info("Consumer loop stopping")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
				continue
			}

			if c.processMessage(ctx, msg) {
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithContext(ctx).WithError(err).Error("Failed to commit message")
				}
			}
		}
	}
}

// processMessage reports whether the message is finished with and may be committed. Only shutdown
// mid-retry leaves a message uncommitted, so it is redelivered to the next group member.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) bool {
	incoming := newIncomingMessage(msg)

	ctx = tracing.ExtractHeaders(ctx, incoming.Headers)
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"key":       incoming.Key,
	})

	if _, err := incoming.ParseOrderEvent(); err != nil {
		log.WithError(err).Error("Failed to parse order event")
		c.deadLetter(ctx, incoming, models.DeadLetterMalformed, err, 0)
		return true
	}

	backoff := c.config.RetryBackoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, incoming)
		if err == nil {
			return true
		}

		if !c.retryable(err) {
			log.WithError(err).Error("Failed to process order event")
			c.deadLetter(ctx, incoming, models.DeadLetterRejected, err, attempt)
			return true
		}

		if attempt >= c.config.MaxAttempts {
			log.WithError(err).WithField("attempts", attempt).Error("Giving up on order event")
			c.deadLetter(ctx, incoming, models.DeadLetterRetriesExhausted, err, attempt)
			return true
		}

		log.WithError(err).WithField("attempt", attempt).Warn("Retryable failure processing order event")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg *IncomingMessage, reason models.DeadLetterReason, cause error, attempts int) {
	if c.dlq == nil {
		return
	}

	entry := &models.DeadLetter{
		ShopID:       msg.GetShopID(),
		OrderID:      msg.GetOrderID(),
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		Key:          msg.Key,
		Payload:      string(msg.Value),
		Reason:       reason,
		ErrorMessage: cause.Error(),
		Attempts:     attempts,
	}
	if _, err := c.dlq.Add(ctx, entry); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to dead-letter order event")
		return
	}
	metrics.RecordDLQMessage(string(reason))
}

// Health returns the consumer health status
func (c *Consumer) Health() bool {
	return c.reader != nil
}
