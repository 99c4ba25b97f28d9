package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultDLQStream = "clover:dlq"

	// DLQMaxLen caps the stream; the oldest entries are trimmed first.
	DLQMaxLen = 10000

	defaultListCount = 100

	// entryField holds the JSON-encoded models.DeadLetter. shop_id and reason are copied
	// alongside it so the stream can be inspected with redis-cli.
	entryField = "data"
)

var errMalformedEntry = errors.New("dead letter entry has no data field")

// DLQMessage is a dead letter together with the stream ID used to address it.
type DLQMessage struct {
	MessageID string            `json:"message_id"`
	Entry     models.DeadLetter `json:"entry"`
}

// DeadLetterQueue parks order events the consumer gave up on, for inspection and replay.
type DeadLetterQueue struct {
	client *Client
	stream string
	logger ectologger.Logger
}

func NewDeadLetterQueue(client *Client, stream string, logger ectologger.Logger) *DeadLetterQueue {
	if stream == "" {
		stream = DefaultDLQStream
	}
	return &DeadLetterQueue{client: client, stream: stream, logger: logger}
}

// Add stamps entry with an ID, timestamp and trace ID where missing and appends it. It returns
// the stream message ID.
func (d *DeadLetterQueue) Add(ctx context.Context, entry *models.DeadLetter) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Add")
	defer span.End()

	stamp(ctx, entry)
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encoding dead letter %s: %w", entry.ID, err)
	}

	id, err := d.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: []any{entryField, string(data), "shop_id", entry.ShopID, "reason", string(entry.Reason)},
	}).Result()
	if err != nil {
		tracing.RecordError(span, err)
		return "", fmt.Errorf("appending to %s: %w", d.stream, err)
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"message_id": id,
		"shop_id":    entry.ShopID,
		"order_id":   entry.OrderID,
		"reason":     entry.Reason,
		"attempts":   entry.Attempts,
	}).Warn("Order event dead-lettered")
	return id, nil
}

// List returns up to count entries, newest first. Undecodable entries are skipped.
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.List")
	defer span.End()

	if count <= 0 {
		count = defaultListCount
	}
	msgs, err := d.client.rdb.XRevRangeN(ctx, d.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.stream, err)
	}

	out := make([]DLQMessage, 0, len(msgs))
	for _, msg := range msgs {
		entry, err := decodeEntry(msg)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).WithField("message_id", msg.ID).Warn("Skipping undecodable dead letter")
			continue
		}
		out = append(out, DLQMessage{MessageID: msg.ID, Entry: *entry})
	}
	return out, nil
}

// Get returns the entry with the given stream ID, or nil when there is none.
func (d *DeadLetterQueue) Get(ctx context.Context, messageID string) (*models.DeadLetter, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Get")
	defer span.End()

	msgs, err := d.client.rdb.XRange(ctx, d.stream, messageID, messageID).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("reading %s from %s: %w", messageID, d.stream, err)
	case len(msgs) == 0:
		return nil, nil
	}
	return decodeEntry(msgs[0])
}

// Delete removes an entry. An unknown ID is a 404.
func (d *DeadLetterQueue) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Delete")
	defer span.End()

	n, err := d.client.rdb.XDel(ctx, d.stream, messageID).Result()
	if err != nil {
		return fmt.Errorf("deleting %s from %s: %w", messageID, d.stream, err)
	}
	if n == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "DLQ entry %s not found", messageID)
	}

	d.logger.WithContext(ctx).WithField("message_id", messageID).Info("Dead letter removed")
	return nil
}

// Count returns the stream length.
func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.rdb.XLen(ctx, d.stream).Result()
}

func stamp(ctx context.Context, entry *models.DeadLetter) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.TraceID == "" {
		entry.TraceID = tracing.GetTraceID(ctx)
	}
}

func decodeEntry(msg redis.XMessage) (*models.DeadLetter, error) {
	raw, ok := msg.Values[entryField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMalformedEntry, msg.ID)
	}
	var entry models.DeadLetter
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decoding dead letter %s: %w", msg.ID, err)
	}
	return &entry, nil
}
