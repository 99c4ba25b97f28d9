package redis

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestLocker_Key(t *testing.T) {
	l := NewLocker(nil, "")
	assert.Equal(t, "clover:lock:order:shop-1:1001", l.Key(OrderKey("shop-1", "1001")))

	custom := NewLocker(nil, "test:")
	assert.Equal(t, "test:order:shop-1:1001", custom.Key(OrderKey("shop-1", "1001")))
}

func TestOrderKey_ScopedPerShop(t *testing.T) {
	assert.NotEqual(t, OrderKey("shop-1", "1001"), OrderKey("shop-2", "1001"))
}

func TestDecodeEntry(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		entry, err := decodeEntry(goredis.XMessage{
			ID:     "1-0",
			Values: map[string]any{"data": `{"id":"x","order_id":"1001","reason":"malformed","payload":"{"}`},
		})
		require.NoError(t, err)
		assert.Equal(t, "1001", entry.OrderID)
		assert.Equal(t, "{", entry.Payload)
	})

	t.Run("missing data field", func(t *testing.T) {
		_, err := decodeEntry(goredis.XMessage{ID: "1-0", Values: map[string]any{}})
		assert.ErrorIs(t, err, errMalformedEntry)
	})
}

func TestConfig_Options(t *testing.T) {
	opts := Config{Host: "redis.internal", Port: 6380, DB: 2}.options()
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, defaultDialTimeout, opts.DialTimeout)

	assert.Equal(t, "[::1]:6379", Config{Host: "::1", Port: 6379}.Addr())
}

func TestStamp(t *testing.T) {
	entry := &models.DeadLetter{OrderID: "1001"}
	stamp(context.Background(), entry)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Empty(t, entry.TraceID)

	kept := &models.DeadLetter{ID: "dl-1"}
	stamp(context.Background(), kept)
	assert.Equal(t, "dl-1", kept.ID)
}

func TestDecodeEntry_MalformedJSON(t *testing.T) {
	_, err := decodeEntry(goredis.XMessage{ID: "2-0", Values: map[string]any{"data": "{"}})
	assert.ErrorContains(t, err, "2-0")
}
