// Package redis holds the Redis-backed coordination primitives: per-order locks and the dead letter stream.
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Config holds the connection settings for the Redis instance.
type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int           // zero keeps the go-redis default
	DialTimeout time.Duration // also bounds the initial ping
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	return &redis.Options{
		Addr:        c.Addr(),
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: dial,
	}
}

// Client is the shared connection used by Locker and DeadLetterQueue.
type Client struct {
	rdb    redis.UniversalClient
	logger ectologger.Logger
}

// NewClient connects to Redis and fails when the server does not answer a ping.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	opts := cfg.options()
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s is unreachable: %w", opts.Addr, err)
	}

	logger.WithFields(map[string]any{"addr": opts.Addr, "db": opts.DB}).Info("Connected to Redis")
	return NewClientFromRedis(rdb, logger), nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(rdb redis.UniversalClient, logger ectologger.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the underlying client.
func (c *Client) Redis() redis.UniversalClient {
	return c.rdb
}

// PingContext probes the server. It satisfies the health checker's Pinger.
func (c *Client) PingContext(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
