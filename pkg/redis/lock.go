package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

const DefaultLockPrefix = "clover:lock:"

var (
	// ErrLockNotAcquired means another holder owns the key.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld means the lock expired or was taken over before release or renewal.
	ErrLockNotHeld = errors.New("lock not held")
)

// Both scripts act only when the caller's token still owns the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then return 0 end
return redis.call("del", KEYS[1])`)

	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then return 0 end
return redis.call("pexpire", KEYS[1], ARGV[2])`)
)

// OrderKey is the lock name serializing evaluations of one order within a shop.
func OrderKey(shopID, orderID string) string {
	return fmt.Sprintf("order:%s:%s", shopID, orderID)
}

// Locker hands out single-attempt, token-owned locks.
type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = DefaultLockPrefix
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Key returns the Redis key for a lock name.
func (l *Locker) Key(name string) string {
	return l.keyPrefix + name
}

type heldLock struct {
	key   string
	token string
}

func (l *Locker) acquire(ctx context.Context, name string, ttl time.Duration) (*heldLock, error) {
	lock := &heldLock{key: l.Key(name), token: uuid.NewString()}
	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", lock.key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

func (l *Locker) run(ctx context.Context, script *redis.Script, lock *heldLock, args ...any) error {
	n, err := script.Run(ctx, l.client.rdb, []string{lock.key}, append([]any{lock.token}, args...)...).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding the named lock. It makes one acquisition attempt and returns
// ErrLockNotAcquired when the lock is taken. The lock is renewed every ttl/2 while fn runs. If a
// renewal finds the lock gone, fn's context is cancelled and WithLock returns ErrLockNotHeld. A
// failed release is logged, not returned.
func (l *Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Locker.WithLock")
	defer span.End()

	lock, err := l.acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	log := l.client.logger.WithContext(ctx).WithField("lock", lock.key)
	log.Debug("Acquired lock")

	fnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		l.renew(fnCtx, lock, ttl, stop, cancel)
	}()

	err = fn(fnCtx)
	close(stop)
	<-renewed

	if lost := context.Cause(fnCtx); errors.Is(lost, ErrLockNotHeld) {
		tracing.RecordError(span, lost)
		return lost
	}

	if relErr := l.run(context.WithoutCancel(ctx), releaseScript, lock); relErr != nil {
		log.WithError(relErr).Warn("Failed to release lock")
	} else {
		log.Debug("Released lock")
	}
	return err
}

// renew extends the lock every ttl/2 until stop closes. When the lock is gone it cancels the
// holder with ErrLockNotHeld.
func (l *Locker) renew(ctx context.Context, lock *heldLock, ttl time.Duration, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := l.run(ctx, renewScript, lock, ttl.Milliseconds())
			if err == nil {
				continue
			}
			log := l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key)
			if errors.Is(err, ErrLockNotHeld) {
				log.Error("Lock lost while held, cancelling holder")
				cancel(fmt.Errorf("%w: %s", ErrLockNotHeld, lock.key))
				return
			}
			log.Warn("Failed to renew lock")
		}
	}
}
