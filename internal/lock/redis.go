package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block other processes.
const DefaultTTL = 30 * time.Second

// ErrNotObtained is returned when the lock stayed busy for every retry.
var ErrNotObtained = errors.New("lock not obtained")

// RedisLocker obtains locks from Redis so that several processes sharing one
// database never finalize the same count concurrently.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets the lock expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPrefix namespaces every key.
func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithRetry sets how Acquire waits on a busy key.
func WithRetry(retry redislock.RetryStrategy) RedisOption {
	return func(l *RedisLocker) {
		l.retry = retry
	}
}

// NewRedisLocker wraps an existing go-redis client.
func NewRedisLocker(rdb redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: redislock.New(rdb),
		prefix: "conteo:lock:",
		ttl:    DefaultTTL,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 300),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DialRedis connects to addr and pings it once.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return rdb, nil
}

// Acquire obtains the lock for key, retrying until the retry strategy gives
// up or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (release func(), err error) {
	lockKey := l.prefix + key
	lk, err := l.client.Obtain(ctx, lockKey, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("acquire %s: %w", lockKey, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
	}

	return func() {
		// The caller's context may already be cancelled; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			slog.Warn("failed to release redis lock", "key", lockKey, "error", err)
		}
	}, nil
}
