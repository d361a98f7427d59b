package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotAcquired is returned when a lock could not be taken in time.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	defaultKeyPrefix = "helpdesk:lock:"
	initialBackoff   = 25 * time.Millisecond
	maxBackoff       = 500 * time.Millisecond
	releaseTimeout   = 2 * time.Second
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker serializes work per key across processes using SET NX PX.
type RedisLocker struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker builds a locker. ttl bounds how long a crashed holder can
// block others; wait bounds how long Lock retries.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		logger: logger,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		wait:   wait,
	}
}

// Lock retries until the key is acquired, the wait period elapses or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	backoff := initialBackoff
	for {
		ok, err := l.client.SetNX(waitCtx, fullKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrNotAcquired, fullKey)
			}
			return nil, fmt.Errorf("acquire %s: %w", fullKey, err)
		}
		if ok {
			return l.unlocker(fullKey, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, fullKey)
		case <-timer.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (l *RedisLocker) unlocker(fullKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			l.logger.Warn("release lock", zap.String("key", fullKey), zap.Error(err))
		}
	}
}
