package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/triage"
)

const cacheKeyPrefix = "helpdesk:completion:"

// CachedCompleter serves repeated prompts from redis. Redis failures fall
// through to the wrapped completer; only successful completions are cached.
type CachedCompleter struct {
	next   triage.Completer
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedCompleter wraps next with a redis cache.
func NewCachedCompleter(next triage.Completer, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCompleter{next: next, client: client, ttl: ttl, logger: logger}
}

// Complete implements triage.Completer.
func (c *CachedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	key := cacheKey(system, user)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("completion cache read failed", zap.Error(err))
	}

	text, err := c.next.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Warn("completion cache write failed", zap.Error(err))
	}
	return text, nil
}

func cacheKey(system, user string) string {
	sum := sha256.Sum256([]byte(system + "\x00" + user))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
