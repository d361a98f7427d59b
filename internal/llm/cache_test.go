package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-triage/internal/config"
)

type countingCompleter struct {
	calls int
	text  string
	err   error
}

func (c *countingCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	return c.text, c.err
}

func newCache(t *testing.T, next *countingCompleter) (*CachedCompleter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedCompleter(next, client, time.Minute, nil), mr
}

func TestCachedCompleter_ServesRepeatFromCache(t *testing.T) {
	next := &countingCompleter{text: "CATEGORY: network"}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	first, err := cache.Complete(ctx, "sys", "wifi down")
	require.NoError(t, err)
	second, err := cache.Complete(ctx, "sys", "wifi down")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists(cacheKey("sys", "wifi down")))

	_, err = cache.Complete(ctx, "sys", "printer jam")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedCompleter_DoesNotCacheErrors(t *testing.T) {
	next := &countingCompleter{err: errors.New("boom")}
	cache, mr := newCache(t, next)

	_, err := cache.Complete(context.Background(), "sys", "user")
	assert.Error(t, err)
	assert.False(t, mr.Exists(cacheKey("sys", "user")))
}

func TestCachedCompleter_RedisDownFallsThrough(t *testing.T) {
	next := &countingCompleter{text: "ok"}
	cache, mr := newCache(t, next)
	mr.Close()

	text, err := cache.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestScriptedCompleter(t *testing.T) {
	var mock ScriptedCompleter
	ctx := context.Background()

	text, err := mock.Complete(ctx, "analyse", "My laptop cannot connect to the office wifi since this morning")
	require.NoError(t, err)
	assert.Contains(t, text, "CATEGORY: network")
	assert.Contains(t, text, "Steps to Resolve:")

	again, _ := mock.Complete(ctx, "analyse", "My laptop cannot connect to the office wifi since this morning")
	assert.Equal(t, text, again)
}

func TestNewCompleter(t *testing.T) {
	completer, err := NewCompleter(config.AgentConfig{Mock: true}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, ScriptedCompleter{}, completer)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	completer, err = NewCompleter(config.AgentConfig{Mock: true, CacheTTLSeconds: 60}, client, nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedCompleter{}, completer)

	_, err = NewCompleter(config.AgentConfig{}, nil, nil)
	assert.Error(t, err)
}
