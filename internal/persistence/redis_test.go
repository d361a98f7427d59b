package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := ConnectRedis(ctx, config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(ctx))

	mr.Close()
	assert.Error(t, rdb.Ping(ctx))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, rdb)

	var missing *Redis
	assert.Error(t, missing.Ping(context.Background()))
}
