package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/testutil"
)

func TestNewRedisClientConnects(t *testing.T) {
	mr, _ := testutil.NewRedis(t)
	rdb, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, zerolog.Nop())
	require.NoError(t, err)
	defer rdb.Close()

	assert.NoError(t, RedisPing(rdb)(context.Background()))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "not a url"}, zerolog.Nop())
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := pingWithRetry(ctx, zerolog.Nop(), "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPingWithRetryRecovers(t *testing.T) {
	calls := 0
	err := pingWithRetry(context.Background(), zerolog.Nop(), "test", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("warming up")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
