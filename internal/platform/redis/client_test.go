package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberverify/internal/platform/config"
)

func TestNewWithoutURLReturnsNil(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewConnectsAndReportsHealth(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), config.RedisConfig{
		URL:      "redis://" + mr.Addr(),
		PoolSize: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Health(context.Background()))
	assert.Equal(t, 4, client.Options().PoolSize)

	mr.Close()
	assert.Error(t, client.Health(context.Background()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{
		URL:         "redis://" + addr,
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestApplyOverridesKeepsURLValues(t *testing.T) {
	opts := &goredis.Options{PoolSize: 7, ReadTimeout: time.Second}
	applyOverrides(opts, config.RedisConfig{WriteTimeout: 2 * time.Second})

	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
}
