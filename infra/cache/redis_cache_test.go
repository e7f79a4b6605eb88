//go:build integration

package cache

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisCache(tb testing.TB) *RedisRateCache {
	tb.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7.0.5",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(tb, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(tb, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	c, err := NewRedisRateCache("redis://"+host+":"+port.Port(), "test:rates:", logger)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = c.Close() })
	require.NoError(tb, c.Ping(ctx))
	return c
}

func TestRedisRateCache_RoundTrip(t *testing.T) {
	c := setupRedisCache(t)
	ctx := context.Background()

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, sampleRates(), time.Minute))
	got, err = c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "40.5", got.UsdToUah.String())
	assert.Equal(t, "test", got.Source)

	require.NoError(t, c.Delete(ctx))
	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisRateCache_TTL(t *testing.T) {
	c := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleRates(), time.Second))
	time.Sleep(1500 * time.Millisecond)
	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
