//go:build integration

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/testutils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a Redis container and returns its URL.
func startRedis(tb testing.TB) string {
	tb.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7.0.5",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(tb, err, "failed to start Redis container")
	tb.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(tb, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(tb, err)
	return "redis://" + host + ":" + port.Port()
}

func TestRedisEventBus_HandlerReceivesEvent(t *testing.T) {
	bus, err := NewWithRedis(startRedis(t), "ledger:events", "ledger", testutils.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan eventbus.Event, 1)
	bus.Register(eventbus.TransferCompleted, func(_ context.Context, e eventbus.Event) error {
		received <- e
		return nil
	})

	e := eventbus.NewEvent(eventbus.TransferCompleted, sampleTransfer())
	require.NoError(t, bus.Emit(context.Background(), e))

	select {
	case got := <-received:
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, "10.00", got.Amount)
	case <-time.After(10 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestRedisEventBus_FailedHandlerGoesToDLQ(t *testing.T) {
	url := startRedis(t)
	bus, err := NewWithRedis(url, "ledger:events", "ledger", testutils.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	bus.Register(eventbus.CryptoSent, func(context.Context, eventbus.Event) error {
		return assert.AnError
	})
	require.NoError(t, bus.Emit(context.Background(), eventbus.NewEvent(eventbus.CryptoSent, sampleTransfer())))

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	require.Eventually(t, func() bool {
		n, err := client.XLen(context.Background(), "ledger:events-DLQ").Result()
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)
}
