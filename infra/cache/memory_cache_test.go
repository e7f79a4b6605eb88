package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRates() *domain.ExchangeRates {
	return &domain.ExchangeRates{
		UsdToUah: decimal.RequireFromString("40.5"),
		BtcToUsd: decimal.RequireFromString("60000"),
		EthToUsd: decimal.RequireFromString("3000"),
		Source:   "test",
	}
}

func TestMemoryCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache is a miss")

	in := sampleRates()
	require.NoError(t, c.Set(ctx, in, time.Minute))
	in.Source = "mutated"

	got, err = c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test", got.Source)
	assert.True(t, got.UsdToUah.Equal(decimal.RequireFromString("40.5")))

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry is a miss")
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, sampleRates(), time.Hour))
	require.NoError(t, c.Delete(ctx))
	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
