package cache

import (
	"context"
	"time"

	"github.com/kichcoin/ledger/pkg/domain"
)

// RateCache holds the most recent exchange-rate snapshot.
// Get returns (nil, nil) on a miss or when the entry expired.
type RateCache interface {
	Get(ctx context.Context) (*domain.ExchangeRates, error)
	Set(ctx context.Context, rates *domain.ExchangeRates, ttl time.Duration) error
	Delete(ctx context.Context) error
}
