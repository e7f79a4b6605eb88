package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateQuote is a partial snapshot returned by one feed. A feed only fills the
// pairs it knows about; zero values mean "not provided".
type RateQuote struct {
	UsdToUah  decimal.Decimal
	BtcToUsd  decimal.Decimal
	EthToUsd  decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// RateFeed defines the interface for external exchange rate sources.
type RateFeed interface {
	// Fetch returns the feed's current quotes.
	Fetch(ctx context.Context) (*RateQuote, error)

	// Name returns the feed's name for logging and identification.
	Name() string
}
