package domain

import (
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/shopspring/decimal"
)

// ExchangeRates is one append-only snapshot of the rates every conversion
// uses. The most recent row is the current snapshot.
type ExchangeRates struct {
	ID        uint            `json:"id"`
	UsdToUah  decimal.Decimal `json:"usdToUah"`
	BtcToUsd  decimal.Decimal `json:"btcToUsd"`
	EthToUsd  decimal.Decimal `json:"ethToUsd"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Rates returns the snapshot in calculator form.
func (r *ExchangeRates) Rates() currency.Rates {
	return currency.Rates{
		UsdToUah: r.UsdToUah,
		BtcToUsd: r.BtcToUsd,
		EthToUsd: r.EthToUsd,
	}
}
