package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRates is returned when a rate snapshot has a missing or non-positive rate.
	ErrInvalidRates = errors.New("invalid exchange rates")
	// ErrUnsupported is returned for currencies the ledger cannot convert.
	ErrUnsupported = errors.New("unsupported currency")
)

// Rates is one exchange-rate snapshot. Every conversion pivots through USD.
type Rates struct {
	UsdToUah decimal.Decimal
	BtcToUsd decimal.Decimal
	EthToUsd decimal.Decimal
}

// Validate checks that every rate is strictly positive.
func (r Rates) Validate() error {
	if !r.UsdToUah.IsPositive() {
		return fmt.Errorf("%w: usdToUah must be positive", ErrInvalidRates)
	}
	if !r.BtcToUsd.IsPositive() {
		return fmt.Errorf("%w: btcToUsd must be positive", ErrInvalidRates)
	}
	if !r.EthToUsd.IsPositive() {
		return fmt.Errorf("%w: ethToUsd must be positive", ErrInvalidRates)
	}
	return nil
}

func (r Rates) rate(c Code) (decimal.Decimal, error) {
	var v decimal.Decimal
	switch c {
	case USD, KICH:
		return decimal.NewFromInt(1), nil
	case UAH:
		v = r.UsdToUah
	case BTC:
		v = r.BtcToUsd
	case ETH:
		v = r.EthToUsd
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, c)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no positive rate for %s", ErrInvalidRates, c)
	}
	return v, nil
}

// ToUSD converts amount of c into USD without rounding.
func (r Rates) ToUSD(amount decimal.Decimal, c Code) (decimal.Decimal, error) {
	v, err := r.rate(c)
	if err != nil {
		return decimal.Zero, err
	}
	if c == UAH {
		return amount.Div(v), nil
	}
	return amount.Mul(v), nil
}

// FromUSD converts a USD amount into c without rounding.
func (r Rates) FromUSD(usd decimal.Decimal, c Code) (decimal.Decimal, error) {
	v, err := r.rate(c)
	if err != nil {
		return decimal.Zero, err
	}
	if c == UAH {
		return usd.Mul(v), nil
	}
	return usd.Div(v), nil
}

// Convert moves amount from one currency to another through USD and rounds
// the result to the destination precision. Same-currency conversion only rounds.
func (r Rates) Convert(amount decimal.Decimal, from, to Code) (decimal.Decimal, error) {
	if from == to {
		if !from.IsSupported() {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupported, from)
		}
		return Round(amount, to), nil
	}
	usd, err := r.ToUSD(amount, from)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := r.FromUSD(usd, to)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(out, to), nil
}
