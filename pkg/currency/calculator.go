package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the share of every transfer paid to the regulator.
var DefaultCommissionRate = decimal.NewFromFloat(0.01)

// ErrNonPositiveAmount is returned when a transfer amount is zero or negative.
var ErrNonPositiveAmount = errors.New("amount must be greater than zero")

// Quote is the full arithmetic of one transfer, computed against a single
// rate snapshot.
type Quote struct {
	From Code
	To   Code
	// Amount is the requested amount in From, rounded to its precision.
	Amount decimal.Decimal
	// Commission is taken in From on top of Amount.
	Commission decimal.Decimal
	// TotalDebit is Amount + Commission, in From.
	TotalDebit decimal.Decimal
	// Converted is Amount expressed in To.
	Converted decimal.Decimal
	// CommissionUSD is Commission expressed in USD, unrounded.
	CommissionUSD decimal.Decimal
	// BtcCommission is what the regulator is credited, in BTC.
	BtcCommission decimal.Decimal
}

// Calculator computes commission and conversion for transfers.
type Calculator struct {
	CommissionRate decimal.Decimal
}

// NewCalculator returns a Calculator charging rate. A non-positive rate
// falls back to DefaultCommissionRate.
func NewCalculator(rate decimal.Decimal) Calculator {
	if !rate.IsPositive() {
		rate = DefaultCommissionRate
	}
	return Calculator{CommissionRate: rate}
}

// Compute returns the quote for moving amount of from into to.
func (c Calculator) Compute(amount decimal.Decimal, from, to Code, rates Rates) (Quote, error) {
	if !from.IsSupported() {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupported, from)
	}
	if !to.IsSupported() {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupported, to)
	}
	amount = Round(amount, from)
	if !amount.IsPositive() {
		return Quote{}, ErrNonPositiveAmount
	}
	rate := c.CommissionRate
	if !rate.IsPositive() {
		rate = DefaultCommissionRate
	}

	commission := Round(amount.Mul(rate), from)
	q := Quote{
		From:       from,
		To:         to,
		Amount:     amount,
		Commission: commission,
		TotalDebit: amount.Add(commission),
	}

	converted, err := rates.Convert(amount, from, to)
	if err != nil {
		return Quote{}, err
	}
	q.Converted = converted

	q.CommissionUSD, err = rates.ToUSD(commission, from)
	if err != nil {
		return Quote{}, err
	}
	btc, err := rates.FromUSD(q.CommissionUSD, BTC)
	if err != nil {
		return Quote{}, err
	}
	q.BtcCommission = Round(btc, BTC)
	return q, nil
}

// ComputeTransfer uses DefaultCommissionRate.
func ComputeTransfer(amount decimal.Decimal, from, to Code, rates Rates) (Quote, error) {
	return NewCalculator(DefaultCommissionRate).Compute(amount, from, to, rates)
}
