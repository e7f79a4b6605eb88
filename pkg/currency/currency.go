// Package currency holds the currencies a card can be denominated in and the
// fixed-precision arithmetic used to convert between them.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is a currency identifier.
type Code string

const (
	USD  Code = "USD"
	UAH  Code = "UAH"
	KICH Code = "KICH"
	BTC  Code = "BTC"
	ETH  Code = "ETH"
)

// Meta holds currency-specific metadata
type Meta struct {
	Decimals int32
	Symbol   string
	Crypto   bool
}

var registry = map[Code]Meta{
	USD:  {Decimals: 2, Symbol: "$"},
	UAH:  {Decimals: 2, Symbol: "₴"},
	KICH: {Decimals: 2, Symbol: "K"},
	BTC:  {Decimals: 8, Symbol: "₿", Crypto: true},
	ETH:  {Decimals: 8, Symbol: "Ξ", Crypto: true},
}

// Parse normalizes s and returns the matching supported code.
func Parse(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := registry[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// IsSupported reports whether c is one of the ledger currencies.
func (c Code) IsSupported() bool {
	_, ok := registry[c]
	return ok
}

// IsCrypto reports whether c is settled on a blockchain.
func (c Code) IsCrypto() bool {
	return registry[c].Crypto
}

func (c Code) String() string { return string(c) }

// Precision returns the number of decimal places amounts in c are kept at.
// Unknown codes use two places.
func Precision(c Code) int32 {
	if m, ok := registry[c]; ok {
		return m.Decimals
	}
	return 2
}

// Round rounds amount half away from zero to the precision of c.
func Round(amount decimal.Decimal, c Code) decimal.Decimal {
	return amount.Round(Precision(c))
}

// Format renders amount with exactly the precision of c, e.g. "0.00100000".
func Format(amount decimal.Decimal, c Code) string {
	return amount.StringFixed(Precision(c))
}

// Unit is the smallest representable amount of c.
func Unit(c Code) decimal.Decimal {
	return decimal.New(1, -Precision(c))
}
