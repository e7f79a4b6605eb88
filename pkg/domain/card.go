package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/shopspring/decimal"
)

// CardType is the denomination of a card.
type CardType string

const (
	CardUSD      CardType = "usd"
	CardUAH      CardType = "uah"
	CardCrypto   CardType = "crypto"
	CardKichcoin CardType = "kichcoin"
)

// CardTypes lists every type a user receives one card of at registration.
var CardTypes = []CardType{CardUSD, CardUAH, CardCrypto, CardKichcoin}

// ParseCardType validates s as a card type.
func ParseCardType(s string) (CardType, error) {
	t := CardType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case CardUSD, CardUAH, CardCrypto, CardKichcoin:
		return t, nil
	}
	return "", Invalid("card type", fmt.Sprintf("unsupported card type %q", s))
}

// Currency is the card's native unit. Crypto cards default to BTC.
func (t CardType) Currency() currency.Code {
	switch t {
	case CardUSD:
		return currency.USD
	case CardUAH:
		return currency.UAH
	case CardKichcoin:
		return currency.KICH
	default:
		return currency.BTC
	}
}

// Card is a balance-holding instrument owned by a user.
type Card struct {
	ID         uint
	UserID     uint
	Type       CardType
	Number     string
	Expiry     string
	CVV        string
	Balance    decimal.Decimal
	BtcBalance decimal.Decimal
	EthBalance decimal.Decimal
	BtcAddress string
	EthAddress string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Currency is the unit plain transfers move on this card.
func (c *Card) Currency() currency.Code {
	return c.Type.Currency()
}

// IsCrypto reports whether the card holds BTC/ETH balances.
func (c *Card) IsCrypto() bool {
	return c.Type == CardCrypto
}

// Holds reports whether the card keeps a balance in code.
func (c *Card) Holds(code currency.Code) bool {
	if c.IsCrypto() {
		return code == currency.BTC || code == currency.ETH
	}
	return code == c.Currency()
}

// BalanceIn returns the balance kept in code.
func (c *Card) BalanceIn(code currency.Code) decimal.Decimal {
	switch {
	case c.IsCrypto() && code == currency.BTC:
		return c.BtcBalance
	case c.IsCrypto() && code == currency.ETH:
		return c.EthBalance
	case !c.IsCrypto() && code == c.Currency():
		return c.Balance
	}
	return decimal.Zero
}

// SetBalance stores v, rounded to the precision of code, in the matching field.
func (c *Card) SetBalance(code currency.Code, v decimal.Decimal) {
	v = currency.Round(v, code)
	switch {
	case c.IsCrypto() && code == currency.BTC:
		c.BtcBalance = v
	case c.IsCrypto() && code == currency.ETH:
		c.EthBalance = v
	default:
		c.Balance = v
	}
}

// Debit subtracts amount of code, refusing to go negative.
func (c *Card) Debit(code currency.Code, amount decimal.Decimal) error {
	available := c.BalanceIn(code)
	if available.LessThan(amount) {
		return &InsufficientFundsError{Currency: code, Available: available, Required: amount}
	}
	c.SetBalance(code, available.Sub(amount))
	return nil
}

// Credit adds amount of code.
func (c *Card) Credit(code currency.Code, amount decimal.Decimal) {
	c.SetBalance(code, c.BalanceIn(code).Add(amount))
}

// AddressFor returns the card's receiving address for crypto code.
func (c *Card) AddressFor(code currency.Code) string {
	switch code {
	case currency.BTC:
		return c.BtcAddress
	case currency.ETH:
		return c.EthAddress
	}
	return ""
}

// NormalizeCardNumber strips all whitespace from a card number.
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

// MaskCardNumber keeps the last four digits visible.
func MaskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
