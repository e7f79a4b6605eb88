package domain

import (
	"errors"
	"testing"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCardNumber(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "4111111111111111", NormalizeCardNumber(" 4111 1111\t1111 1111\n"))
	assert.Equal(t, "************1111", MaskCardNumber("4111111111111111"))
}

func TestCard_DebitCredit(t *testing.T) {
	t.Parallel()

	fiat := &Card{Type: CardUSD, Balance: decimal.RequireFromString("100")}
	require.NoError(t, fiat.Debit(currency.USD, decimal.RequireFromString("50.50")))
	assert.Equal(t, "49.50", fiat.Balance.StringFixed(2))

	err := fiat.Debit(currency.USD, decimal.RequireFromString("50"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, "Insufficient USD. Available: 49.50 USD, required: 50.00 USD", err.Error())
	assert.Equal(t, "49.50", fiat.Balance.StringFixed(2), "failed debit must not mutate")

	crypto := &Card{Type: CardCrypto, BtcBalance: decimal.RequireFromString("0.001")}
	err = crypto.Debit(currency.BTC, decimal.RequireFromString("0.00202"))
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Contains(t, err.Error(), "Available: 0.00100000 BTC")

	crypto.Credit(currency.ETH, decimal.RequireFromString("1.123456789"))
	assert.Equal(t, "1.12345679", crypto.EthBalance.StringFixed(8))
	assert.True(t, crypto.Holds(currency.ETH))
	assert.False(t, crypto.Holds(currency.USD))
	assert.True(t, fiat.BalanceIn(currency.BTC).IsZero())
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	ct, err := ParseCardType("Crypto")
	require.NoError(t, err)
	assert.Equal(t, CardCrypto, ct)
	assert.Equal(t, currency.BTC, ct.Currency())
	assert.Equal(t, currency.KICH, CardKichcoin.Currency())

	_, err = ParseCardType("gold")
	assert.ErrorIs(t, err, ErrValidation)

	typ, err := ParseCryptoType("")
	require.NoError(t, err)
	assert.Equal(t, CryptoBTC, typ)
	assert.Equal(t, 3, typ.ConfirmationsRequired())
	assert.Equal(t, 12, CryptoETH.ConfirmationsRequired())

	_, err = ParseCryptoType("doge")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err := NotFound("sender card")
	assert.Equal(t, "sender card not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	err = Invalid("amount", "must be positive")
	assert.Equal(t, "invalid amount: must be positive", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	tx := &Transaction{Description: Describe(SettlementSimulated, "BTC transfer to bc1q")}
	assert.Equal(t, "[SIMULATION] BTC transfer to bc1q", tx.Description)
	assert.True(t, tx.IsSimulated())
	assert.Equal(t, "plain", Describe(SettlementNone, "plain"))
}
