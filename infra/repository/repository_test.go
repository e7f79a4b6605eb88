package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() }) //nolint:errcheck
	require.NoError(t, Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, regulator bool) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Password: "hash", IsRegulator: regulator}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func TestCardRepository_RoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	owner := seedUser(t, db, "alice", false)
	repo := NewCardRepository(db)

	crypto := &domain.Card{
		UserID:     owner.ID,
		Type:       domain.CardCrypto,
		Number:     "4000 0000 0000 0002",
		Expiry:     "10/30",
		CVV:        "321",
		BtcBalance: decimal.RequireFromString("0.5"),
		BtcAddress: "bc1qexampleaddress0000000000000000000000",
		EthAddress: "0x1111111111111111111111111111111111111111",
	}
	require.NoError(t, repo.Create(ctx, crypto))
	require.NotZero(t, crypto.ID)

	byNumber, err := repo.GetByNumber(ctx, "4000000000000002")
	require.NoError(t, err)
	assert.Equal(t, crypto.ID, byNumber.ID)
	assert.Equal(t, "0.50000000", byNumber.BtcBalance.StringFixed(8))

	byAddr, err := repo.FindByAddressOrNumber(ctx, crypto.EthAddress)
	require.NoError(t, err)
	assert.Equal(t, crypto.ID, byAddr.ID)

	byNum, err := repo.FindByAddressOrNumber(ctx, "4000 0000 0000 0002")
	require.NoError(t, err)
	assert.Equal(t, crypto.ID, byNum.ID)

	_, err = repo.FindByAddressOrNumber(ctx, "bc1qunknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.UpdateBalance(ctx, crypto.ID, currency.ETH, decimal.RequireFromString("1.25")))
	locked, err := repo.GetForUpdate(ctx, crypto.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.25000000", locked.EthBalance.StringFixed(8))
	assert.Equal(t, "0.50000000", locked.BtcBalance.StringFixed(8))

	assert.Error(t, repo.UpdateBalance(ctx, crypto.ID, currency.BTC, decimal.RequireFromString("-1")))
	assert.ErrorIs(t, repo.UpdateBalance(ctx, 9999, currency.USD, decimal.Zero), domain.ErrNotFound)
}

func TestCardRepository_DuplicateNumberIsRetryable(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	owner := seedUser(t, db, "bob", false)
	repo := NewCardRepository(db)

	first := &domain.Card{UserID: owner.ID, Type: domain.CardUSD, Number: "4000000000000010", Expiry: "01/30", CVV: "111"}
	require.NoError(t, repo.Create(ctx, first))

	dup := &domain.Card{UserID: owner.ID, Type: domain.CardUAH, Number: "4000000000000010", Expiry: "01/30", CVV: "222"}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.True(t, IsRetryable(err))
}

func TestUserRepository_RegulatorAndCascade(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	cards := NewCardRepository(db)

	_, err := users.GetRegulator(ctx, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	reg := seedUser(t, db, "regulator", true)
	require.NoError(t, users.UpdateRegulatorBalance(ctx, reg.ID, decimal.RequireFromString("0.00000833")))
	got, err := users.GetRegulator(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "0.00000833", got.RegulatorBalance.StringFixed(8))

	holder := seedUser(t, db, "carol", false)
	assert.ErrorIs(t, users.UpdateRegulatorBalance(ctx, holder.ID, decimal.NewFromInt(1)), domain.ErrNotFound)

	card := &domain.Card{UserID: holder.ID, Type: domain.CardUSD, Number: "4000000000000028", Expiry: "01/30", CVV: "333"}
	require.NoError(t, cards.Create(ctx, card))

	require.NoError(t, users.Delete(ctx, holder.ID))
	_, err = cards.Get(ctx, card.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = users.Get(ctx, holder.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionRepository_RefundsAndPending(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	repo := NewTransactionRepository(db)

	send := &domain.Transaction{
		FromCardID:      1,
		Amount:          decimal.RequireFromString("0.002"),
		ConvertedAmount: decimal.RequireFromString("0.002"),
		Currency:        currency.BTC,
		Type:            domain.TransactionCryptoTransfer,
		Status:          domain.StatusPending,
		FromCardNumber:  "4000000000000036",
		ToCardNumber:    "bc1qexternal",
		Wallet:          "bc1qexternal",
		SettlementMode:  domain.SettlementBlockchain,
		ExternalTxID:    "abc123",
	}
	require.NoError(t, repo.Create(ctx, send))
	other := *send
	other.ID = 0
	other.ExternalTxID = "def456"
	require.NoError(t, repo.Create(ctx, &other))
	assert.Greater(t, other.ID, send.ID)

	pending, err := repo.ListPendingSettlements(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = repo.FindRefundFor(ctx, send.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	refund := &domain.Transaction{
		FromCardID:      1,
		ToCardID:        &send.FromCardID,
		Amount:          decimal.RequireFromString("0.00202"),
		ConvertedAmount: decimal.RequireFromString("0.00202"),
		Currency:        currency.BTC,
		Type:            domain.TransactionRefund,
		Status:          domain.StatusCompleted,
		FromCardNumber:  domain.SystemCardNumber,
		ToCardNumber:    send.FromCardNumber,
		RefundOf:        &send.ID,
	}
	require.NoError(t, repo.Create(ctx, refund))

	found, err := repo.FindRefundFor(ctx, send.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, found.ID)

	second := *refund
	second.ID = 0
	err = repo.Create(ctx, &second)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists, "refund_of is unique")

	pending, err = repo.ListPendingSettlements(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "def456", pending[0].ExternalTxID)

	list, err := repo.ListByCard(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, refund.ID, list[0].ID)
}

func TestExchangeRateRepository_Latest(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	repo := NewExchangeRateRepository(db)

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrRatesUnavailable)

	for _, uah := range []string{"40.5", "41.25"} {
		require.NoError(t, repo.Create(ctx, &domain.ExchangeRates{
			UsdToUah: decimal.RequireFromString(uah),
			BtcToUsd: decimal.RequireFromString("60000"),
			EthToUsd: decimal.RequireFromString("3000"),
			Source:   "test",
		}))
	}
	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.UsdToUah.Equal(decimal.RequireFromString("41.25")))
	assert.False(t, latest.UpdatedAt.IsZero())
}
