// Package testutils provides database fixtures shared by service and API tests.
package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	infrarepo "github.com/kichcoin/ledger/infra/repository"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLite opens a migrated in-memory database private to the test.
// A single connection serializes writers the way row locks would.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infrarepo.Migrate(db))
	return db
}

// NewExecutor builds a retry executor that never sleeps.
func NewExecutor(uow repository.UnitOfWork) *decorator.Executor {
	return decorator.NewExecutor(uow, infrarepo.IsRetryable,
		decorator.WithLogger(DiscardLogger()),
		decorator.WithJitter(func(time.Duration) time.Duration { return 0 }),
		decorator.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
}

// Ledger seeds rows directly through the repositories.
type Ledger struct {
	t   testing.TB
	db  *gorm.DB
	UoW *infrarepo.UoW
	seq int
}

// NewLedger opens a fresh sqlite ledger.
func NewLedger(t testing.TB) *Ledger {
	t.Helper()
	return NewLedgerFor(t, NewSQLite(t))
}

// NewLedgerFor wraps an existing database.
func NewLedgerFor(t testing.TB, db *gorm.DB) *Ledger {
	return &Ledger{t: t, db: db, UoW: infrarepo.NewUoW(db)}
}

func (l *Ledger) DB() *gorm.DB { return l.db }

// User creates a plain user.
func (l *Ledger) User(name string) *domain.User {
	l.t.Helper()
	u := &domain.User{Username: name, Password: "hash"}
	require.NoError(l.t, infrarepo.NewUserRepository(l.db).Create(context.Background(), u))
	return u
}

// Regulator creates the regulator account with the given BTC balance.
func (l *Ledger) Regulator(balance string) *domain.User {
	l.t.Helper()
	u := &domain.User{
		Username:         "regulator",
		Password:         "hash",
		IsRegulator:      true,
		RegulatorBalance: decimal.RequireFromString(balance),
	}
	require.NoError(l.t, infrarepo.NewUserRepository(l.db).Create(context.Background(), u))
	return u
}

// Card creates a card of the given type holding balance in its own currency.
func (l *Ledger) Card(owner *domain.User, typ domain.CardType, balance string) *domain.Card {
	l.t.Helper()
	l.seq++
	c := &domain.Card{
		UserID: owner.ID,
		Type:   typ,
		Number: fmt.Sprintf("4000%012d", l.seq),
		Expiry: "12/30",
		CVV:    "123",
	}
	if typ == domain.CardCrypto {
		c.BtcBalance = decimal.RequireFromString(balance)
		c.BtcAddress = fmt.Sprintf("bc1q%038d", l.seq)
		c.EthAddress = fmt.Sprintf("0x%040d", l.seq)
	} else {
		c.Balance = decimal.RequireFromString(balance)
	}
	require.NoError(l.t, infrarepo.NewCardRepository(l.db).Create(context.Background(), c))
	return c
}

// SetBalance overwrites one balance column of a card.
func (l *Ledger) SetBalance(card *domain.Card, code currency.Code, value string) {
	l.t.Helper()
	require.NoError(l.t, infrarepo.NewCardRepository(l.db).UpdateBalance(
		context.Background(), card.ID, code, decimal.RequireFromString(value)))
}

// Rates appends a rate snapshot.
func (l *Ledger) Rates(usdToUah, btcToUsd, ethToUsd string) *domain.ExchangeRates {
	l.t.Helper()
	r := &domain.ExchangeRates{
		UsdToUah: decimal.RequireFromString(usdToUah),
		BtcToUsd: decimal.RequireFromString(btcToUsd),
		EthToUsd: decimal.RequireFromString(ethToUsd),
		Source:   "test",
	}
	require.NoError(l.t, infrarepo.NewExchangeRateRepository(l.db).Create(context.Background(), r))
	return r
}

// Reload fetches the current state of a card.
func (l *Ledger) Reload(card *domain.Card) *domain.Card {
	l.t.Helper()
	c, err := infrarepo.NewCardRepository(l.db).Get(context.Background(), card.ID)
	require.NoError(l.t, err)
	return c
}

// RegulatorBalance reads the regulator's BTC balance.
func (l *Ledger) RegulatorBalance() decimal.Decimal {
	l.t.Helper()
	u, err := infrarepo.NewUserRepository(l.db).GetRegulator(context.Background(), false)
	require.NoError(l.t, err)
	return u.RegulatorBalance
}

// Transactions lists the rows touching a card, newest first.
func (l *Ledger) Transactions(card *domain.Card) []*domain.Transaction {
	l.t.Helper()
	txs, err := infrarepo.NewTransactionRepository(l.db).ListByCard(context.Background(), card.ID, 100)
	require.NoError(l.t, err)
	return txs
}

// CountTransactions counts every row in the transactions table.
func (l *Ledger) CountTransactions() int64 {
	l.t.Helper()
	var n int64
	require.NoError(l.t, l.db.Model(&infrarepo.Transaction{}).Count(&n).Error)
	return n
}
