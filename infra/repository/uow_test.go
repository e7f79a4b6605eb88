package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() }) //nolint:errcheck

	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestUoW_TypeSafeMethods(t *testing.T) {
	assert := assert.New(t)
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(txUow repository.UnitOfWork) error {
		cards, err := txUow.CardRepository()
		require.NoError(t, err)
		_, ok := cards.(*cardRepository)
		assert.True(ok)

		users, err := txUow.UserRepository()
		require.NoError(t, err)
		_, ok = users.(*userRepository)
		assert.True(ok)

		txs, err := txUow.TransactionRepository()
		require.NoError(t, err)
		_, ok = txs.(*transactionRepository)
		assert.True(ok)

		rates, err := txUow.ExchangeRateRepository()
		require.NoError(t, err)
		_, ok = rates.(*exchangeRateRepository)
		assert.True(ok)
		return nil
	})
	assert.NoError(err)
	assert.NoError(mock.ExpectationsWereMet())
}

func TestUoW_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := uow.Do(context.Background(), func(repository.UnitOfWork) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_GetForUpdateLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "number", "expiry", "cvv", "balance", "btc_balance", "eth_balance"}).
		AddRow(7, 1, "usd", "4111111111111111", "01/30", "123", "100.00", "0", "0")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cards" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(txUow repository.UnitOfWork) error {
		cards, err := txUow.CardRepository()
		require.NoError(t, err)
		card, err := cards.GetForUpdate(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, uint(7), card.ID)
		assert.Equal(t, "100.00", card.Balance.StringFixed(2))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
