package repository

import (
	"context"
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/shopspring/decimal"
)

// CardRepository stores cards and their balances.
//
// The ForUpdate variants take a row lock held until the enclosing transaction
// ends; callers lock cards in ascending id order.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	Get(ctx context.Context, id uint) (*domain.Card, error)
	GetForUpdate(ctx context.Context, id uint) (*domain.Card, error)
	GetByNumber(ctx context.Context, number string) (*domain.Card, error)
	// FindByAddressOrNumber matches a BTC address, an ETH address or a card
	// number. It returns domain.ErrNotFound when nothing matches.
	FindByAddressOrNumber(ctx context.Context, value string) (*domain.Card, error)
	ListByUser(ctx context.Context, userID uint) ([]*domain.Card, error)
	// UpdateBalance writes value into the balance column that holds code.
	UpdateBalance(ctx context.Context, id uint, code currency.Code, value decimal.Decimal) error
	// UpdateDetails rewrites number, expiry and CVV.
	UpdateDetails(ctx context.Context, card *domain.Card) error
}

// UserRepository stores users, including the single regulator.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id uint) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetRegulator(ctx context.Context, forUpdate bool) (*domain.User, error)
	UpdateRegulatorBalance(ctx context.Context, id uint, value decimal.Decimal) error
	// Delete removes the user and, by cascade, its cards.
	Delete(ctx context.Context, id uint) error
}

// TransactionRepository appends ledger rows.
type TransactionRepository interface {
	// Create inserts tx and sets tx.ID from the store's identity column.
	Create(ctx context.Context, tx *domain.Transaction) error
	Get(ctx context.Context, id uint) (*domain.Transaction, error)
	ListByCard(ctx context.Context, cardID uint, limit int) ([]*domain.Transaction, error)
	// FindRefundFor returns the refund row compensating originalID, or
	// domain.ErrNotFound.
	FindRefundFor(ctx context.Context, originalID uint) (*domain.Transaction, error)
	// ListPendingSettlements returns pending blockchain sends created after
	// since that have no refund yet.
	ListPendingSettlements(ctx context.Context, since time.Time) ([]*domain.Transaction, error)
}

// ExchangeRateRepository appends and reads rate snapshots.
type ExchangeRateRepository interface {
	Latest(ctx context.Context) (*domain.ExchangeRates, error)
	Create(ctx context.Context, rates *domain.ExchangeRates) error
}
