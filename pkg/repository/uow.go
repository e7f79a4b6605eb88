package repository

import (
	"context"
)

// UnitOfWork defines the contract for transactional work and type-safe repository access.
//
// Repositories obtained from the UnitOfWork passed to Do are bound to that
// transaction; repositories obtained outside Do use the plain session.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	// If the function returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	CardRepository() (CardRepository, error)
	UserRepository() (UserRepository, error)
	TransactionRepository() (TransactionRepository, error)
	ExchangeRateRepository() (ExchangeRateRepository, error)
}
