// Package ledger holds the locking and lookup steps shared by every
// balance-moving operation. All functions expect to run inside a transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/shopspring/decimal"
)

// LockCards row-locks the given cards in ascending id order and returns them
// keyed by id. Locking in a fixed order keeps concurrent transfers between
// the same pair of cards from deadlocking.
func LockCards(ctx context.Context, cards repository.CardRepository, ids ...uint) (map[uint]*domain.Card, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	locked := make(map[uint]*domain.Card, len(unique))
	for _, id := range unique {
		card, err := cards.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = card
	}
	return locked, nil
}

// Sender loads the sending card without locking it.
func Sender(ctx context.Context, cards repository.CardRepository, id uint) (*domain.Card, error) {
	card, err := cards.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("sender card")
	}
	return card, err
}

// LockRegulator locks the regulator row. Every transfer takes this lock, so it
// is taken after the card locks and held only for the final writes.
func LockRegulator(ctx context.Context, users repository.UserRepository) (*domain.User, error) {
	return regulator(ctx, users, true)
}

// RequireRegulator fails with ErrRegulatorNotConfigured when there is no
// regulator, without locking its row.
func RequireRegulator(ctx context.Context, users repository.UserRepository) error {
	_, err := regulator(ctx, users, false)
	return err
}

func regulator(ctx context.Context, users repository.UserRepository, forUpdate bool) (*domain.User, error) {
	reg, err := users.GetRegulator(ctx, forUpdate)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrRegulatorNotConfigured
	}
	return reg, err
}

// LatestRates reads the snapshot every conversion of one operation uses.
func LatestRates(ctx context.Context, repo repository.ExchangeRateRepository) (currency.Rates, error) {
	snapshot, err := repo.Latest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return currency.Rates{}, domain.ErrRatesUnavailable
		}
		return currency.Rates{}, err
	}
	rates := snapshot.Rates()
	if err := rates.Validate(); err != nil {
		return currency.Rates{}, fmt.Errorf("%w: %w", domain.ErrRatesUnavailable, err)
	}
	return rates, nil
}

// QuoteError turns calculator input errors into validation errors.
func QuoteError(err error) error {
	switch {
	case errors.Is(err, currency.ErrNonPositiveAmount):
		return domain.Invalid("amount", "must be greater than zero")
	case errors.Is(err, currency.ErrUnsupported):
		return domain.Invalid("currency", err.Error())
	case errors.Is(err, currency.ErrInvalidRates):
		return fmt.Errorf("%w: %w", domain.ErrRatesUnavailable, err)
	}
	return err
}

// Repos bundles the repositories of one transaction.
type Repos struct {
	Cards        repository.CardRepository
	Users        repository.UserRepository
	Transactions repository.TransactionRepository
	Rates        repository.ExchangeRateRepository
}

// Open resolves every repository from uow.
func Open(uow repository.UnitOfWork) (*Repos, error) {
	cards, err := uow.CardRepository()
	if err != nil {
		return nil, err
	}
	users, err := uow.UserRepository()
	if err != nil {
		return nil, err
	}
	txs, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	rates, err := uow.ExchangeRateRepository()
	if err != nil {
		return nil, err
	}
	return &Repos{Cards: cards, Users: users, Transactions: txs, Rates: rates}, nil
}

// CreditRegulator adds a BTC commission to the locked regulator row.
func (r *Repos) CreditRegulator(ctx context.Context, reg *domain.User, btc decimal.Decimal) error {
	reg.RegulatorBalance = currency.Round(reg.RegulatorBalance.Add(btc), currency.BTC)
	return r.Users.UpdateRegulatorBalance(ctx, reg.ID, reg.RegulatorBalance)
}

// SaveBalance persists the in-memory balance of card in code.
func (r *Repos) SaveBalance(ctx context.Context, card *domain.Card, code currency.Code) error {
	return r.Cards.UpdateBalance(ctx, card.ID, code, card.BalanceIn(code))
}
