// Package user registers card holders and bootstraps the regulator account.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/kichcoin/ledger/pkg/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLen = 50
	minPasswordLen = 6
)

// Service provides user registration and card management.
type Service struct {
	exec     *decorator.Executor
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option { return func(s *Service) { s.hashCost = cost } }

// WithClock overrides the clock used for card expiry.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a new Service with an executor and logger.
func New(exec *decorator.Executor, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		exec:     exec,
		logger:   logger.With("service", "user"),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with one card of every type.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, []*domain.Card, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, nil, err
	}
	hash, err := utils.HashPasswordCost(password, s.hashCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	type registered struct {
		user  *domain.User
		cards []*domain.Card
	}
	res, err := decorator.WithTransaction(ctx, s.exec, "register_user",
		func(ctx context.Context, uow repository.UnitOfWork) (*registered, error) {
			users, err := uow.UserRepository()
			if err != nil {
				return nil, err
			}
			cards, err := uow.CardRepository()
			if err != nil {
				return nil, err
			}
			if _, err := users.GetByUsername(ctx, username); err == nil {
				return nil, domain.ErrUsernameTaken
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}

			u := &domain.User{Username: username, Password: hash}
			if err := users.Create(ctx, u); err != nil {
				return nil, err
			}
			out := &registered{user: u}
			for _, t := range domain.CardTypes {
				card, err := s.newCard(u.ID, t)
				if err != nil {
					return nil, err
				}
				if err := cards.Create(ctx, card); err != nil {
					return nil, err
				}
				out.cards = append(out.cards, card)
			}
			return out, nil
		})
	if err != nil {
		s.logger.Warn("Registration failed", "username", username, "error", err)
		return nil, nil, err
	}
	s.logger.Info("User registered", "user_id", res.user.ID, "username", username, "cards", len(res.cards))
	return res.user, res.cards, nil
}

// EnsureRegulator returns the regulator, creating it when none exists.
func (s *Service) EnsureRegulator(ctx context.Context, username, password string) (*domain.User, error) {
	repo, err := s.exec.UnitOfWork().UserRepository()
	if err != nil {
		return nil, err
	}
	if reg, err := repo.GetRegulator(ctx, false); err == nil {
		return reg, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if username == "" {
		username = "regulator"
	}
	if password == "" {
		random, err := utils.RandomDigits(24)
		if err != nil {
			return nil, err
		}
		password = random
	}
	hash, err := utils.HashPasswordCost(password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	reg, err := decorator.WithTransaction(ctx, s.exec, "ensure_regulator",
		func(ctx context.Context, uow repository.UnitOfWork) (*domain.User, error) {
			users, err := uow.UserRepository()
			if err != nil {
				return nil, err
			}
			if reg, err := users.GetRegulator(ctx, true); err == nil {
				return reg, nil
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			reg := &domain.User{
				Username:         username,
				Password:         hash,
				IsRegulator:      true,
				RegulatorBalance: decimal.Zero,
			}
			if err := users.Create(ctx, reg); err != nil {
				return nil, err
			}
			return reg, nil
		})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Regulator ready", "user_id", reg.ID, "username", reg.Username)
	return reg, nil
}

// RegenerateCard issues a new number, expiry and CVV for a card of userID.
// Balances and addresses are kept.
func (s *Service) RegenerateCard(ctx context.Context, userID, cardID uint) (*domain.Card, error) {
	card, err := decorator.WithTransaction(ctx, s.exec, "regenerate_card",
		func(ctx context.Context, uow repository.UnitOfWork) (*domain.Card, error) {
			cards, err := uow.CardRepository()
			if err != nil {
				return nil, err
			}
			card, err := cards.GetForUpdate(ctx, cardID)
			if errors.Is(err, domain.ErrNotFound) || (err == nil && card.UserID != userID) {
				return nil, domain.NotFound("card")
			}
			if err != nil {
				return nil, err
			}
			if card.Number, err = utils.GenerateCardNumber(); err != nil {
				return nil, err
			}
			if card.CVV, err = utils.GenerateCVV(); err != nil {
				return nil, err
			}
			card.Expiry = utils.CardExpiry(s.now())
			if err := cards.UpdateDetails(ctx, card); err != nil {
				return nil, err
			}
			return card, nil
		})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Card regenerated", "user_id", userID, "card_id", cardID, "number", domain.MaskCardNumber(card.Number))
	return card, nil
}

// Delete removes a user and its cards. The regulator cannot be deleted.
func (s *Service) Delete(ctx context.Context, userID uint) error {
	_, err := decorator.WithTransaction(ctx, s.exec, "delete_user",
		func(ctx context.Context, uow repository.UnitOfWork) (struct{}, error) {
			users, err := uow.UserRepository()
			if err != nil {
				return struct{}{}, err
			}
			u, err := users.Get(ctx, userID)
			if errors.Is(err, domain.ErrNotFound) {
				return struct{}{}, domain.NotFound("user")
			}
			if err != nil {
				return struct{}{}, err
			}
			if u.IsRegulator {
				return struct{}{}, domain.Invalid("user", "the regulator account cannot be deleted")
			}
			return struct{}{}, users.Delete(ctx, userID)
		})
	if err != nil {
		return err
	}
	s.logger.Info("User deleted", "user_id", userID)
	return nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, userID uint) (*domain.User, error) {
	users, err := s.exec.UnitOfWork().UserRepository()
	if err != nil {
		return nil, err
	}
	u, err := users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("user")
	}
	return u, err
}

// Cards lists the cards of a user.
func (s *Service) Cards(ctx context.Context, userID uint) ([]*domain.Card, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	cards, err := s.exec.UnitOfWork().CardRepository()
	if err != nil {
		return nil, err
	}
	return cards.ListByUser(ctx, userID)
}

func (s *Service) newCard(userID uint, t domain.CardType) (*domain.Card, error) {
	number, err := utils.GenerateCardNumber()
	if err != nil {
		return nil, err
	}
	cvv, err := utils.GenerateCVV()
	if err != nil {
		return nil, err
	}
	card := &domain.Card{
		UserID: userID,
		Type:   t,
		Number: number,
		Expiry: utils.CardExpiry(s.now()),
		CVV:    cvv,
	}
	if t == domain.CardCrypto {
		if card.BtcAddress, err = utils.GenerateBtcAddress(); err != nil {
			return nil, err
		}
		if card.EthAddress, err = utils.GenerateEthAddress(); err != nil {
			return nil, err
		}
	}
	return card, nil
}

func validateCredentials(username, password string) error {
	switch {
	case username == "":
		return domain.Invalid("username", "is required")
	case len(username) > maxUsernameLen:
		return domain.Invalid("username", fmt.Sprintf("must be at most %d characters", maxUsernameLen))
	case len(password) < minPasswordLen:
		return domain.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	return nil
}
