package repository

import (
	"context"
	"fmt"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a gorm-backed UserRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	m := &User{
		Username:         user.Username,
		Password:         user.Password,
		IsRegulator:      user.IsRegulator,
		RegulatorBalance: currency.Format(user.RegulatorBalance, currency.BTC),
	}
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	}); err != nil {
		return err
	}
	user.ID = m.ID
	user.CreatedAt = m.CreatedAt
	user.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uint) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "username = ?", username)
}

func (r *userRepository) GetRegulator(ctx context.Context, forUpdate bool) (*domain.User, error) {
	db := r.db.WithContext(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(db.Order("id"), "is_regulator = ?", true)
}

func (r *userRepository) UpdateRegulatorBalance(ctx context.Context, id uint, value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("refusing negative regulator balance for user %d", id)
	}
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND is_regulator = ?", id, true).
		Update("regulator_balance", currency.Format(value, currency.BTC))
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := WrapError(func() error {
		return db.Where("user_id = ?", id).Delete(&Card{}).Error
	}); err != nil {
		return err
	}
	res := db.Delete(&User{}, id)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) first(db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var m User
	if err := WrapError(func() error {
		return db.Where(query, args...).First(&m).Error
	}); err != nil {
		return nil, err
	}
	balance, err := parseAmount(m.RegulatorBalance)
	if err != nil {
		return nil, fmt.Errorf("user %d regulator balance: %w", m.ID, err)
	}
	return &domain.User{
		ID:               m.ID,
		Username:         m.Username,
		Password:         m.Password,
		IsRegulator:      m.IsRegulator,
		RegulatorBalance: balance,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}
