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

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository returns a gorm-backed CardRepository.
func NewCardRepository(db *gorm.DB) repository.CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(ctx context.Context, card *domain.Card) error {
	m := mapCardToModel(card)
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	}); err != nil {
		return err
	}
	card.ID = m.ID
	card.CreatedAt = m.CreatedAt
	card.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *cardRepository) Get(ctx context.Context, id uint) (*domain.Card, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *cardRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Card, error) {
	return r.first(
		r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}),
		"id = ?", id,
	)
}

func (r *cardRepository) GetByNumber(ctx context.Context, number string) (*domain.Card, error) {
	return r.first(r.db.WithContext(ctx), "number = ?", domain.NormalizeCardNumber(number))
}

func (r *cardRepository) FindByAddressOrNumber(ctx context.Context, value string) (*domain.Card, error) {
	return r.first(
		r.db.WithContext(ctx),
		"btc_address = ? OR eth_address = ? OR number = ?",
		value, value, domain.NormalizeCardNumber(value),
	)
}

func (r *cardRepository) ListByUser(ctx context.Context, userID uint) ([]*domain.Card, error) {
	var rows []Card
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	cards := make([]*domain.Card, 0, len(rows))
	for i := range rows {
		c, err := mapModelToCard(&rows[i])
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func (r *cardRepository) UpdateBalance(
	ctx context.Context,
	id uint,
	code currency.Code,
	value decimal.Decimal,
) error {
	column := "balance"
	switch code {
	case currency.BTC:
		column = "btc_balance"
	case currency.ETH:
		column = "eth_balance"
	}
	if value.IsNegative() {
		return fmt.Errorf("refusing negative %s balance for card %d", code, id)
	}
	res := r.db.WithContext(ctx).Model(&Card{}).Where("id = ?", id).
		Update(column, currency.Format(value, code))
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *cardRepository) UpdateDetails(ctx context.Context, card *domain.Card) error {
	res := r.db.WithContext(ctx).Model(&Card{}).Where("id = ?", card.ID).Updates(map[string]any{
		"number": card.Number,
		"expiry": card.Expiry,
		"cvv":    card.CVV,
	})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *cardRepository) first(db *gorm.DB, query string, args ...any) (*domain.Card, error) {
	var m Card
	if err := WrapError(func() error {
		return db.Where(query, args...).First(&m).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToCard(&m)
}

func mapCardToModel(c *domain.Card) *Card {
	m := &Card{
		ID:         c.ID,
		UserID:     c.UserID,
		Type:       string(c.Type),
		Number:     domain.NormalizeCardNumber(c.Number),
		Expiry:     c.Expiry,
		CVV:        c.CVV,
		Balance:    currency.Format(c.Balance, c.Currency()),
		BtcBalance: currency.Format(c.BtcBalance, currency.BTC),
		EthBalance: currency.Format(c.EthBalance, currency.ETH),
	}
	if c.IsCrypto() {
		m.Balance = "0"
	}
	if c.BtcAddress != "" {
		m.BtcAddress = &c.BtcAddress
	}
	if c.EthAddress != "" {
		m.EthAddress = &c.EthAddress
	}
	return m
}

func mapModelToCard(m *Card) (*domain.Card, error) {
	balance, err := parseAmount(m.Balance)
	if err != nil {
		return nil, fmt.Errorf("card %d balance: %w", m.ID, err)
	}
	btc, err := parseAmount(m.BtcBalance)
	if err != nil {
		return nil, fmt.Errorf("card %d btc balance: %w", m.ID, err)
	}
	eth, err := parseAmount(m.EthBalance)
	if err != nil {
		return nil, fmt.Errorf("card %d eth balance: %w", m.ID, err)
	}
	c := &domain.Card{
		ID:         m.ID,
		UserID:     m.UserID,
		Type:       domain.CardType(m.Type),
		Number:     m.Number,
		Expiry:     m.Expiry,
		CVV:        m.CVV,
		Balance:    balance,
		BtcBalance: btc,
		EthBalance: eth,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.BtcAddress != nil {
		c.BtcAddress = *m.BtcAddress
	}
	if m.EthAddress != nil {
		c.EthAddress = *m.EthAddress
	}
	return c, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
