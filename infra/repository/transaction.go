package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository returns a gorm-backed TransactionRepository.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	m := mapTransactionToModel(tx)
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	}); err != nil {
		return err
	}
	tx.ID = m.ID
	tx.CreatedAt = m.CreatedAt
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id uint) (*domain.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).First(&m, id).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToTransaction(&m)
}

func (r *transactionRepository) ListByCard(
	ctx context.Context,
	cardID uint,
	limit int,
) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Where("from_card_id = ? OR to_card_id = ?", cardID, cardID).
			Order("id DESC").
			Limit(limit).
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	return mapTransactions(rows)
}

func (r *transactionRepository) FindRefundFor(ctx context.Context, originalID uint) (*domain.Transaction, error) {
	var m Transaction
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Where("refund_of = ? AND type = ?", originalID, string(domain.TransactionRefund)).
			First(&m).Error
	}); err != nil {
		return nil, err
	}
	return mapModelToTransaction(&m)
}

func (r *transactionRepository) ListPendingSettlements(
	ctx context.Context,
	since time.Time,
) ([]*domain.Transaction, error) {
	var rows []Transaction
	refunded := r.db.Model(&Transaction{}).Select("refund_of").Where("refund_of IS NOT NULL")
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Where("type = ? AND status = ? AND settlement_mode = ?",
				string(domain.TransactionCryptoTransfer),
				string(domain.StatusPending),
				string(domain.SettlementBlockchain)).
			Where("external_tx_id IS NOT NULL AND created_at >= ?", since).
			Where("id NOT IN (?)", refunded).
			Order("id").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}
	return mapTransactions(rows)
}

func mapTransactions(rows []Transaction) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := mapModelToTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func mapTransactionToModel(tx *domain.Transaction) *Transaction {
	target := tx.TargetCurrency
	if target == "" {
		target = tx.Currency
	}
	m := &Transaction{
		FromCardID:      tx.FromCardID,
		ToCardID:        tx.ToCardID,
		Amount:          currency.Format(tx.Amount, tx.Currency),
		ConvertedAmount: currency.Format(tx.ConvertedAmount, target),
		Currency:        string(tx.Currency),
		TargetCurrency:  string(target),
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		FromCardNumber:  tx.FromCardNumber,
		ToCardNumber:    tx.ToCardNumber,
		Description:     tx.Description,
		TotalDebit:      currency.Format(tx.TotalDebit, tx.DebitCurrency),
		DebitCurrency:   string(tx.DebitCurrency),
		BtcCommission:   currency.Format(tx.BtcCommission, currency.BTC),
		SettlementMode:  string(tx.SettlementMode),
		RefundOf:        tx.RefundOf,
	}
	if tx.Wallet != "" {
		m.Wallet = &tx.Wallet
	}
	if tx.ExternalTxID != "" {
		m.ExternalTxID = &tx.ExternalTxID
	}
	return m
}

func mapModelToTransaction(m *Transaction) (*domain.Transaction, error) {
	amount, err := parseAmount(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %d amount: %w", m.ID, err)
	}
	converted, err := parseAmount(m.ConvertedAmount)
	if err != nil {
		return nil, fmt.Errorf("transaction %d converted amount: %w", m.ID, err)
	}
	totalDebit, err := parseAmount(m.TotalDebit)
	if err != nil {
		return nil, fmt.Errorf("transaction %d total debit: %w", m.ID, err)
	}
	btcCommission, err := parseAmount(m.BtcCommission)
	if err != nil {
		return nil, fmt.Errorf("transaction %d btc commission: %w", m.ID, err)
	}
	tx := &domain.Transaction{
		ID:              m.ID,
		FromCardID:      m.FromCardID,
		ToCardID:        m.ToCardID,
		Amount:          amount,
		ConvertedAmount: converted,
		Currency:        currency.Code(m.Currency),
		TargetCurrency:  currency.Code(m.TargetCurrency),
		Type:            domain.TransactionType(m.Type),
		Status:          domain.TransactionStatus(m.Status),
		FromCardNumber:  m.FromCardNumber,
		ToCardNumber:    m.ToCardNumber,
		Description:     m.Description,
		TotalDebit:      totalDebit,
		DebitCurrency:   currency.Code(m.DebitCurrency),
		BtcCommission:   btcCommission,
		SettlementMode:  domain.SettlementMode(m.SettlementMode),
		RefundOf:        m.RefundOf,
		CreatedAt:       m.CreatedAt,
	}
	if m.Wallet != nil {
		tx.Wallet = *m.Wallet
	}
	if m.ExternalTxID != nil {
		tx.ExternalTxID = *m.ExternalTxID
	}
	return tx, nil
}
