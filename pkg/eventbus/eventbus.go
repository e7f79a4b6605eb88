// Package eventbus carries ledger events to whoever follows the ledger:
// audit feeds, notifications, reconciliation jobs. Events are emitted after
// the transaction that produced them has committed.
package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
)

// EventType names what happened.
type EventType string

const (
	TransferCompleted  EventType = "transfer.completed"
	CryptoSent         EventType = "crypto.sent"
	SettlementRefunded EventType = "settlement.refunded"
)

func (t EventType) String() string { return string(t) }

// Event is the wire form of a ledger event. Amounts are decimal strings in
// the precision of their currency.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	TransactionID  uint      `json:"transactionId"`
	FromCardID     uint      `json:"fromCardId"`
	ToCardID       *uint     `json:"toCardId,omitempty"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	BtcCommission  string    `json:"btcCommission"`
	SettlementMode string    `json:"settlementMode,omitempty"`
	ExternalTxID   string    `json:"externalTxId,omitempty"`
	RefundOf       *uint     `json:"refundOf,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewEvent describes tx as an event of type t.
func NewEvent(t EventType, tx *domain.Transaction) Event {
	occurred := tx.CreatedAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		TransactionID:  tx.ID,
		FromCardID:     tx.FromCardID,
		ToCardID:       tx.ToCardID,
		Amount:         currency.Format(tx.Amount, tx.Currency),
		Currency:       string(tx.Currency),
		BtcCommission:  currency.Format(tx.BtcCommission, currency.BTC),
		SettlementMode: string(tx.SettlementMode),
		ExternalTxID:   tx.ExternalTxID,
		RefundOf:       tx.RefundOf,
		OccurredAt:     occurred,
	}
}

// HandlerFunc consumes one event.
type HandlerFunc func(ctx context.Context, e Event) error

// Publisher emits events.
type Publisher interface {
	Emit(ctx context.Context, e Event) error
}

// Bus is a Publisher that can also deliver events to handlers.
type Bus interface {
	Publisher
	Register(t EventType, handler HandlerFunc)
}

// Publish emits tx as an event of type t. Delivery is best effort: the
// ledger row is already committed, so a failure is logged and swallowed.
// A nil Publisher does nothing.
func Publish(ctx context.Context, p Publisher, logger *slog.Logger, t EventType, tx *domain.Transaction) {
	if p == nil || tx == nil {
		return
	}
	e := NewEvent(t, tx)
	if err := p.Emit(ctx, e); err != nil && logger != nil {
		logger.Warn("Failed to publish ledger event",
			"event_type", t, "transaction_id", tx.ID, "error", err)
	}
}
