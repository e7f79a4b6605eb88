package domain

import (
	"strings"
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TransactionTransfer       TransactionType = "transfer"
	TransactionCommission     TransactionType = "commission"
	TransactionCryptoTransfer TransactionType = "crypto_transfer"
	TransactionExchange       TransactionType = "exchange"
	TransactionRefund         TransactionType = "refund"
)

// TransactionStatus is the lifecycle state of a ledger row.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// SettlementMode tells how a crypto transfer was (or was not) settled.
type SettlementMode string

const (
	SettlementNone       SettlementMode = ""
	SettlementInternal   SettlementMode = "internal"
	SettlementBlockchain SettlementMode = "blockchain"
	SettlementSimulated  SettlementMode = "simulated"
)

// Marker is prepended to the description of rows whose settlement mode
// needs to be recognizable from text alone.
func (m SettlementMode) Marker() string {
	switch m {
	case SettlementInternal:
		return "[INTERNAL]"
	case SettlementBlockchain:
		return "[BLOCKCHAIN]"
	case SettlementSimulated:
		return "[SIMULATION]"
	}
	return ""
}

// Pseudo card numbers frozen on system-generated rows.
const (
	RegulatorCardNumber = "REGULATOR"
	SystemCardNumber    = "SYSTEM"
)

// Transaction is an append-only ledger row.
type Transaction struct {
	ID              uint
	FromCardID      uint
	ToCardID        *uint
	Amount          decimal.Decimal
	ConvertedAmount decimal.Decimal
	Currency        currency.Code
	TargetCurrency  currency.Code
	Type            TransactionType
	Status          TransactionStatus
	FromCardNumber  string
	ToCardNumber    string
	Description     string
	// TotalDebit is what left the sender, commission included, in
	// DebitCurrency. Refunds credit exactly this back.
	TotalDebit    decimal.Decimal
	DebitCurrency currency.Code
	// BtcCommission is what the regulator was credited for this row.
	BtcCommission  decimal.Decimal
	Wallet         string
	SettlementMode SettlementMode
	ExternalTxID   string
	RefundOf       *uint
	CreatedAt      time.Time
}

// IsSimulated reports whether the row records a send that never reached a
// blockchain.
func (t *Transaction) IsSimulated() bool {
	return t.SettlementMode == SettlementSimulated ||
		strings.HasPrefix(t.Description, SettlementSimulated.Marker())
}

// Describe prefixes text with the settlement marker, if any.
func Describe(mode SettlementMode, text string) string {
	if m := mode.Marker(); m != "" {
		return m + " " + text
	}
	return text
}
