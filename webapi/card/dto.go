package card

import (
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	cryptosvc "github.com/kichcoin/ledger/pkg/service/crypto"
)

// TransferRequest represents the request body for a card-to-card transfer.
// Amounts travel as strings so no precision is lost in JSON.
type TransferRequest struct {
	ToCardNumber string `json:"toCardNumber" validate:"required,max=32"`
	Amount       string `json:"amount" validate:"required"`
}

// CryptoTransferRequest represents the request body for a BTC or ETH send.
// Recipient is a card number or a blockchain address.
type CryptoTransferRequest struct {
	Recipient  string `json:"recipient" validate:"required,max=128"`
	Amount     string `json:"amount" validate:"required"`
	CryptoType string `json:"cryptoType" validate:"omitempty,oneof=btc eth BTC ETH"`
}

// TransactionDTO is the public view of a ledger row.
type TransactionDTO struct {
	ID              uint      `json:"id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	FromCardNumber  string    `json:"fromCardNumber"`
	ToCardNumber    string    `json:"toCardNumber,omitempty"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ConvertedAmount string    `json:"convertedAmount"`
	TargetCurrency  string    `json:"targetCurrency"`
	TotalDebit      string    `json:"totalDebit,omitempty"`
	DebitCurrency   string    `json:"debitCurrency,omitempty"`
	BtcCommission   string    `json:"btcCommission"`
	SettlementMode  string    `json:"settlementMode,omitempty"`
	ExternalTxID    string    `json:"externalTxId,omitempty"`
	RefundOf        *uint     `json:"refundOf,omitempty"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TransferResponse wraps the outcome of a transfer.
type TransferResponse struct {
	Success        bool           `json:"success"`
	Transaction    TransactionDTO `json:"transaction"`
	SettlementMode string         `json:"settlementMode,omitempty"`
	Warning        string         `json:"warning,omitempty"`
}

func toTransactionDTO(tx *domain.Transaction) TransactionDTO {
	target := tx.TargetCurrency
	if target == "" {
		target = tx.Currency
	}
	dto := TransactionDTO{
		ID:              tx.ID,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		FromCardNumber:  tx.FromCardNumber,
		ToCardNumber:    tx.ToCardNumber,
		Amount:          currency.Format(tx.Amount, tx.Currency),
		Currency:        string(tx.Currency),
		ConvertedAmount: currency.Format(tx.ConvertedAmount, target),
		TargetCurrency:  string(target),
		BtcCommission:   currency.Format(tx.BtcCommission, currency.BTC),
		SettlementMode:  string(tx.SettlementMode),
		ExternalTxID:    tx.ExternalTxID,
		RefundOf:        tx.RefundOf,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt,
	}
	if tx.DebitCurrency != "" {
		dto.TotalDebit = currency.Format(tx.TotalDebit, tx.DebitCurrency)
		dto.DebitCurrency = string(tx.DebitCurrency)
	}
	return dto
}

func toCryptoResponse(res *cryptosvc.Result) TransferResponse {
	return TransferResponse{
		Success:        true,
		Transaction:    toTransactionDTO(res.Transaction),
		SettlementMode: string(res.SettlementMode),
		Warning:        res.Warning,
	}
}
