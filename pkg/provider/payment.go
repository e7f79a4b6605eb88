package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable wraps gateway failures worth another attempt, such
// as 5xx answers.
var ErrGatewayUnavailable = errors.New("blockchain gateway unavailable")

// SettlementStatus is the on-chain state of a sent transaction.
type SettlementStatus string

const (
	// SettlementPending means the transaction has not reached the confirmation threshold yet.
	SettlementPending SettlementStatus = "pending"
	// SettlementCompleted means the transaction reached the confirmation threshold.
	SettlementCompleted SettlementStatus = "completed"
	// SettlementFailed means the transaction was rejected or double spent.
	SettlementFailed SettlementStatus = "failed"
)

// SendMode is how the gateway executed a send.
type SendMode string

const (
	SendInternal   SendMode = "internal"
	SendBlockchain SendMode = "blockchain"
	SendSimulated  SendMode = "simulated"
)

// SimulatedTxPrefix marks transaction ids that never touched a chain.
const SimulatedTxPrefix = "sim_"

// SendRequest asks the gateway to move coins to an external address.
type SendRequest struct {
	Coin   string
	From   string
	To     string
	Amount decimal.Decimal
}

// SendResult is the gateway's answer to a SendRequest.
type SendResult struct {
	Success bool
	TxID    string
	Mode    SendMode
	Message string
}

// StatusResult is one status check of a sent transaction.
type StatusResult struct {
	Status        SettlementStatus
	Confirmations int
	Reason        string
}

// BlockchainGateway sends coins and reports settlement progress.
type BlockchainGateway interface {
	SendTransaction(ctx context.Context, req SendRequest) (*SendResult, error)
	CheckStatus(ctx context.Context, coin, txID string) (*StatusResult, error)
}

// IsPlaceholderTxID reports whether a transaction id refers to a send that
// never reached a chain and therefore cannot be polled.
func IsPlaceholderTxID(txID string) bool {
	return txID == "" || strings.HasPrefix(txID, SimulatedTxPrefix)
}
