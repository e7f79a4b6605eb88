package blockchain

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kichcoin/ledger/pkg/provider"
)

// SimulatedMessage is returned with every simulated send.
const SimulatedMessage = "blockchain API not configured, transfer was simulated and no coins left the ledger"

// Simulator stands in for the signing service when none is configured.
// Every send succeeds with a placeholder id and nothing is broadcast.
type Simulator struct {
	logger *slog.Logger
}

func NewSimulator(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{logger: logger}
}

func (s *Simulator) SendTransaction(_ context.Context, req provider.SendRequest) (*provider.SendResult, error) {
	txID := provider.SimulatedTxPrefix + uuid.NewString()
	s.logger.Warn("Simulating blockchain send", "coin", req.Coin, "to", req.To, "amount", req.Amount.String(), "tx_id", txID)
	return &provider.SendResult{
		Success: true,
		TxID:    txID,
		Mode:    provider.SendSimulated,
		Message: SimulatedMessage,
	}, nil
}

// CheckStatus resolves placeholder ids without any network call.
func (s *Simulator) CheckStatus(_ context.Context, _ string, txID string) (*provider.StatusResult, error) {
	if provider.IsPlaceholderTxID(txID) {
		return &provider.StatusResult{Status: provider.SettlementCompleted, Reason: "simulated"}, nil
	}
	return &provider.StatusResult{Status: provider.SettlementFailed, Reason: "unknown transaction"}, nil
}
