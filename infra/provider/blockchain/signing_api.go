// Package blockchain talks to the signing service that broadcasts crypto
// transfers, and provides a simulator for deployments without one.
package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/shopspring/decimal"
)

// Config configures the signing service client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Confirmations maps a coin ("btc", "eth") to the confirmations needed
	// before a transaction counts as completed.
	Confirmations map[string]int
}

type sendRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type sendResponse struct {
	TxID    string `json:"txId"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string `json:"status"`
	Confirmations int    `json:"confirmations"`
	Reason        string `json:"reason,omitempty"`
}

// SigningAPI implements provider.BlockchainGateway over the signing service's JSON API.
type SigningAPI struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSigningAPI creates a new signing service client.
func NewSigningAPI(cfg Config, logger *slog.Logger) *SigningAPI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SigningAPI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (s *SigningAPI) endpoint(coin string, parts ...string) string {
	u := fmt.Sprintf("%s/v1/%s/transactions", s.cfg.BaseURL, url.PathEscape(strings.ToLower(coin)))
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (s *SigningAPI) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	return req, nil
}

// SendTransaction broadcasts a transfer. A 4xx answer is a rejected send
// (Success false); transport failures and 5xx answers are errors.
func (s *SigningAPI) SendTransaction(ctx context.Context, in provider.SendRequest) (*provider.SendResult, error) {
	payload, err := json.Marshal(sendRequest{From: in.From, To: in.To, Amount: in.Amount})
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint(in.Coin), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: signing service returned status %d: %s",
			provider.ErrGatewayUnavailable, resp.StatusCode, string(raw))
	case resp.StatusCode >= 400:
		msg := firstNonEmpty(out.Error, out.Message, strings.TrimSpace(string(raw)), http.StatusText(resp.StatusCode))
		s.logger.Warn("Signing service rejected send", "coin", in.Coin, "to", in.To, "status", resp.StatusCode, "message", msg)
		return &provider.SendResult{Success: false, Message: msg}, nil
	}

	if out.TxID == "" {
		return nil, errors.New("signing service returned no transaction id")
	}
	mode := provider.SendBlockchain
	if provider.SendMode(out.Mode) == provider.SendInternal {
		mode = provider.SendInternal
	}
	s.logger.Info("Transaction broadcast", "coin", in.Coin, "tx_id", out.TxID, "mode", mode)
	return &provider.SendResult{Success: true, TxID: out.TxID, Mode: mode, Message: out.Message}, nil
}

// CheckStatus reports settlement progress of a broadcast transaction.
func (s *SigningAPI) CheckStatus(ctx context.Context, coin, txID string) (*provider.StatusResult, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint(coin, txID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return &provider.StatusResult{Status: provider.SettlementFailed, Reason: "transaction not found"}, nil
	}
	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: signing service returned status %d: %s",
			provider.ErrGatewayUnavailable, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("signing service returned status %d: %s", resp.StatusCode, string(body))
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &provider.StatusResult{Confirmations: out.Confirmations, Reason: out.Reason}
	switch strings.ToLower(out.Status) {
	case "double_spend", "rejected", "failed", "dropped":
		result.Status = provider.SettlementFailed
		if result.Reason == "" {
			result.Reason = out.Status
		}
	default:
		if out.Confirmations >= s.required(coin) {
			result.Status = provider.SettlementCompleted
		} else {
			result.Status = provider.SettlementPending
		}
	}
	return result, nil
}

func (s *SigningAPI) required(coin string) int {
	if n, ok := s.cfg.Confirmations[strings.ToLower(coin)]; ok && n > 0 {
		return n
	}
	if strings.EqualFold(coin, "eth") {
		return 12
	}
	return 3
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
