package blockchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, h http.HandlerFunc) *SigningAPI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSigningAPI(Config{
		BaseURL:       srv.URL + "/",
		APIKey:        "secret",
		Confirmations: map[string]int{"btc": 3, "eth": 12},
	}, nil)
}

func TestSigningAPI_SendTransaction(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/btc/transactions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bc1qsender", body["from"])
		assert.Equal(t, "0.002", body["amount"])

		_, _ = w.Write([]byte(`{"txId":"abc123"}`))
	})

	res, err := api.SendTransaction(context.Background(), provider.SendRequest{
		Coin: "btc", From: "bc1qsender", To: "bc1qreceiver", Amount: decimal.RequireFromString("0.002"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "abc123", res.TxID)
	assert.Equal(t, provider.SendBlockchain, res.Mode)
}

func TestSigningAPI_SendInternalMode(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"txId":"int-1","mode":"internal"}`))
	})
	res, err := api.SendTransaction(context.Background(), provider.SendRequest{Coin: "eth", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, provider.SendInternal, res.Mode)
}

func TestSigningAPI_SendRejectedAndServerError(t *testing.T) {
	rejected := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"insufficient hot wallet balance"}`))
	})
	res, err := rejected.SendTransaction(context.Background(), provider.SendRequest{Coin: "btc", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient hot wallet balance", res.Message)

	broken := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = broken.SendTransaction(context.Background(), provider.SendRequest{Coin: "btc", Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)

	noID := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err = noID.SendTransaction(context.Background(), provider.SendRequest{Coin: "btc", Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestSigningAPI_CheckStatus(t *testing.T) {
	tests := []struct {
		name   string
		coin   string
		code   int
		body   string
		status provider.SettlementStatus
	}{
		{"btc below threshold", "btc", 200, `{"status":"pending","confirmations":2}`, provider.SettlementPending},
		{"btc at threshold", "btc", 200, `{"status":"pending","confirmations":3}`, provider.SettlementCompleted},
		{"eth below threshold", "eth", 200, `{"status":"confirmed","confirmations":5}`, provider.SettlementPending},
		{"eth at threshold", "eth", 200, `{"status":"confirmed","confirmations":12}`, provider.SettlementCompleted},
		{"double spend", "btc", 200, `{"status":"double_spend","confirmations":0}`, provider.SettlementFailed},
		{"rejected", "eth", 200, `{"status":"rejected"}`, provider.SettlementFailed},
		{"not found", "btc", 404, ``, provider.SettlementFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.True(t, strings.HasSuffix(r.URL.Path, "/transactions/tx-1"))
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			res, err := api.CheckStatus(context.Background(), tt.coin, "tx-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
		})
	}
}

func TestSigningAPI_CheckStatusServerError(t *testing.T) {
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := api.CheckStatus(context.Background(), "btc", "tx-1")
	assert.Error(t, err)
}

func TestSimulator(t *testing.T) {
	sim := NewSimulator(nil)
	res, err := sim.SendTransaction(context.Background(), provider.SendRequest{Coin: "btc", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, provider.SendSimulated, res.Mode)
	assert.True(t, provider.IsPlaceholderTxID(res.TxID))

	st, err := sim.CheckStatus(context.Background(), "btc", res.TxID)
	require.NoError(t, err)
	assert.Equal(t, provider.SettlementCompleted, st.Status)
}
