package exchangerate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/shopspring/decimal"
)

// coinGeckoResponse is the simple/price payload.
// Example: {"bitcoin":{"usd":60000.5},"ethereum":{"usd":3000.25}}
type coinGeckoResponse map[string]map[string]decimal.Decimal

// CoinGecko supplies BTC/USD and ETH/USD.
type CoinGecko struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCoinGecko creates the crypto feed.
func NewCoinGecko(url string, timeout time.Duration, logger *slog.Logger) *CoinGecko {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoinGecko{url: url, httpClient: newHTTPClient(timeout), logger: logger}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Fetch(ctx context.Context) (*provider.RateQuote, error) {
	var resp coinGeckoResponse
	if err := getJSON(ctx, c.httpClient, c.logger, c.url, &resp); err != nil {
		return nil, err
	}

	quote := &provider.RateQuote{Source: c.Name(), FetchedAt: time.Now().UTC()}
	if btc, ok := resp["bitcoin"]["usd"]; ok && btc.IsPositive() {
		quote.BtcToUsd = btc
	}
	if eth, ok := resp["ethereum"]["usd"]; ok && eth.IsPositive() {
		quote.EthToUsd = eth
	}
	if quote.BtcToUsd.IsZero() && quote.EthToUsd.IsZero() {
		return nil, fmt.Errorf("no crypto prices in response")
	}
	c.logger.Debug("Fetched crypto rates", "feed", c.Name(),
		"btcToUsd", quote.BtcToUsd.String(), "ethToUsd", quote.EthToUsd.String())
	return quote, nil
}
