package exchangerate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/shopspring/decimal"
)

// privatBankRate is one element of the PrivatBank public course list.
// Example: {"ccy":"USD","base_ccy":"UAH","buy":"40.90","sale":"41.45"}
type privatBankRate struct {
	Ccy     string `json:"ccy"`
	BaseCcy string `json:"base_ccy"`
	Buy     string `json:"buy"`
	Sale    string `json:"sale"`
}

// PrivatBank supplies the USD/UAH sale rate.
type PrivatBank struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPrivatBank creates the fiat feed.
func NewPrivatBank(url string, timeout time.Duration, logger *slog.Logger) *PrivatBank {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrivatBank{url: url, httpClient: newHTTPClient(timeout), logger: logger}
}

func (p *PrivatBank) Name() string { return "privatbank" }

func (p *PrivatBank) Fetch(ctx context.Context) (*provider.RateQuote, error) {
	var rates []privatBankRate
	if err := getJSON(ctx, p.httpClient, p.logger, p.url, &rates); err != nil {
		return nil, err
	}

	for _, r := range rates {
		if !strings.EqualFold(r.Ccy, "USD") || !strings.EqualFold(r.BaseCcy, "UAH") {
			continue
		}
		sale, err := decimal.NewFromString(strings.TrimSpace(r.Sale))
		if err != nil || !sale.IsPositive() {
			return nil, fmt.Errorf("invalid USD/UAH sale rate %q", r.Sale)
		}
		p.logger.Debug("Fetched fiat rate", "feed", p.Name(), "usdToUah", sale.String())
		return &provider.RateQuote{UsdToUah: sale, Source: p.Name(), FetchedAt: time.Now().UTC()}, nil
	}
	return nil, fmt.Errorf("currency USD not found in response")
}
