package exchangerate

import (
	"context"
	"time"

	"github.com/kichcoin/ledger/pkg/provider"
)

// Static always returns the same quote. Useful offline and in tests.
type Static struct {
	Quote provider.RateQuote
	Err   error
}

func (s *Static) Name() string {
	if s.Quote.Source != "" {
		return s.Quote.Source
	}
	return "static"
}

func (s *Static) Fetch(_ context.Context) (*provider.RateQuote, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	q := s.Quote
	q.Source = s.Name()
	q.FetchedAt = time.Now().UTC()
	return &q, nil
}
