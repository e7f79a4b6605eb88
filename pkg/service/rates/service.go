// Package rates keeps the exchange-rate snapshot current. It merges the
// external feeds over the last known good snapshot, appends the result to the
// ledger store and mirrors it in the rate cache.
package rates

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kichcoin/ledger/pkg/cache"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/kichcoin/ledger/pkg/repository"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL is the default time-to-live for the cached snapshot
	DefaultCacheTTL = 15 * time.Minute

	sourceDefaults = "defaults"
	refreshKey     = "refresh"
)

// Config holds the refresh settings.
type Config struct {
	CacheTTL time.Duration
	// Defaults seed the very first snapshot when no feed answers.
	Defaults currency.Rates
}

// Service is the rate provider every transfer reads from.
type Service struct {
	uow    repository.UnitOfWork
	feeds  []provider.RateFeed
	cache  cache.RateCache
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group
}

// New creates a rate service. cache may be nil.
func New(
	uow repository.UnitOfWork,
	feeds []provider.RateFeed,
	rateCache cache.RateCache,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Service{
		uow:    uow,
		feeds:  feeds,
		cache:  rateCache,
		cfg:    cfg,
		logger: logger.With("service", "rates"),
	}
}

// Latest returns the current snapshot: cache first, then the store.
func (s *Service) Latest(ctx context.Context) (*domain.ExchangeRates, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("Rate cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	repo, err := s.uow.ExchangeRateRepository()
	if err != nil {
		return nil, err
	}
	latest, err := repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, latest)
	return latest, nil
}

// Refresh pulls every feed and appends a new snapshot. Concurrent callers
// share one refresh.
func (s *Service) Refresh(ctx context.Context) (*domain.ExchangeRates, error) {
	v, err, shared := s.group.Do(refreshKey, func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Joined in-flight rate refresh")
	}
	return v.(*domain.ExchangeRates), nil
}

func (s *Service) refresh(ctx context.Context) (*domain.ExchangeRates, error) {
	repo, err := s.uow.ExchangeRateRepository()
	if err != nil {
		return nil, err
	}

	last, err := repo.Latest(ctx)
	switch {
	case errors.Is(err, domain.ErrRatesUnavailable):
		last = nil
	case err != nil:
		return nil, err
	}

	next := &domain.ExchangeRates{}
	if last != nil {
		next.UsdToUah, next.BtcToUsd, next.EthToUsd = last.UsdToUah, last.BtcToUsd, last.EthToUsd
	} else {
		d := s.cfg.Defaults
		next.UsdToUah, next.BtcToUsd, next.EthToUsd = d.UsdToUah, d.BtcToUsd, d.EthToUsd
	}

	var sources []string
	for _, feed := range s.feeds {
		q, err := feed.Fetch(ctx)
		if err != nil {
			s.logger.Warn("Rate feed failed, keeping last known values", "feed", feed.Name(), "error", err)
			continue
		}
		applied := false
		if q.UsdToUah.IsPositive() {
			next.UsdToUah, applied = q.UsdToUah, true
		}
		if q.BtcToUsd.IsPositive() {
			next.BtcToUsd, applied = q.BtcToUsd, true
		}
		if q.EthToUsd.IsPositive() {
			next.EthToUsd, applied = q.EthToUsd, true
		}
		if applied {
			sources = append(sources, feed.Name())
		}
	}

	if len(sources) == 0 && last != nil {
		s.logger.Warn("No rate feed answered, keeping last snapshot", "snapshot_id", last.ID)
		s.store(ctx, last)
		return last, nil
	}
	if len(sources) == 0 {
		sources = []string{sourceDefaults}
	}
	next.Source = strings.Join(sources, ",")

	if err := next.Rates().Validate(); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, next); err != nil {
		return nil, err
	}
	s.logger.Info("Exchange rates refreshed",
		"source", next.Source,
		"usdToUah", next.UsdToUah.String(),
		"btcToUsd", next.BtcToUsd.String(),
		"ethToUsd", next.EthToUsd.String(),
	)
	s.store(ctx, next)
	return next, nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error("Initial rate refresh failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rate refresher stopped")
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Error("Rate refresh failed", "error", err)
			}
		}
	}
}

func (s *Service) store(ctx context.Context, rates *domain.ExchangeRates) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rates, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("Rate cache write failed", "error", err)
	}
}
