// Package app wires the ledger services from their dependencies and config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kichcoin/ledger/pkg/cache"
	"github.com/kichcoin/ledger/pkg/config"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/kichcoin/ledger/pkg/service/crypto"
	"github.com/kichcoin/ledger/pkg/service/rates"
	"github.com/kichcoin/ledger/pkg/service/settlement"
	"github.com/kichcoin/ledger/pkg/service/transfer"
	"github.com/kichcoin/ledger/pkg/service/user"
	"github.com/shopspring/decimal"
)

// Deps contains the infrastructure the services are built on.
type Deps struct {
	Uow        repository.UnitOfWork
	Classifier decorator.Classifier
	RateFeeds  []provider.RateFeed
	RateCache  cache.RateCache
	Gateway    provider.BlockchainGateway
	// EventBus receives committed ledger events. Nil disables the feed.
	EventBus eventbus.Publisher
	Logger   *slog.Logger
	// Closers run on Shutdown, in reverse order.
	Closers []func() error
}

type App struct {
	Deps              *Deps
	Config            *config.App
	Executor          *decorator.Executor
	RatesService      *rates.Service
	TransferService   *transfer.Service
	CryptoService     *crypto.Service
	SettlementMonitor *settlement.Monitor
	UserService       *user.Service

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaults, err := defaultRates(cfg.Rates)
	if err != nil {
		return nil, err
	}
	calc := currency.NewCalculator(decimal.NewFromFloat(cfg.Fee.CommissionRate))

	exec := decorator.NewExecutor(deps.Uow, deps.Classifier,
		decorator.WithLogger(logger),
		decorator.WithTransactionPolicy(decorator.Policy{
			MaxAttempts:    cfg.Retry.TxMaxAttempts,
			BaseDelay:      cfg.Retry.TxBaseDelay,
			MaxDelay:       cfg.Retry.TxMaxDelay,
			Jitter:         cfg.Retry.Jitter,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
		}),
		decorator.WithRetryPolicy(decorator.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			BaseDelay:      cfg.Retry.BaseDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
			Jitter:         cfg.Retry.Jitter,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
		}),
	)

	monitor := settlement.NewMonitor(exec, deps.Gateway, settlement.Config{
		CheckDelay:   cfg.Settlement.CheckDelay,
		MaxChecks:    cfg.Settlement.MaxChecks,
		CheckTimeout: cfg.Blockchain.Timeout,
		ResumeWindow: cfg.Settlement.ResumeWindow,
	}, logger, settlement.WithPublisher(deps.EventBus))

	hotWallets := map[domain.CryptoType]string{}
	if cfg.Blockchain.HotWalletBTC != "" {
		hotWallets[domain.CryptoBTC] = cfg.Blockchain.HotWalletBTC
	}
	if cfg.Blockchain.HotWalletETH != "" {
		hotWallets[domain.CryptoETH] = cfg.Blockchain.HotWalletETH
	}

	return &App{
		Deps:     deps,
		Config:   cfg,
		Executor: exec,
		RatesService: rates.New(deps.Uow, deps.RateFeeds, deps.RateCache, rates.Config{
			CacheTTL: cfg.Rates.CacheTTL,
			Defaults: defaults,
		}, logger),
		TransferService: transfer.New(exec, calc, logger, transfer.WithPublisher(deps.EventBus)),
		CryptoService: crypto.New(exec, calc, deps.Gateway, monitor, crypto.Config{HotWallets: hotWallets}, logger,
			crypto.WithPublisher(deps.EventBus)),
		SettlementMonitor: monitor,
		UserService:       user.New(exec, logger),
	}, nil
}

// Start bootstraps the regulator, seeds rates and starts the background jobs.
func (a *App) Start(ctx context.Context) error {
	logger := a.logger()
	if _, err := a.UserService.EnsureRegulator(ctx, a.Config.Regulator.Username, a.Config.Regulator.Password); err != nil {
		return fmt.Errorf("bootstrap regulator: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.RatesService.Run(runCtx, a.Config.Rates.RefreshInterval)
	}()

	n, err := a.SettlementMonitor.Resume(ctx)
	if err != nil {
		logger.Error("Failed to resume settlement checks", "error", err)
	} else {
		logger.Info("Ledger started", "resumed_settlements", n)
	}
	return nil
}

// Shutdown stops the background jobs and releases the dependencies.
func (a *App) Shutdown() {
	a.shutdown.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.SettlementMonitor.Stop()
		a.wg.Wait()
		for i := len(a.Deps.Closers) - 1; i >= 0; i-- {
			if err := a.Deps.Closers[i](); err != nil {
				a.logger().Warn("Failed to close dependency", "error", err)
			}
		}
	})
}

func (a *App) logger() *slog.Logger {
	if a.Deps.Logger != nil {
		return a.Deps.Logger
	}
	return slog.Default()
}

func defaultRates(cfg *config.Rates) (currency.Rates, error) {
	var (
		r   currency.Rates
		err error
	)
	if r.UsdToUah, err = decimal.NewFromString(cfg.DefaultUsdToUah); err != nil {
		return r, fmt.Errorf("RATES_DEFAULT_USD_UAH: %w", err)
	}
	if r.BtcToUsd, err = decimal.NewFromString(cfg.DefaultBtcToUsd); err != nil {
		return r, fmt.Errorf("RATES_DEFAULT_BTC_USD: %w", err)
	}
	if r.EthToUsd, err = decimal.NewFromString(cfg.DefaultEthToUsd); err != nil {
		return r, fmt.Errorf("RATES_DEFAULT_ETH_USD: %w", err)
	}
	return r, r.Validate()
}
