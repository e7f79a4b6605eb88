// Package initializer builds the infrastructure the ledger app runs on.
package initializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kichcoin/ledger/infra"
	infracache "github.com/kichcoin/ledger/infra/cache"
	"github.com/kichcoin/ledger/infra/provider/blockchain"
	"github.com/kichcoin/ledger/infra/provider/exchangerate"
	infrarepo "github.com/kichcoin/ledger/infra/repository"
	"github.com/kichcoin/ledger/pkg/app"
	"github.com/kichcoin/ledger/pkg/cache"
	"github.com/kichcoin/ledger/pkg/config"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (deps *app.Deps, err error) {
	logger := SetupLogger(cfg.Log)

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	return BuildDeps(cfg, db, logger)
}

// BuildDeps assembles the dependencies around an open database.
func BuildDeps(cfg *config.App, db *gorm.DB, logger *slog.Logger) (deps *app.Deps, err error) {
	deps = &app.Deps{
		Uow:        infrarepo.NewUoW(db),
		Classifier: infrarepo.IsRetryable,
		Logger:     logger,
	}
	defer func() {
		if err != nil {
			for i := len(deps.Closers) - 1; i >= 0; i-- {
				_ = deps.Closers[i]()
			}
		}
	}()

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	deps.Closers = append(deps.Closers, sqlDB.Close)

	if cfg.DB.AutoMigrate {
		if err := infrarepo.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database migrated")
	}

	rateCache, closeCache, err := newRateCache(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	deps.RateCache = rateCache
	if closeCache != nil {
		deps.Closers = append(deps.Closers, closeCache)
	}

	deps.RateFeeds = []provider.RateFeed{
		exchangerate.NewPrivatBank(cfg.Rates.FiatURL, cfg.Rates.HTTPTimeout, logger),
		exchangerate.NewCoinGecko(cfg.Rates.CryptoURL, cfg.Rates.HTTPTimeout, logger),
	}
	deps.Gateway = newGateway(cfg.Blockchain, logger)

	redisURL := ""
	if cfg.Redis != nil {
		redisURL = cfg.Redis.URL
	}
	bus, closeBus, err := newEventBus(cfg.Events, redisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	if bus != nil {
		deps.EventBus = bus
	}
	if closeBus != nil {
		deps.Closers = append(deps.Closers, closeBus)
	}
	return deps, nil
}

// newRateCache uses Redis when configured and an in-process cache otherwise.
func newRateCache(cfg *config.Redis, logger *slog.Logger) (cache.RateCache, func() error, error) {
	if cfg == nil || cfg.URL == "" {
		logger.Info("Redis not configured, using in-memory rate cache")
		return infracache.NewMemoryCache(), nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	rc := infracache.NewRedisRateCacheWithOptions(opt, cfg.KeyPrefix, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using Redis rate cache", "prefix", cfg.KeyPrefix)
	return rc, rc.Close, nil
}

// newGateway uses the signing service when configured and the simulator
// otherwise.
func newGateway(cfg *config.Blockchain, logger *slog.Logger) provider.BlockchainGateway {
	if cfg == nil || cfg.ApiUrl == "" {
		logger.Warn("BLOCKCHAIN_API_URL not set, crypto sends will be simulated")
		return blockchain.NewSimulator(logger)
	}
	return blockchain.NewSigningAPI(blockchain.Config{
		BaseURL: cfg.ApiUrl,
		APIKey:  cfg.ApiKey,
		Timeout: cfg.Timeout,
		Confirmations: map[string]int{
			"btc": cfg.BTCConfirmation,
			"eth": cfg.ETHConfirmation,
		},
	}, logger)
}
