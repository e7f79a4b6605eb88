package initializer

import (
	"fmt"
	"log/slog"
	"strings"

	infraevents "github.com/kichcoin/ledger/infra/eventbus"
	"github.com/kichcoin/ledger/pkg/config"
	"github.com/kichcoin/ledger/pkg/eventbus"
)

// newEventBus builds the ledger event feed. It returns a nil bus when no
// driver is configured.
func newEventBus(cfg *config.Events, redisURL string, logger *slog.Logger) (eventbus.Bus, func() error, error) {
	if cfg == nil {
		return nil, nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil, nil
	case "memory":
		logger.Info("Using in-memory event bus")
		return infraevents.NewWithMemory(logger), nil, nil
	case "redis":
		url := cfg.RedisURL
		if url == "" {
			url = redisURL
		}
		bus, err := infraevents.NewWithRedis(url, cfg.RedisStream, cfg.RedisGroup, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis event bus", "stream", cfg.RedisStream)
		return bus, bus.Close, nil
	case "kafka":
		bus, err := infraevents.NewWithKafka(cfg.KafkaBrokers, logger, &infraevents.KafkaEventBusConfig{
			GroupID:       cfg.KafkaGroupID,
			TopicPrefix:   cfg.TopicPrefix,
			SASLUsername:  cfg.SASLUsername,
			SASLPassword:  cfg.SASLPassword,
			TLSEnabled:    cfg.TLSEnabled,
			TLSCAFile:     cfg.TLSCAFile,
			TLSCertFile:   cfg.TLSCertFile,
			TLSKeyFile:    cfg.TLSKeyFile,
			TLSSkipVerify: cfg.TLSSkipVerify,
		})
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENTS_DRIVER %q", cfg.Driver)
	}
}
