package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// RedisEventBus publishes ledger events to a single Redis stream and reads
// them back through a consumer group.
type RedisEventBus struct {
	client *redis.Client
	stream string // Stream all event types are appended to
	group  string // Consumer group name
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[eventbus.EventType][]eventbus.HandlerFunc
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithRedis creates a new Redis-backed event bus.
// url: Redis connection URL (e.g., "redis://localhost:6379")
// stream: Name of the Redis stream to use
// group: Consumer group name for event processing
func NewWithRedis(url, stream, group string, logger *slog.Logger) (*RedisEventBus, error) {
	if url == "" || stream == "" || group == "" {
		return nil, fmt.Errorf("redis event bus: url, stream, and group are required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	return NewWithRedisClient(redis.NewClient(opt), stream, group, logger)
}

// NewWithRedisClient wraps an existing client. The bus owns the client and
// closes it on Close.
func NewWithRedisClient(client *redis.Client, stream, group string, logger *slog.Logger) (*RedisEventBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}

	// BUSYGROUP means the group already exists.
	if err := client.XGroupCreateMkStream(pingCtx, stream, group, "0").Err(); err != nil &&
		!strings.HasPrefix(err.Error(), "BUSYGROUP") {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("redis event bus: create group: %w", err)
	}

	return &RedisEventBus{
		client:   client,
		stream:   stream,
		group:    group,
		logger:   logger.With("bus", "redis", "stream", stream),
		handlers: make(map[eventbus.EventType][]eventbus.HandlerFunc),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Emit appends the event to the stream.
func (b *RedisEventBus) Emit(ctx context.Context, e eventbus.Event) error {
	raw, err := encode(e)
	if err != nil {
		return fmt.Errorf("redis event bus: %w", err)
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{"type": e.Type.String(), "event": string(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("Event emitted", "event_type", e.Type, "transaction_id", e.TransactionID)
	return nil
}

// Register adds a handler and starts the consumer on first use.
func (b *RedisEventBus) Register(t eventbus.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], handler)
	start := !b.started
	b.started = true
	b.mu.Unlock()

	if !start {
		return
	}
	host, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", host, time.Now().UnixNano())
	b.logger.Info("Starting stream consumer", "group", b.group, "consumer", consumer)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(b.ctx, consumer)
	}()
}

// Close stops the consumer and closes the client.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func (b *RedisEventBus) consume(ctx context.Context, consumer string) {
	for {
		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    10,
			Block:    2 * time.Second,
		}).Result()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				b.logger.Error("Error reading from stream", "error", err, "consumer", consumer)
				sleep(ctx, time.Second)
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				b.process(ctx, msg)
			}
		}
	}
}

func (b *RedisEventBus) process(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := b.client.XAck(ctx, b.stream, b.group, msg.ID).Err(); err != nil {
			b.logger.Error("Failed to acknowledge message", "error", err, "msg_id", msg.ID)
		}
	}()

	raw, ok := msg.Values["event"].(string)
	if !ok {
		b.logger.Error("Stream entry without event", "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}
	e, err := decode([]byte(raw))
	if err != nil {
		b.logger.Error("Failed to decode event", "error", err, "msg_id", msg.ID)
		b.pushToDLQ(ctx, msg.Values)
		return
	}

	b.mu.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	if !runHandlers(ctx, b.logger, e, handlers) {
		b.pushToDLQ(ctx, msg.Values)
	}
}

// pushToDLQ keeps the raw entry in a side stream for inspection or replay.
func (b *RedisEventBus) pushToDLQ(ctx context.Context, values map[string]any) {
	dlq := dlqStreamName(b.stream)
	if err := b.client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		b.logger.Error("Failed to push to DLQ", "error", err, "dlq_stream", dlq)
		return
	}
	b.logger.Warn("Event pushed to DLQ", "dlq_stream", dlq)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
