package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kichcoin/ledger/pkg/eventbus"
)

// MemoryEventBus delivers events synchronously to in-process handlers and
// remembers every emitted event.
type MemoryEventBus struct {
	mu        sync.RWMutex
	handlers  map[eventbus.EventType][]eventbus.HandlerFunc
	published []eventbus.Event
	logger    *slog.Logger
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryEventBus{
		handlers: make(map[eventbus.EventType][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
}

// Register registers a handler for a specific event type.
func (b *MemoryEventBus) Register(t eventbus.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// Emit hands the event to the handlers registered for its type. Handler
// failures are logged and never reach the emitter.
func (b *MemoryEventBus) Emit(ctx context.Context, e eventbus.Event) error {
	b.mu.Lock()
	b.published = append(b.published, e)
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[e.Type]...)
	b.mu.Unlock()

	runHandlers(ctx, b.logger, e, handlers)
	return nil
}

// Published returns the emitted events in order.
func (b *MemoryEventBus) Published() []eventbus.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]eventbus.Event(nil), b.published...)
}

// ClearPublished forgets the emitted events.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)
