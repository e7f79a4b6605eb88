package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kichcoin/ledger/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(e eventbus.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	b, err := json.Marshal(envelope{Type: e.Type.String(), Payload: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}

func decode(raw []byte) (eventbus.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return eventbus.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return eventbus.Event{}, fmt.Errorf("envelope without event type")
	}
	var e eventbus.Event
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return eventbus.Event{}, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return e, nil
}

// runHandlers calls every handler, recovering panics. It reports whether all
// of them succeeded.
func runHandlers(
	ctx context.Context,
	logger *slog.Logger,
	e eventbus.Event,
	handlers []eventbus.HandlerFunc,
) (ok bool) {
	ok = true
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered in event handler", "event_type", e.Type, "event_id", e.ID, "panic", r)
					ok = false
				}
			}()
			if err := handler(ctx, e); err != nil {
				logger.Error("Event handler failed", "event_type", e.Type, "event_id", e.ID, "error", err)
				ok = false
			}
		}()
	}
	return ok
}
