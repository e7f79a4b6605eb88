package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransfer() *domain.Transaction {
	to := uint(2)
	return &domain.Transaction{
		ID:             7,
		FromCardID:     1,
		ToCardID:       &to,
		Amount:         decimal.RequireFromString("10"),
		Currency:       currency.USD,
		BtcCommission:  decimal.RequireFromString("0.00000167"),
		Type:           domain.TransactionTransfer,
		Status:         domain.StatusCompleted,
		SettlementMode: domain.SettlementInternal,
	}
}

func TestMemoryEventBus_DeliversToRegisteredType(t *testing.T) {
	bus := NewWithMemory(testutils.DiscardLogger())
	var got []eventbus.Event
	bus.Register(eventbus.TransferCompleted, func(_ context.Context, e eventbus.Event) error {
		got = append(got, e)
		return nil
	})
	bus.Register(eventbus.CryptoSent, func(context.Context, eventbus.Event) error {
		t.Fatal("crypto handler must not see transfers")
		return nil
	})

	e := eventbus.NewEvent(eventbus.TransferCompleted, sampleTransfer())
	require.NoError(t, bus.Emit(context.Background(), e))

	require.Len(t, got, 1)
	assert.Equal(t, uint(7), got[0].TransactionID)
	assert.Equal(t, "10.00", got[0].Amount)
	assert.Equal(t, "0.00000167", got[0].BtcCommission)
	assert.Equal(t, []eventbus.Event{e}, bus.Published())
}

func TestMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewWithMemory(testutils.DiscardLogger())
	calls := 0
	bus.Register(eventbus.TransferCompleted, func(context.Context, eventbus.Event) error {
		calls++
		return errors.New("boom")
	})
	bus.Register(eventbus.TransferCompleted, func(context.Context, eventbus.Event) error {
		calls++
		panic("handler bug")
	})
	bus.Register(eventbus.TransferCompleted, func(context.Context, eventbus.Event) error {
		calls++
		return nil
	})

	err := bus.Emit(context.Background(), eventbus.NewEvent(eventbus.TransferCompleted, sampleTransfer()))
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestMemoryEventBus_ClearPublished(t *testing.T) {
	bus := NewWithMemory(nil)
	require.NoError(t, bus.Emit(context.Background(), eventbus.NewEvent(eventbus.CryptoSent, sampleTransfer())))
	require.Len(t, bus.Published(), 1)
	bus.ClearPublished()
	assert.Empty(t, bus.Published())
}

func TestEnvelope_RoundTripKeepsType(t *testing.T) {
	e := eventbus.NewEvent(eventbus.SettlementRefunded, sampleTransfer())
	raw, err := encode(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"settlement.refunded"`)

	back, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, eventbus.SettlementRefunded, back.Type)
	assert.True(t, e.OccurredAt.Equal(back.OccurredAt))

	_, err = decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}
