//go:build integration

package transfer_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Row locks on Postgres must let exactly as many concurrent transfers
// through as the balance covers.
func TestTransferMoney_Postgres_NoDoubleSpend(t *testing.T) {
	l := testutils.NewLedgerFor(t, testutils.StartPostgres(t))
	l.Rates("40.5", "60000", "3000")
	l.Regulator("0")
	from := l.Card(l.User("alice"), domain.CardUSD, "50.50")
	to := l.Card(l.User("bob"), domain.CardUSD, "0")
	svc := newService(l.UoW)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TransferMoney(context.Background(), from.ID, to.Number, dec("10.00"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, "0.00", l.Reload(from).Balance.StringFixed(2))
	assert.Equal(t, "50.00", l.Reload(to).Balance.StringFixed(2))
	require.Equal(t, int64(10), l.CountTransactions())
}
