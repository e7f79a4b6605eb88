// Package settlement follows external crypto sends after they were debited
// and compensates the sender when the chain rejects them.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/kichcoin/ledger/pkg/service/ledger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Job identifies one blockchain send to check.
type Job struct {
	TransactionID uint
	TxID          string
	Crypto        domain.CryptoType
	// Attempt counts the checks already made for this send.
	Attempt int
}

// Outcome is the result of one status check.
type Outcome struct {
	Status        provider.SettlementStatus
	Confirmations int
	// Refund is set when the send failed and the sender was compensated.
	Refund *domain.Transaction
}

// Config tunes the monitor.
type Config struct {
	CheckDelay time.Duration
	// MaxChecks bounds how often a still-pending send is polled.
	MaxChecks    int
	CheckTimeout time.Duration
	ResumeWindow time.Duration
}

// Monitor schedules deferred status checks. Waiting checks hold no locks and
// no open transactions.
type Monitor struct {
	exec      *decorator.Executor
	gateway   provider.BlockchainGateway
	publisher eventbus.Publisher
	cfg       Config
	logger    *slog.Logger
	group     singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[uint]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPublisher announces new refunds on p.
func WithPublisher(p eventbus.Publisher) Option {
	return func(m *Monitor) { m.publisher = p }
}

// NewMonitor creates a monitor. Call Stop to cancel pending checks.
func NewMonitor(
	exec *decorator.Executor,
	gateway provider.BlockchainGateway,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckDelay < 0 {
		cfg.CheckDelay = 0
	}
	if cfg.MaxChecks <= 0 {
		cfg.MaxChecks = 1
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.ResumeWindow <= 0 {
		cfg.ResumeWindow = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		exec:    exec,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("service", "settlement"),
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uint]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule checks job after the configured delay. Placeholder ids are never
// polled, and a send already waiting is not scheduled twice.
func (m *Monitor) Schedule(job Job) {
	if provider.IsPlaceholderTxID(job.TxID) {
		m.logger.Debug("Placeholder transaction is not monitored", "transaction_id", job.TransactionID, "tx_id", job.TxID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.logger.Warn("Monitor stopped, dropping settlement check", "transaction_id", job.TransactionID)
		return
	}
	if _, ok := m.timers[job.TransactionID]; ok {
		return
	}
	m.wg.Add(1)
	m.timers[job.TransactionID] = time.AfterFunc(m.cfg.CheckDelay, func() { m.fire(job) })
	m.logger.Info("Settlement check scheduled",
		"transaction_id", job.TransactionID, "tx_id", job.TxID, "delay", m.cfg.CheckDelay, "attempt", job.Attempt+1)
}

// Pending reports how many checks are waiting.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *Monitor) fire(job Job) {
	defer m.wg.Done()

	m.mu.Lock()
	delete(m.timers, job.TransactionID)
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CheckTimeout)
	defer cancel()

	out, err := m.CheckTransactionStatus(ctx, job)
	retry := false
	switch {
	case err != nil:
		m.logger.Error("Settlement check failed", "transaction_id", job.TransactionID, "tx_id", job.TxID, "error", err)
		retry = !errors.Is(err, context.Canceled)
	case out.Status == provider.SettlementPending:
		retry = true
	}
	if retry && job.Attempt+1 < m.cfg.MaxChecks {
		job.Attempt++
		m.Schedule(job)
	}
}

// CheckTransactionStatus asks the gateway for the state of one send and
// refunds the sender when it failed. Concurrent checks of the same send share
// one gateway call.
func (m *Monitor) CheckTransactionStatus(ctx context.Context, job Job) (*Outcome, error) {
	if provider.IsPlaceholderTxID(job.TxID) {
		return &Outcome{Status: provider.SettlementCompleted}, nil
	}
	v, err, _ := m.group.Do(job.TxID, func() (any, error) {
		return m.check(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (m *Monitor) check(ctx context.Context, job Job) (*Outcome, error) {
	logger := m.logger.With("transaction_id", job.TransactionID, "tx_id", job.TxID, "crypto", job.Crypto)

	status, err := decorator.WithRetry(ctx, m.exec, "check_settlement",
		func(ctx context.Context) (*provider.StatusResult, error) {
			return m.gateway.CheckStatus(ctx, string(job.Crypto), job.TxID)
		})
	if err != nil {
		return nil, err
	}

	out := &Outcome{Status: status.Status, Confirmations: status.Confirmations}
	switch status.Status {
	case provider.SettlementFailed:
		logger.Warn("Blockchain transfer failed, refunding sender", "reason", status.Reason)
		refund, err := m.Refund(ctx, job.TransactionID, status.Reason)
		if err != nil {
			logger.Error("Refund failed", "error", err)
			return nil, err
		}
		out.Refund = refund
	case provider.SettlementCompleted:
		logger.Info("Blockchain transfer confirmed", "confirmations", status.Confirmations)
	default:
		logger.Info("Blockchain transfer still pending",
			"confirmations", status.Confirmations,
			"required", job.Crypto.ConfirmationsRequired())
	}
	return out, nil
}

// Refund credits the original debit back to the sender and appends a refund
// row. Calling it again for the same send returns the existing refund.
func (m *Monitor) Refund(ctx context.Context, transactionID uint, reason string) (*domain.Transaction, error) {
	var created bool
	row, err := decorator.WithTransaction(ctx, m.exec, "refund_settlement",
		func(ctx context.Context, uow repository.UnitOfWork) (*domain.Transaction, error) {
			return m.refund(ctx, uow, transactionID, reason, &created)
		})
	if err != nil {
		return nil, err
	}
	if created {
		eventbus.Publish(ctx, m.publisher, m.logger, eventbus.SettlementRefunded, row)
	}
	return row, nil
}

func (m *Monitor) refund(
	ctx context.Context,
	uow repository.UnitOfWork,
	transactionID uint,
	reason string,
	created *bool,
) (*domain.Transaction, error) {
	*created = false
	repos, err := ledger.Open(uow)
	if err != nil {
		return nil, err
	}

	original, err := repos.Transactions.Get(ctx, transactionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("original transaction")
	}
	if err != nil {
		return nil, err
	}
	if existing, err := repos.Transactions.FindRefundFor(ctx, original.ID); err == nil {
		m.logger.Info("Refund already recorded", "transaction_id", original.ID, "refund_id", existing.ID)
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if original.Type != domain.TransactionCryptoTransfer || original.SettlementMode != domain.SettlementBlockchain {
		return nil, domain.Invalid("transaction", fmt.Sprintf("transaction %d is not a blockchain send", original.ID))
	}

	locked, err := ledger.LockCards(ctx, repos.Cards, original.FromCardID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("sender card")
	}
	if err != nil {
		return nil, err
	}
	sender := locked[original.FromCardID]

	code, amount := original.DebitCurrency, original.TotalDebit
	if code == "" || !amount.IsPositive() {
		code, amount = original.Currency, original.Amount
	}
	sender.Credit(code, amount)
	if err := repos.SaveBalance(ctx, sender, code); err != nil {
		return nil, err
	}

	reversed := m.reverseCommission(ctx, repos, original)

	senderID := sender.ID
	originalID := original.ID
	text := fmt.Sprintf("Refund of %s %s for failed blockchain transfer #%d (tx %s)",
		currency.Format(amount, code), code, original.ID, original.ExternalTxID)
	if reason != "" {
		text += ": " + reason
	}
	row := &domain.Transaction{
		FromCardID:      senderID,
		ToCardID:        &senderID,
		Amount:          amount,
		ConvertedAmount: amount,
		Currency:        code,
		TargetCurrency:  code,
		Type:            domain.TransactionRefund,
		Status:          domain.StatusCompleted,
		FromCardNumber:  domain.SystemCardNumber,
		ToCardNumber:    sender.Number,
		Description:     text,
		BtcCommission:   reversed.Neg(),
		ExternalTxID:    original.ExternalTxID,
		RefundOf:        &originalID,
	}
	if err := repos.Transactions.Create(ctx, row); err != nil {
		return nil, err
	}
	*created = true
	m.logger.Info("Sender refunded",
		"transaction_id", original.ID, "refund_id", row.ID, "amount", currency.Format(amount, code), "currency", code)
	return row, nil
}

// reverseCommission takes the send's commission back from the regulator when
// its balance still covers it. It returns the reversed amount.
func (m *Monitor) reverseCommission(ctx context.Context, repos *ledger.Repos, original *domain.Transaction) decimal.Decimal {
	commission := original.BtcCommission
	if !commission.IsPositive() {
		return decimal.Zero
	}
	reg, err := ledger.LockRegulator(ctx, repos.Users)
	if err != nil {
		m.logger.Warn("Commission not reversed", "transaction_id", original.ID, "error", err)
		return decimal.Zero
	}
	if reg.RegulatorBalance.LessThan(commission) {
		m.logger.Warn("Regulator balance does not cover commission reversal",
			"transaction_id", original.ID,
			"commission", currency.Format(commission, currency.BTC),
			"regulator_balance", currency.Format(reg.RegulatorBalance, currency.BTC))
		return decimal.Zero
	}
	if err := repos.CreditRegulator(ctx, reg, commission.Neg()); err != nil {
		m.logger.Warn("Commission not reversed", "transaction_id", original.ID, "error", err)
		return decimal.Zero
	}
	return commission
}

// Resume reschedules blockchain sends that were still pending when the
// process last stopped. It returns the number of scheduled checks.
func (m *Monitor) Resume(ctx context.Context) (int, error) {
	repo, err := m.exec.UnitOfWork().TransactionRepository()
	if err != nil {
		return 0, err
	}
	pending, err := repo.ListPendingSettlements(ctx, time.Now().Add(-m.cfg.ResumeWindow))
	if err != nil {
		return 0, err
	}
	for _, tx := range pending {
		crypto := domain.CryptoBTC
		if tx.Currency == currency.ETH {
			crypto = domain.CryptoETH
		}
		m.Schedule(Job{TransactionID: tx.ID, TxID: tx.ExternalTxID, Crypto: crypto})
	}
	if len(pending) > 0 {
		m.logger.Info("Resumed settlement checks", "count", len(pending))
	}
	return len(pending), nil
}

// Stop cancels waiting checks and waits for running ones to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.cancel()
	for id, t := range m.timers {
		if t.Stop() {
			m.wg.Done()
		}
		delete(m.timers, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Info("Settlement monitor stopped")
}
