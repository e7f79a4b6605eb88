// Package crypto sends BTC and ETH from cards, either to another card of the
// ledger or to an external address through the blockchain gateway.
package crypto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/kichcoin/ledger/pkg/service/ledger"
	"github.com/kichcoin/ledger/pkg/service/settlement"
	"github.com/kichcoin/ledger/pkg/service/transfer"
	"github.com/shopspring/decimal"
)

// Scheduler receives blockchain sends that need a settlement check.
type Scheduler interface {
	Schedule(job settlement.Job)
}

// Request is one crypto transfer.
type Request struct {
	FromCardID uint
	Recipient  string
	Amount     decimal.Decimal
	CryptoType domain.CryptoType
}

// Result is what the caller sees. Warning is set when the transfer did not
// reach a blockchain.
type Result struct {
	Transaction    *domain.Transaction
	SettlementMode domain.SettlementMode
	Warning        string
}

// Config holds the hot wallets fiat senders send from.
type Config struct {
	HotWallets map[domain.CryptoType]string
}

// Service executes crypto transfers.
type Service struct {
	exec      *decorator.Executor
	calc      currency.Calculator
	gateway   provider.BlockchainGateway
	scheduler Scheduler
	publisher eventbus.Publisher
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher announces committed crypto sends on p.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates a crypto transfer service. scheduler may be nil.
func New(
	exec *decorator.Executor,
	calc currency.Calculator,
	gateway provider.BlockchainGateway,
	scheduler Scheduler,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		exec:      exec,
		calc:      calc,
		gateway:   gateway,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger.With("service", "crypto"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAddress checks an external address for t.
func (s *Service) ValidateAddress(address string, t domain.CryptoType) error {
	return ValidateAddress(address, t)
}

// send memoizes the gateway call so a retried transaction never sends twice.
type send struct {
	once   sync.Once
	result *provider.SendResult
	err    error
}

// TransferCrypto debits the sender, pays the regulator's commission and
// either credits an internal card or sends through the gateway.
func (s *Service) TransferCrypto(ctx context.Context, req Request) (*Result, error) {
	req.Recipient = strings.TrimSpace(req.Recipient)
	if req.Recipient == "" {
		return nil, domain.Invalid("address", "recipient address is required")
	}
	if !req.Amount.IsPositive() {
		return nil, domain.Invalid("amount", "must be greater than zero")
	}
	if req.CryptoType == "" {
		req.CryptoType = domain.CryptoBTC
	}

	logger := s.logger.With("from_card_id", req.FromCardID, "crypto", req.CryptoType)
	logger.Info("Crypto transfer requested", "amount", req.Amount.String())

	memo := &send{}
	res, err := decorator.WithTransaction(ctx, s.exec, "transfer_crypto",
		func(ctx context.Context, uow repository.UnitOfWork) (*Result, error) {
			return s.transfer(ctx, uow, req, memo)
		})
	if err != nil {
		if memo.result != nil && memo.result.Success && !provider.IsPlaceholderTxID(memo.result.TxID) {
			logger.Error("Gateway send succeeded but the ledger write failed",
				"tx_id", memo.result.TxID, "error", err)
		}
		logger.Warn("Crypto transfer failed", "error", err)
		return nil, err
	}

	tx := res.Transaction
	logger.Info("Crypto transfer completed",
		"transaction_id", tx.ID, "mode", res.SettlementMode, "external_tx_id", tx.ExternalTxID)
	eventbus.Publish(ctx, s.publisher, logger, eventbus.CryptoSent, tx)

	if res.SettlementMode == domain.SettlementBlockchain && s.scheduler != nil {
		s.scheduler.Schedule(settlement.Job{
			TransactionID: tx.ID,
			TxID:          tx.ExternalTxID,
			Crypto:        req.CryptoType,
		})
	}
	return res, nil
}

func (s *Service) transfer(
	ctx context.Context,
	uow repository.UnitOfWork,
	req Request,
	memo *send,
) (*Result, error) {
	repos, err := ledger.Open(uow)
	if err != nil {
		return nil, err
	}

	sender, err := ledger.Sender(ctx, repos.Cards, req.FromCardID)
	if err != nil {
		return nil, err
	}
	rates, err := ledger.LatestRates(ctx, repos.Rates)
	if err != nil {
		return nil, err
	}

	recipient, err := repos.Cards.FindByAddressOrNumber(ctx, req.Recipient)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		recipient = nil
		if err := ValidateAddress(req.Recipient, req.CryptoType); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case recipient.ID == sender.ID:
		return nil, domain.ErrSameCard
	}

	// External sends are checked up front so nothing reaches the gateway
	// that the final writes would reject.
	var from string
	if recipient == nil {
		if from = s.sourceWallet(sender, req.CryptoType); from == "" {
			s.logger.Error("No hot wallet configured for external send",
				"from_card_id", sender.ID, "crypto", req.CryptoType)
			return nil, domain.ErrHotWalletNotConfigured
		}
		if err := ledger.RequireRegulator(ctx, repos.Users); err != nil {
			return nil, err
		}
	}

	ids := []uint{sender.ID}
	if recipient != nil {
		ids = append(ids, recipient.ID)
	}
	locked, err := ledger.LockCards(ctx, repos.Cards, ids...)
	if err != nil {
		return nil, err
	}
	sender = locked[sender.ID]
	if recipient != nil {
		recipient = locked[recipient.ID]
	}

	coin := req.CryptoType.Currency()
	quote, err := s.calc.Compute(req.Amount, coin, coin, rates)
	if err != nil {
		return nil, ledger.QuoteError(err)
	}

	// Fiat senders pay the coin amount and commission in their own currency.
	// The commission is what is left of the debit after the principal so the
	// two rows add up to the debit exactly.
	payCode := coin
	debit, commission := quote.TotalDebit, quote.Commission
	if !sender.IsCrypto() {
		payCode = sender.Currency()
		if debit, err = rates.Convert(quote.TotalDebit, coin, payCode); err != nil {
			return nil, ledger.QuoteError(err)
		}
		principal, err := rates.Convert(quote.Amount, coin, payCode)
		if err != nil {
			return nil, ledger.QuoteError(err)
		}
		commission = debit.Sub(principal)
	}

	if err := sender.Debit(payCode, debit); err != nil {
		return nil, err
	}

	row := &domain.Transaction{
		FromCardID:      sender.ID,
		Amount:          quote.Amount,
		ConvertedAmount: quote.Amount,
		Currency:        coin,
		TargetCurrency:  coin,
		Type:            domain.TransactionCryptoTransfer,
		FromCardNumber:  sender.Number,
		ToCardNumber:    req.Recipient,
		Wallet:          req.Recipient,
		TotalDebit:      debit,
		DebitCurrency:   payCode,
		BtcCommission:   quote.BtcCommission,
	}
	res := &Result{Transaction: row}

	if recipient != nil {
		creditCode := coin
		if !recipient.Holds(coin) {
			creditCode = recipient.Currency()
		}
		credited, err := rates.Convert(quote.Amount, coin, creditCode)
		if err != nil {
			return nil, ledger.QuoteError(err)
		}
		recipient.Credit(creditCode, credited)
		if err := repos.SaveBalance(ctx, recipient, creditCode); err != nil {
			return nil, err
		}
		recipientID := recipient.ID
		row.ToCardID = &recipientID
		row.ToCardNumber = recipient.Number
		row.ConvertedAmount = credited
		row.TargetCurrency = creditCode
		row.Status = domain.StatusCompleted
		res.SettlementMode = domain.SettlementInternal
		row.Description = domain.Describe(domain.SettlementInternal, fmt.Sprintf("Sent %s %s to card %s",
			currency.Format(quote.Amount, coin), coin, domain.MaskCardNumber(recipient.Number)))
	} else {
		// Only the sender's row is locked here; the regulator lock comes after.
		s.settleExternally(ctx, from, req, quote, memo, res)
	}
	row.SettlementMode = res.SettlementMode

	regulator, err := ledger.LockRegulator(ctx, repos.Users)
	if err != nil {
		return nil, err
	}
	if err := repos.SaveBalance(ctx, sender, payCode); err != nil {
		return nil, err
	}
	if err := repos.CreditRegulator(ctx, regulator, quote.BtcCommission); err != nil {
		return nil, err
	}
	if err := repos.Transactions.Create(ctx, row); err != nil {
		return nil, err
	}

	commissionQuote := quote
	commissionQuote.From, commissionQuote.Commission = payCode, commission
	if err := repos.Transactions.Create(ctx, transfer.CommissionRow(sender, commissionQuote, row.ID)); err != nil {
		return nil, err
	}
	return res, nil
}

// sourceWallet is the address an external send leaves from: the card's own
// address for crypto cards, the configured hot wallet otherwise.
func (s *Service) sourceWallet(sender *domain.Card, t domain.CryptoType) string {
	if sender.IsCrypto() {
		if addr := sender.AddressFor(t.Currency()); addr != "" {
			return addr
		}
	}
	return s.cfg.HotWallets[t]
}

// settleExternally calls the gateway once per request and records the
// outcome on the row. Gateway failures degrade to a simulated send.
func (s *Service) settleExternally(
	ctx context.Context,
	from string,
	req Request,
	quote currency.Quote,
	memo *send,
	res *Result,
) {
	coin := req.CryptoType.Currency()
	memo.once.Do(func() {
		memo.result, memo.err = s.gateway.SendTransaction(ctx, provider.SendRequest{
			Coin:   string(req.CryptoType),
			From:   from,
			To:     req.Recipient,
			Amount: quote.Amount,
		})
	})

	row := res.Transaction
	amount := fmt.Sprintf("%s %s", currency.Format(quote.Amount, coin), coin)
	sent := memo.result

	switch {
	case memo.err != nil || sent == nil || !sent.Success:
		reason := "gateway rejected the transfer"
		if memo.err != nil {
			reason = memo.err.Error()
		} else if sent != nil && sent.Message != "" {
			reason = sent.Message
		}
		s.logger.Warn("Gateway unavailable, recording simulated send", "reason", reason)
		s.simulate(row, res, amount, req.Recipient, reason)
	case sent.Mode == provider.SendSimulated || provider.IsPlaceholderTxID(sent.TxID):
		s.simulate(row, res, amount, req.Recipient, sent.Message)
		row.ExternalTxID = sent.TxID
	case sent.Mode == provider.SendInternal:
		row.Status = domain.StatusCompleted
		row.ExternalTxID = sent.TxID
		res.SettlementMode = domain.SettlementInternal
		row.Description = domain.Describe(domain.SettlementInternal,
			fmt.Sprintf("Sent %s to %s (tx %s)", amount, req.Recipient, sent.TxID))
	default:
		row.Status = domain.StatusPending
		row.ExternalTxID = sent.TxID
		res.SettlementMode = domain.SettlementBlockchain
		row.Description = domain.Describe(domain.SettlementBlockchain,
			fmt.Sprintf("Sent %s to %s (tx %s), awaiting confirmation", amount, req.Recipient, sent.TxID))
	}
}

func (s *Service) simulate(row *domain.Transaction, res *Result, amount, to, reason string) {
	row.Status = domain.StatusCompleted
	row.ExternalTxID = provider.SimulatedTxPrefix + uuid.NewString()
	res.SettlementMode = domain.SettlementSimulated
	text := fmt.Sprintf("Sent %s to %s without blockchain settlement", amount, to)
	if reason != "" {
		text += ": " + reason
	}
	row.Description = domain.Describe(domain.SettlementSimulated, text)
	res.Warning = "This transfer was simulated. Your balance was debited but no coins were sent on-chain."
}
