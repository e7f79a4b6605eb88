// Package transfer moves fiat and crypto balances between cards of the same
// ledger, charging the regulator's commission on every transfer.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/eventbus"
	"github.com/kichcoin/ledger/pkg/repository"
	"github.com/kichcoin/ledger/pkg/service/ledger"
	"github.com/shopspring/decimal"
)

// Service executes internal transfers.
type Service struct {
	exec      *decorator.Executor
	calc      currency.Calculator
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher announces committed transfers on p.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates a transfer service.
func New(exec *decorator.Executor, calc currency.Calculator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{exec: exec, calc: calc, logger: logger.With("service", "transfer")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransferMoney debits amount plus commission from the sender, credits the
// converted amount to the card numbered toCardNumber and credits the BTC
// commission to the regulator. It writes a transfer and a commission row and
// returns the transfer row. Either everything commits or nothing does.
func (s *Service) TransferMoney(
	ctx context.Context,
	fromCardID uint,
	toCardNumber string,
	amount decimal.Decimal,
) (*domain.Transaction, error) {
	toCardNumber = domain.NormalizeCardNumber(toCardNumber)
	if toCardNumber == "" {
		return nil, domain.Invalid("card number", "receiver card number is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Invalid("amount", "must be greater than zero")
	}

	logger := s.logger.With("from_card_id", fromCardID, "to_card", domain.MaskCardNumber(toCardNumber))
	logger.Info("Transfer requested", "amount", amount.String())

	tx, err := decorator.WithTransaction(ctx, s.exec, "transfer_money",
		func(ctx context.Context, uow repository.UnitOfWork) (*domain.Transaction, error) {
			return s.transfer(ctx, uow, fromCardID, toCardNumber, amount)
		})
	if err != nil {
		logger.Warn("Transfer failed", "error", err)
		return nil, err
	}
	logger.Info("Transfer completed", "transaction_id", tx.ID, "converted", tx.ConvertedAmount.String())
	eventbus.Publish(ctx, s.publisher, logger, eventbus.TransferCompleted, tx)
	return tx, nil
}

// History lists the rows touching a card, newest first.
func (s *Service) History(ctx context.Context, cardID uint, limit int) ([]*domain.Transaction, error) {
	uow := s.exec.UnitOfWork()
	cards, err := uow.CardRepository()
	if err != nil {
		return nil, err
	}
	if _, err := cards.Get(ctx, cardID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("card")
		}
		return nil, err
	}
	txs, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return txs.ListByCard(ctx, cardID, limit)
}

func (s *Service) transfer(
	ctx context.Context,
	uow repository.UnitOfWork,
	fromCardID uint,
	toCardNumber string,
	amount decimal.Decimal,
) (*domain.Transaction, error) {
	repos, err := ledger.Open(uow)
	if err != nil {
		return nil, err
	}

	sender, err := ledger.Sender(ctx, repos.Cards, fromCardID)
	if err != nil {
		return nil, err
	}
	receiver, err := repos.Cards.GetByNumber(ctx, toCardNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("receiver card")
	}
	if err != nil {
		return nil, err
	}
	if receiver.ID == sender.ID {
		return nil, domain.ErrSameCard
	}

	rates, err := ledger.LatestRates(ctx, repos.Rates)
	if err != nil {
		return nil, err
	}

	locked, err := ledger.LockCards(ctx, repos.Cards, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	sender, receiver = locked[sender.ID], locked[receiver.ID]

	from, to := sender.Currency(), receiver.Currency()
	quote, err := s.calc.Compute(amount, from, to, rates)
	if err != nil {
		return nil, ledger.QuoteError(err)
	}

	if err := sender.Debit(from, quote.TotalDebit); err != nil {
		return nil, err
	}

	regulator, err := ledger.LockRegulator(ctx, repos.Users)
	if err != nil {
		return nil, err
	}

	receiver.Credit(to, quote.Converted)

	if err := repos.SaveBalance(ctx, sender, from); err != nil {
		return nil, err
	}
	if err := repos.SaveBalance(ctx, receiver, to); err != nil {
		return nil, err
	}
	if err := repos.CreditRegulator(ctx, regulator, quote.BtcCommission); err != nil {
		return nil, err
	}

	receiverID := receiver.ID
	row := &domain.Transaction{
		FromCardID:      sender.ID,
		ToCardID:        &receiverID,
		Amount:          quote.Amount,
		ConvertedAmount: quote.Converted,
		Currency:        from,
		TargetCurrency:  to,
		Type:            domain.TransactionTransfer,
		Status:          domain.StatusCompleted,
		FromCardNumber:  sender.Number,
		ToCardNumber:    receiver.Number,
		Description:     describe(quote, receiver.Number),
		TotalDebit:      quote.TotalDebit,
		DebitCurrency:   from,
		BtcCommission:   quote.BtcCommission,
	}
	if err := repos.Transactions.Create(ctx, row); err != nil {
		return nil, err
	}

	commission := CommissionRow(sender, quote, row.ID)
	if err := repos.Transactions.Create(ctx, commission); err != nil {
		return nil, err
	}
	return row, nil
}

// CommissionRow builds the regulator's commission row for a transfer.
func CommissionRow(sender *domain.Card, q currency.Quote, transferID uint) *domain.Transaction {
	return &domain.Transaction{
		FromCardID:      sender.ID,
		Amount:          q.Commission,
		ConvertedAmount: q.BtcCommission,
		Currency:        q.From,
		TargetCurrency:  currency.BTC,
		Type:            domain.TransactionCommission,
		Status:          domain.StatusCompleted,
		FromCardNumber:  sender.Number,
		ToCardNumber:    domain.RegulatorCardNumber,
		Description: fmt.Sprintf("Commission %s %s (%s BTC) for transaction #%d",
			currency.Format(q.Commission, q.From), q.From,
			currency.Format(q.BtcCommission, currency.BTC), transferID),
	}
}

func describe(q currency.Quote, receiverNumber string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer %s %s to %s", currency.Format(q.Amount, q.From), q.From, domain.MaskCardNumber(receiverNumber))
	if q.From != q.To {
		fmt.Fprintf(&b, " (%s %s)", currency.Format(q.Converted, q.To), q.To)
	}
	return b.String()
}
