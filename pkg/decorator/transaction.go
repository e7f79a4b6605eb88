// Package decorator wraps business operations with transaction management
// and retries. Both wrappers are generic over the operation's result type
// and take an error classifier deciding which failures are transient.
package decorator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kichcoin/ledger/pkg/repository"
)

// Classifier reports whether an error is transient and worth another attempt.
type Classifier func(error) bool

// Policy bounds the attempts of one wrapper.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the upper bound of the random delay added to every backoff.
	Jitter time.Duration
	// AttemptTimeout bounds each attempt. Zero means no per-attempt timeout.
	AttemptTimeout time.Duration
}

// DefaultTransactionPolicy is used by WithTransaction.
var DefaultTransactionPolicy = Policy{
	MaxAttempts:    3,
	BaseDelay:      200 * time.Millisecond,
	MaxDelay:       10 * time.Second,
	Jitter:         time.Second,
	AttemptTimeout: 15 * time.Second,
}

// DefaultRetryPolicy is used by WithRetry.
var DefaultRetryPolicy = Policy{
	MaxAttempts:    5,
	BaseDelay:      500 * time.Millisecond,
	MaxDelay:       30 * time.Second,
	Jitter:         time.Second,
	AttemptTimeout: 15 * time.Second,
}

// Backoff returns min(base * 2^attempt, max) before jitter. attempt starts at 0.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// RetryExhaustedError is returned when every attempt failed with a transient
// error. It marks an infrastructure failure, as opposed to a business one.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsInfrastructure reports whether err is an exhausted-retry failure.
func IsInfrastructure(err error) bool {
	var exhausted *RetryExhaustedError
	return errors.As(err, &exhausted)
}

// Executor carries the unit of work, classifier, policies and logger shared
// by WithTransaction and WithRetry.
type Executor struct {
	uow         repository.UnitOfWork
	classify    Classifier
	txPolicy    Policy
	retryPolicy Policy
	logger      *slog.Logger
	sleep       func(context.Context, time.Duration) error
	jitter      func(time.Duration) time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

func WithTransactionPolicy(p Policy) Option { return func(e *Executor) { e.txPolicy = p } }

func WithRetryPolicy(p Policy) Option { return func(e *Executor) { e.retryPolicy = p } }

func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithJitter replaces the random jitter source.
func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(e *Executor) { e.jitter = fn }
}

// NewExecutor builds an Executor. A nil classifier treats nothing as retryable.
func NewExecutor(uow repository.UnitOfWork, classify Classifier, opts ...Option) *Executor {
	e := &Executor{
		uow:         uow,
		classify:    classify,
		txPolicy:    DefaultTransactionPolicy,
		retryPolicy: DefaultRetryPolicy,
		logger:      slog.Default(),
		sleep:       sleepContext,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classify == nil {
		e.classify = func(error) bool { return false }
	}
	return e
}

// UnitOfWork returns the unit of work transactions run against.
func (e *Executor) UnitOfWork() repository.UnitOfWork { return e.uow }

// WithTransaction runs fn inside one database transaction, retrying the whole
// transaction on transient failures. fn must only touch the store through the
// UnitOfWork it receives; anything else it does is repeated on retry.
func WithTransaction[T any](
	ctx context.Context,
	e *Executor,
	op string,
	fn func(ctx context.Context, uow repository.UnitOfWork) (T, error),
) (T, error) {
	return run(ctx, e, e.txPolicy, op, func(ctx context.Context) (T, error) {
		var result T
		err := e.uow.Do(ctx, func(uow repository.UnitOfWork) (err error) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("Transaction panic recovered", "op", op, "panic", r)
					panic(r)
				}
			}()
			result, err = fn(ctx, uow)
			return err
		})
		if err != nil {
			var zero T
			return zero, err
		}
		return result, nil
	})
}

// WithRetry retries fn on transient failures without transactional semantics.
func WithRetry[T any](
	ctx context.Context,
	e *Executor,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	return run(ctx, e, e.retryPolicy, op, fn)
}

func run[T any](
	ctx context.Context,
	e *Executor,
	p Policy,
	op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := once(ctx, p, fn)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("Operation succeeded after retry", "op", op, "attempt", attempt+1)
			}
			return result, nil
		}
		lastErr = err

		if !e.classify(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, &RetryExhaustedError{Op: op, Attempts: attempt + 1, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if p.Jitter > 0 {
			delay += e.jitter(p.Jitter)
		}
		e.logger.Warn("Retrying after transient error",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"error", err,
			"error_code", errorCode(err),
			"delay", delay,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, &RetryExhaustedError{Op: op, Attempts: attempt + 1, Err: lastErr}
		}
	}

	e.logger.Error("Operation failed after all retries", "op", op, "attempts", attempts, "error", lastErr)
	return zero, &RetryExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

// once runs fn under the per-attempt timeout, if any.
func once[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

// errorCode returns a SQLSTATE-like code when the error exposes one.
func errorCode(err error) string {
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState()
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
