package domain

import (
	"errors"
	"fmt"

	"github.com/kichcoin/ledger/pkg/currency"
	"github.com/shopspring/decimal"
)

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned by the store when a unique key already exists.
	// It usually signals a concurrent insert and is worth retrying.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrInsufficientFunds is returned when a card cannot cover a debit
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRegulatorNotConfigured is returned when no regulator user exists
	ErrRegulatorNotConfigured = errors.New("regulator account is not configured")
	// ErrRatesUnavailable is returned when no exchange-rate snapshot exists
	ErrRatesUnavailable = errors.New("exchange rates are not available")
	// ErrHotWalletNotConfigured is returned when an external send needs a hot
	// wallet that has no address configured
	ErrHotWalletNotConfigured = errors.New("hot wallet is not configured for this coin")
	// ErrSameCard is returned when sender and receiver are the same card
	ErrSameCard = errors.New("cannot transfer to the same card")
	// ErrUsernameTaken is returned at registration for an existing username
	ErrUsernameTaken = errors.New("username already taken")
)

// NotFoundError names the entity that could not be found.
type NotFoundError struct {
	Entity string
}

// NotFound returns a NotFoundError for entity, e.g. "sender card".
func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientFundsError reports what the card holds against what the
// transfer needs, both in the card's currency.
type InsufficientFundsError struct {
	Currency  currency.Code
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient %s. Available: %s %s, required: %s %s",
		e.Currency,
		currency.Format(e.Available, e.Currency), e.Currency,
		currency.Format(e.Required, e.Currency), e.Currency,
	)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }
