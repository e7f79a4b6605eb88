package repository

import (
	"errors"
	"fmt"

	"github.com/kichcoin/ledger/pkg/domain"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM errors to domain errors.
// Traverses the error chain to find GORM errors and maps them to appropriate domain errors.
// Duplicate keys keep the driver error in the chain so retry classification
// still sees it.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}

	currentErr := err
	for currentErr != nil {
		switch {
		case errors.Is(currentErr, gorm.ErrDuplicatedKey):
			return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
		case errors.Is(currentErr, gorm.ErrRecordNotFound):
			return domain.ErrNotFound
		}
		currentErr = errors.Unwrap(currentErr)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	}
	return err
}

// WrapError wraps a GORM operation and automatically maps errors.
//
// Usage:
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(user).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
