package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/repository"
	"gorm.io/gorm"
)

type exchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository returns a gorm-backed ExchangeRateRepository.
func NewExchangeRateRepository(db *gorm.DB) repository.ExchangeRateRepository {
	return &exchangeRateRepository{db: db}
}

// Latest returns the newest snapshot or domain.ErrRatesUnavailable.
func (r *exchangeRateRepository) Latest(ctx context.Context) (*domain.ExchangeRates, error) {
	var m ExchangeRate
	err := WrapError(func() error {
		return r.db.WithContext(ctx).Order("id DESC").First(&m).Error
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrRatesUnavailable
	}
	if err != nil {
		return nil, err
	}

	out := &domain.ExchangeRates{ID: m.ID, Source: m.Source, UpdatedAt: m.UpdatedAt}
	if out.UsdToUah, err = parseAmount(m.UsdToUah); err != nil {
		return nil, fmt.Errorf("exchange rate %d usdToUah: %w", m.ID, err)
	}
	if out.BtcToUsd, err = parseAmount(m.BtcToUsd); err != nil {
		return nil, fmt.Errorf("exchange rate %d btcToUsd: %w", m.ID, err)
	}
	if out.EthToUsd, err = parseAmount(m.EthToUsd); err != nil {
		return nil, fmt.Errorf("exchange rate %d ethToUsd: %w", m.ID, err)
	}
	return out, nil
}

func (r *exchangeRateRepository) Create(ctx context.Context, rates *domain.ExchangeRates) error {
	m := &ExchangeRate{
		UsdToUah:  rates.UsdToUah.String(),
		BtcToUsd:  rates.BtcToUsd.String(),
		EthToUsd:  rates.EthToUsd.String(),
		Source:    rates.Source,
		UpdatedAt: rates.UpdatedAt,
	}
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	}); err != nil {
		return err
	}
	rates.ID = m.ID
	rates.UpdatedAt = m.UpdatedAt
	return nil
}
