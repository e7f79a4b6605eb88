package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapGormErrorToDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{name: "nil error returns nil", input: nil, expected: nil},
		{name: "duplicate key maps to ErrAlreadyExists", input: gorm.ErrDuplicatedKey, expected: domain.ErrAlreadyExists},
		{name: "record not found maps to ErrNotFound", input: gorm.ErrRecordNotFound, expected: domain.ErrNotFound},
		{
			name:     "wrapped duplicate key maps correctly",
			input:    fmt.Errorf("insert card: %w", gorm.ErrDuplicatedKey),
			expected: domain.ErrAlreadyExists,
		},
		{
			name:     "joined record not found maps correctly",
			input:    errors.Join(errors.New("outer error"), gorm.ErrRecordNotFound),
			expected: domain.ErrNotFound,
		},
		{
			name:     "untranslated pq unique violation maps to ErrAlreadyExists",
			input:    &pq.Error{Code: "23505"},
			expected: domain.ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := MapGormErrorToDomain(tt.input)
			if tt.expected == nil {
				assert.NoError(t, result)
				return
			}
			assert.ErrorIs(t, result, tt.expected)
		})
	}

	t.Run("duplicate key keeps the driver error", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: "23505"}
		err := MapGormErrorToDomain(fmt.Errorf("%w: %w", gorm.ErrDuplicatedKey, pgErr))
		var got *pgconn.PgError
		assert.ErrorAs(t, err, &got)
	})

	t.Run("non-GORM error returns original", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("some other error")
		assert.Same(t, orig, MapGormErrorToDomain(orig))
	})
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pgx deadlock", fmt.Errorf("update card: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pgx connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pgx check violation", &pgconn.PgError{Code: "23514"}, false},
		{"pq serialization failure", &pq.Error{Code: "40001"}, true},
		{"pq syntax error", &pq.Error{Code: "42601"}, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"store duplicate", fmt.Errorf("%w: dup", domain.ErrAlreadyExists), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"context canceled", context.Canceled, false},
		{"not found", domain.NotFound("sender card"), false},
		{"validation", domain.Invalid("amount", "must be positive"), false},
		{"regulator missing", domain.ErrRegulatorNotConfigured, false},
		{"hot wallet missing", domain.ErrHotWalletNotConfigured, false},
		{
			"insufficient funds",
			&domain.InsufficientFundsError{Currency: "BTC", Available: decimal.Zero, Required: decimal.NewFromInt(1)},
			false,
		},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
