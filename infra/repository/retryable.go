package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/kichcoin/ledger/pkg/provider"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes worth another attempt.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeAdminShutdown        = "57P01"
	codeQueryCanceled        = "57014"
	classConnectionException = "08"
)

// IsRetryable reports whether err is a transient infrastructure failure:
// serialization failures, deadlocks, duplicate-key races, dropped
// connections and timeouts. Business errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSameCard),
		errors.Is(err, domain.ErrRegulatorNotConfigured),
		errors.Is(err, domain.ErrRatesUnavailable),
		errors.Is(err, domain.ErrHotWalletNotConfigured),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, context.Canceled):
		return false
	}

	if code := sqlState(err); code != "" {
		switch code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation,
			codeAdminShutdown, codeQueryCanceled:
			return true
		}
		return strings.HasPrefix(code, classConnectionException)
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, provider.ErrGatewayUnavailable),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"connection reset",
		"broken pipe",
		"database is locked",
		"database table is locked",
		"sqlite_busy",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

// sqlState extracts the SQLSTATE from either PostgreSQL driver.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	if sqlState(err) == codeUniqueViolation {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed")
}
