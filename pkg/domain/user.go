package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User owns cards. Exactly one user is the regulator and collects every
// commission, in BTC, on RegulatorBalance.
type User struct {
	ID               uint
	Username         string
	Password         string
	IsRegulator      bool
	RegulatorBalance decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
