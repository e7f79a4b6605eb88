package repository

import (
	"time"
)

// Money columns are decimal strings fixed to the currency precision so that
// no driver ever routes them through a float.

// User represents a user record in the database.
type User struct {
	ID               uint   `gorm:"primaryKey"`
	Username         string `gorm:"uniqueIndex;not null;size:50"`
	Password         string `gorm:"not null"`
	IsRegulator      bool   `gorm:"not null;default:false;index"`
	RegulatorBalance string `gorm:"type:varchar(64);not null;default:'0'"`
	Cards            []Card `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (User) TableName() string { return "users" }

// Card represents a card record in the database.
type Card struct {
	ID         uint    `gorm:"primaryKey"`
	UserID     uint    `gorm:"not null;index"`
	Type       string  `gorm:"type:varchar(16);not null"`
	Number     string  `gorm:"type:varchar(16);uniqueIndex;not null"`
	Expiry     string  `gorm:"type:varchar(5);not null"`
	CVV        string  `gorm:"column:cvv;type:varchar(4);not null"`
	Balance    string  `gorm:"type:varchar(64);not null;default:'0'"`
	BtcBalance string  `gorm:"type:varchar(64);not null;default:'0'"`
	EthBalance string  `gorm:"type:varchar(64);not null;default:'0'"`
	BtcAddress *string `gorm:"type:varchar(128);uniqueIndex"`
	EthAddress *string `gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Card) TableName() string { return "cards" }

// Transaction represents an append-only ledger row.
type Transaction struct {
	ID              uint    `gorm:"primaryKey"`
	FromCardID      uint    `gorm:"not null;index"`
	ToCardID        *uint   `gorm:"index"`
	Amount          string  `gorm:"type:varchar(64);not null"`
	ConvertedAmount string  `gorm:"type:varchar(64);not null;default:'0'"`
	Currency        string  `gorm:"type:varchar(8);not null"`
	TargetCurrency  string  `gorm:"type:varchar(8)"`
	Type            string  `gorm:"type:varchar(32);not null;index"`
	Status          string  `gorm:"type:varchar(16);not null"`
	FromCardNumber  string  `gorm:"type:varchar(32);not null"`
	ToCardNumber    string  `gorm:"type:varchar(128);not null"`
	Description     string  `gorm:"type:text"`
	TotalDebit      string  `gorm:"type:varchar(64);not null;default:'0'"`
	DebitCurrency   string  `gorm:"type:varchar(8)"`
	BtcCommission   string  `gorm:"type:varchar(64);not null;default:'0'"`
	Wallet          *string `gorm:"type:varchar(128)"`
	SettlementMode  string  `gorm:"type:varchar(16)"`
	ExternalTxID    *string `gorm:"type:varchar(128);index"`
	// RefundOf is unique so a send can be compensated at most once.
	RefundOf  *uint     `gorm:"uniqueIndex"`
	CreatedAt time.Time `gorm:"index"`
}

func (Transaction) TableName() string { return "transactions" }

// ExchangeRate is one rate snapshot row.
type ExchangeRate struct {
	ID        uint   `gorm:"primaryKey"`
	UsdToUah  string `gorm:"type:varchar(64);not null"`
	BtcToUsd  string `gorm:"type:varchar(64);not null"`
	EthToUsd  string `gorm:"type:varchar(64);not null"`
	Source    string `gorm:"type:varchar(64)"`
	UpdatedAt time.Time
}

func (ExchangeRate) TableName() string { return "exchange_rates" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&User{}, &Card{}, &Transaction{}, &ExchangeRate{}}
}
