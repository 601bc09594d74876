package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Wallet is a user's balance in one currency.
type Wallet struct {
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey"`
	Currency  enums.Currency `gorm:"column:currency;primaryKey"`
	Balance   int64          `gorm:"column:balance;not null;default:0"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// LedgerEntry records an immutable balance movement. Entries are never updated.
type LedgerEntry struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID                   `gorm:"column:user_id;type:uuid;not null"`
	Currency        enums.Currency              `gorm:"column:currency;not null"`
	Amount          int64                       `gorm:"column:amount;not null"`
	TransactionType enums.LedgerTransactionType `gorm:"column:transaction_type;type:ledger_transaction_type;not null"`
	ReferenceID     *uuid.UUID                  `gorm:"column:reference_id;type:uuid"`
	ReferenceType   *string                     `gorm:"column:reference_type"`
	BalanceAfter    int64                       `gorm:"column:balance_after;not null"`
	Metadata        datatypes.JSON              `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
