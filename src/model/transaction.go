package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeCredit = "Credit"
	TransactionTypeDebit  = "Debit"
)

const (
	TransactionSourcePayment       = "payment"
	TransactionSourcePositionClose = "position_close"
)

// Transaction is an append-only ledger entry. Amount is always positive; the
// direction lives in TransactionType.
type Transaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Reference       string          `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	UserID          uint            `gorm:"index;not null" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	TransactionType string          `gorm:"size:10;not null" json:"transaction_type"`
	Source          string          `gorm:"size:30" json:"source"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
