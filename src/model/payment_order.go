package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOrder mirrors an order created on the payment gateway. IsSuccess moves
// from false to true exactly once and that transition is what credits the wallet.
type PaymentOrder struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency  string          `gorm:"size:8;not null" json:"currency"`
	Receipt   string          `gorm:"size:64" json:"receipt"`
	Status    string          `gorm:"size:30" json:"status"`
	IsSuccess bool            `gorm:"not null;default:false" json:"is_success"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// CreatePaymentOrderPayload is the body of POST /user/createorder.
// Amount is expressed in the gateway's minor unit.
type CreatePaymentOrderPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

// VerifyPaymentPayload is the gateway callback body of POST /user/verifyorder.
// The signature travels in the x-razorpay-signature header.
type VerifyPaymentPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}
