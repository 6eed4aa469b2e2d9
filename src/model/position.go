package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StockTypeIndices     = "indices"
	StockTypeOptions     = "options"
	StockTypeFutures     = "futures"
	StockTypeCommodities = "commodities"
	StockTypeDerivatives = "derivatives"
	StockTypeCurrencies  = "currencies"
)

const (
	PositionTypeBuy  = "buy"
	PositionTypeSell = "sell"
)

// Position is a unit of trading exposure owned by a user. A partial close never
// mutates the closed-off part in place: it spawns a new, inactive Position whose
// ParentID points back to the live one.
type Position struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	ParentID      *uint           `gorm:"index" json:"parent_id,omitempty"`
	StockName     string          `gorm:"size:100;not null" json:"stock_name"`
	StockType     string          `gorm:"size:20;not null" json:"stock_type"`
	IsNSE         bool            `gorm:"column:is_nse" json:"is_nse"`
	StockPrice    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"stock_price"`
	StockQuantity int64           `gorm:"not null" json:"stock_quantity"`
	Type          string          `gorm:"size:10;not null" json:"type"`
	IsInteraday   bool            `gorm:"column:is_interaday" json:"is_interaday"`
	IsActive      bool            `gorm:"index;not null" json:"is_active"`
	ClosePrice    decimal.Decimal `gorm:"type:numeric(20,4)" json:"closePrice"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// IsKnownStockType reports whether t is one of the tradable stock classes.
func IsKnownStockType(t string) bool {
	switch t {
	case StockTypeIndices, StockTypeOptions, StockTypeFutures,
		StockTypeCommodities, StockTypeDerivatives, StockTypeCurrencies:
		return true
	}
	return false
}

// OpenPositionPayload is the body of POST /user/order.
type OpenPositionPayload struct {
	IsNSE         bool            `json:"is_nse"`
	StockName     string          `json:"stock_name"`
	StockPrice    decimal.Decimal `json:"stock_price"`
	StockQuantity int64           `json:"stock_quantity"`
	Type          string          `json:"type"`
	IsInteraday   bool            `json:"is_interaday"`
	StockType     string          `json:"stock_type"`
}

// ClosePositionPayload is the body of POST /user/close-position.
// A zero Quantity closes everything that is left.
type ClosePositionPayload struct {
	PositionID uint  `json:"positionId"`
	Quantity   int64 `json:"quantity"`
}
