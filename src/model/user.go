package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is owned by the identity service; this engine only moves Wallet and Margin.
// Version is bumped on every wallet mutation and guards compare-and-swap updates.
type User struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Mobile    string          `gorm:"size:20;uniqueIndex" json:"mobile"`
	Name      string          `gorm:"size:120" json:"name"`
	Wallet    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"wallet"`
	Margin    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"margin"`
	Version   int64           `gorm:"not null;default:0" json:"-"`
	Symbols   []WatchSymbol   `gorm:"foreignKey:UserID" json:"symbols,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// HasSymbol reports whether symbol is already on the user's watchlist.
func (u *User) HasSymbol(symbol string) bool {
	for _, s := range u.Symbols {
		if s.Symbol == symbol {
			return true
		}
	}
	return false
}

// WatchSymbol is one entry of a user's watchlist.
type WatchSymbol struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_watchlist_user_symbol" json:"-"`
	Symbol    string    `gorm:"size:60;not null;uniqueIndex:idx_watchlist_user_symbol" json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}

func (WatchSymbol) TableName() string {
	return "watchlist_symbols"
}

// WatchSymbolPayload is the body of POST/DELETE /user/symbol.
type WatchSymbolPayload struct {
	Symbol string `json:"symbol"`
}
