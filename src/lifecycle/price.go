package lifecycle

import (
	"context"

	"positionledger/src/model"

	"github.com/shopspring/decimal"
)

// PriceSource quotes the price a position is closed at.
type PriceSource interface {
	ClosePrice(ctx context.Context, position *model.Position) (decimal.Decimal, error)
}

// ZeroPriceSource closes every position at zero. There is no market data
// feed yet, so this is the production default.
type ZeroPriceSource struct{}

func (ZeroPriceSource) ClosePrice(context.Context, *model.Position) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// FixedPriceSource closes every position at Price.
type FixedPriceSource struct {
	Price decimal.Decimal
}

func (s FixedPriceSource) ClosePrice(context.Context, *model.Position) (decimal.Decimal, error) {
	return s.Price, nil
}
