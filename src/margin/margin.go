package margin

import (
	"positionledger/src/apperror"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidStockClass = apperror.New(apperror.KindValidation, "INVALID_STOCK_CLASS", "invalid stock class")
	// ErrUnsupportedLeverageClass is returned for classes whose multiplier is zero.
	// The balance formula divides by the multiplier, so there is no defined result.
	ErrUnsupportedLeverageClass = apperror.New(apperror.KindValidation, "UNSUPPORTED_LEVERAGE_CLASS", "stock class has no leverage multiplier")
)

// ----- leverage table -----

// Leverage holds the multipliers of one stock class per holding mode.
type Leverage struct {
	Interaday decimal.Decimal
	Holding   decimal.Decimal
}

// Times picks the multiplier for the holding mode.
func (l Leverage) Times(isInteraday bool) decimal.Decimal {
	if isInteraday {
		return l.Interaday
	}
	return l.Holding
}

// LeverageTable is an immutable stock class -> Leverage lookup.
type LeverageTable struct {
	classes map[string]Leverage
}

// NewLeverageTable copies entries, later changes to the map do not leak in.
func NewLeverageTable(entries map[string]Leverage) LeverageTable {
	classes := make(map[string]Leverage, len(entries))
	for class, lev := range entries {
		classes[class] = lev
	}
	return LeverageTable{classes: classes}
}

// DefaultLeverageTable is the multiplier table the brokerage runs with.
func DefaultLeverageTable() LeverageTable {
	return NewLeverageTable(map[string]Leverage{
		"indices":     leverage(500, 50),
		"options":     leverage(10, 1),
		"futures":     leverage(500, 50),
		"commodities": leverage(0, 0),
		"derivatives": leverage(500, 50),
		"currencies":  leverage(0, 0),
	})
}

func leverage(interaday, holding int64) Leverage {
	return Leverage{Interaday: decimal.NewFromInt(interaday), Holding: decimal.NewFromInt(holding)}
}

// Lookup returns the Leverage of class and whether the class is known.
func (t LeverageTable) Lookup(class string) (Leverage, bool) {
	lev, ok := t.classes[class]
	return lev, ok
}

// ----- calculator -----

// DefaultBrokerageRate is 0.01% of the traded value.
var DefaultBrokerageRate = decimal.RequireFromString("0.0001")

type Input struct {
	Balance     decimal.Decimal
	Quantity    int64
	Amount      decimal.Decimal // reference price per unit
	IsInteraday bool
	StockType   string
	Profit      decimal.Decimal // zero when opening
}

type Result struct {
	Margin  decimal.Decimal
	Balance decimal.Decimal
}

// Calculator maps a wallet balance and a traded lot to the new (margin, balance) pair.
// It has no side effects; a zero value Calculator is not usable, use NewCalculator.
type Calculator struct {
	table         LeverageTable
	brokerageRate decimal.Decimal
}

func NewCalculator(table LeverageTable) *Calculator {
	return &Calculator{table: table, brokerageRate: DefaultBrokerageRate}
}

// ComputeMarginBalance applies
//
//	balance' = balance - quantity*amount/times - brokerage + profit
//	margin'  = balance' * times
//
// where times is the class multiplier for the holding mode and brokerage is
// brokerageRate * quantity * amount.
func (c *Calculator) ComputeMarginBalance(in Input) (Result, error) {
	lev, ok := c.table.Lookup(in.StockType)
	if !ok {
		return Result{}, ErrInvalidStockClass.Withf("invalid stock class: %q", in.StockType)
	}

	times := lev.Times(in.IsInteraday)
	if times.IsZero() {
		return Result{}, ErrUnsupportedLeverageClass.Withf("stock class %q has no leverage multiplier", in.StockType)
	}

	totalCharge := decimal.NewFromInt(in.Quantity).Mul(in.Amount)
	brokerage := c.brokerageRate.Mul(totalCharge)

	balance := in.Balance.
		Sub(totalCharge.Div(times)).
		Sub(brokerage).
		Add(in.Profit)

	return Result{
		Margin:  balance.Mul(times),
		Balance: balance,
	}, nil
}
