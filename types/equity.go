package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is the portfolio valuation after processing one bar.
// Equity is always Cash + Position*Close.
type EquityPoint struct {
	Timestamp time.Time
	Close     decimal.Decimal
	Cash      decimal.Decimal
	Position  decimal.Decimal
	Equity    decimal.Decimal
	Phase     Phase
	HasPhase  bool
}

// PositionView is the read-only slice of portfolio state a strategy may inspect.
type PositionView struct {
	Long       bool
	EntryPrice decimal.NullDecimal
	Phase      Phase
	HasPhase   bool
}
