package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// TradeRecord is one executed transition of the simulated portfolio.
type TradeRecord struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Side      Side
	Quantity  decimal.Decimal
	CashAfter decimal.Decimal
	Reason    string
}
