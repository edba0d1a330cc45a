package engine

import (
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

// Result holds the ledgers of one run. Equity has one point per evaluated bar.
type Result struct {
	Strategy       string
	Initial        decimal.Decimal
	Equity         []types.EquityPoint
	Trades         []types.TradeRecord
	Final          PortfolioState
	FinalEquity    decimal.Decimal
	ReturnPct      decimal.Decimal
	IgnoredSignals int
}
