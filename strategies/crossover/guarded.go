package crossover

import (
	"cryptobacktest/internal/config"
	"cryptobacktest/internal/indicator"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

const (
	ReasonTrendCross = "golden cross above trend"
	ReasonDeathCross = "death cross"
	ReasonStopLoss   = "stop loss"
	ReasonTakeProfit = "take profit"
)

// Guarded only buys golden crosses above the trend SMA and exits an open position on a
// death cross, a stop loss or a take profit, checked in that order.
type Guarded struct {
	shortWindow int
	longWindow  int
	trendWindow int
	stopMul     decimal.Decimal
	profitMul   decimal.Decimal
}

func NewGuarded(cfg config.MCAGuarded) (*Guarded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	one := decimal.NewFromInt(1)
	return &Guarded{
		shortWindow: cfg.ShortWindow,
		longWindow:  cfg.LongWindow,
		trendWindow: cfg.TrendFilterWindow,
		stopMul:     one.Sub(decimal.NewFromFloat(cfg.StopLossPct)),
		profitMul:   one.Add(decimal.NewFromFloat(cfg.TakeProfitPct)),
	}, nil
}

func (g *Guarded) Name() string {
	return config.StrategyMCAGuarded
}

func (g *Guarded) Warmup() int {
	return max(g.longWindow, g.trendWindow)
}

func (g *Guarded) Evaluate(window []types.Candle, pos types.PositionView) types.Decision {
	if len(window) < g.Warmup()+1 {
		return types.HoldDecision()
	}
	closes := indicator.Closes(window)
	c, err := detectCross(closes, g.shortWindow, g.longWindow)
	if err != nil {
		return types.HoldDecision()
	}
	trend, err := indicator.Mean(closes, g.trendWindow)
	if err != nil {
		return types.HoldDecision()
	}

	if c.rising && c.lastClose.GreaterThan(trend) {
		return types.Decision{Signal: types.Buy, Reason: ReasonTrendCross}
	}
	if !pos.Long {
		return types.HoldDecision()
	}
	if c.falling {
		return types.Decision{Signal: types.Sell, Reason: ReasonDeathCross}
	}
	if pos.EntryPrice.Valid {
		entry := pos.EntryPrice.Decimal
		if c.lastClose.LessThanOrEqual(entry.Mul(g.stopMul)) {
			return types.Decision{Signal: types.Sell, Reason: ReasonStopLoss}
		}
		if c.lastClose.GreaterThanOrEqual(entry.Mul(g.profitMul)) {
			return types.Decision{Signal: types.Sell, Reason: ReasonTakeProfit}
		}
	}
	return types.HoldDecision()
}
