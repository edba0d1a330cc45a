// Package diptop buys closes that fall well below the recent range and sells closes that rise above it.
package diptop

import (
	"cryptobacktest/internal/config"
	"cryptobacktest/internal/indicator"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

type Strategy struct {
	window  int
	mode    string
	buyMul  decimal.Decimal
	sellMul decimal.Decimal
}

func New(cfg config.DipTop) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hundred := decimal.NewFromInt(100)
	return &Strategy{
		window:  cfg.Window,
		mode:    cfg.StratType,
		buyMul:  one.Sub(decimal.NewFromFloat(cfg.DipPct).Div(hundred)),
		sellMul: one.Add(decimal.NewFromFloat(cfg.TopPct).Div(hundred)),
	}, nil
}

func (s *Strategy) Name() string {
	return config.StrategyDipTop + "/" + s.mode
}

func (s *Strategy) Warmup() int {
	return s.window
}

func (s *Strategy) Evaluate(window []types.Candle, _ types.PositionView) types.Decision {
	closes := indicator.Closes(window)
	if len(closes) == 0 {
		return types.HoldDecision()
	}
	last := closes[len(closes)-1]

	if s.mode == config.DipTopMinMax {
		return s.evaluateMinMax(closes[:len(closes)-1], last)
	}
	return s.evaluateMean(closes, last)
}

// evaluateMean compares the close with the mean of the window, current bar included.
func (s *Strategy) evaluateMean(closes []decimal.Decimal, last decimal.Decimal) types.Decision {
	mean, err := indicator.Mean(closes, s.window)
	if err != nil {
		return types.HoldDecision()
	}
	switch {
	case last.LessThan(mean.Mul(s.buyMul)):
		return types.Decision{Signal: types.Buy, Reason: "close below dip threshold"}
	case last.GreaterThan(mean.Mul(s.sellMul)):
		return types.Decision{Signal: types.Sell, Reason: "close above top threshold"}
	}
	return types.HoldDecision()
}

// evaluateMinMax compares the close with the range of the preceding window bars only.
// Including the current bar would make a breakout impossible.
func (s *Strategy) evaluateMinMax(prior []decimal.Decimal, last decimal.Decimal) types.Decision {
	lo, err := indicator.Min(prior, s.window)
	if err != nil {
		return types.HoldDecision()
	}
	hi, err := indicator.Max(prior, s.window)
	if err != nil {
		return types.HoldDecision()
	}
	switch {
	case last.LessThan(lo):
		return types.Decision{Signal: types.Buy, Reason: "close below window low"}
	case last.GreaterThan(hi):
		return types.Decision{Signal: types.Sell, Reason: "close above window high"}
	}
	return types.HoldDecision()
}
