// Package phasestop trades a crossover regime with a trailing guard on the short SMA.
package phasestop

import (
	"cryptobacktest/internal/config"
	"cryptobacktest/internal/indicator"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

const (
	ReasonGuardEntry = "short sma above guard"
	ReasonGuardExit  = "short sma below guard"
	ReasonPhaseExit  = "phase turned bearish"
)

// Strategy keeps no state of its own. The phase of the previous step comes back through
// PositionView.Phase and the new phase is returned in every decision.
type Strategy struct {
	shortWindow int
	longWindow  int
	guardWindow int
	delta       decimal.Decimal
}

func New(cfg config.MCADynamicStopLoss) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Strategy{
		shortWindow: cfg.ShortWindow,
		longWindow:  cfg.LongWindow,
		guardWindow: cfg.MaxGuardWindow,
		delta:       decimal.NewFromFloat(cfg.Delta),
	}, nil
}

func (s *Strategy) Name() string {
	return config.StrategyMCADynamicStopLoss
}

func (s *Strategy) Warmup() int {
	return max(s.longWindow, s.shortWindow+s.guardWindow-1)
}

func (s *Strategy) Evaluate(window []types.Candle, pos types.PositionView) types.Decision {
	closes := indicator.Closes(window)
	shortSMAs, err := indicator.MeanSeries(closes, s.shortWindow, s.guardWindow)
	if err != nil {
		return types.HoldDecision()
	}
	long, err := indicator.Mean(closes, s.longWindow)
	if err != nil {
		return types.HoldDecision()
	}
	short := shortSMAs[len(shortSMAs)-1]

	phase := types.Bearish
	if short.GreaterThan(long) {
		phase = types.Bullish
	}
	decision := types.Decision{Signal: types.Hold, Phase: phase, HasPhase: true}

	if phase == types.Bullish {
		guard := decimal.Max(shortSMAs[0], shortSMAs[1:]...).Mul(s.delta)
		switch {
		case !pos.Long && short.GreaterThan(guard):
			decision.Signal = types.Buy
			decision.Reason = ReasonGuardEntry
		case pos.Long && short.LessThan(guard):
			decision.Signal = types.Sell
			decision.Reason = ReasonGuardExit
		}
		return decision
	}

	if pos.Phase == types.Bullish && pos.Long {
		decision.Signal = types.Sell
		decision.Reason = ReasonPhaseExit
	}
	return decision
}
