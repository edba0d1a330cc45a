package crossover

import (
	"cryptobacktest/internal/config"
	"cryptobacktest/internal/indicator"
	"cryptobacktest/types"
)

// Basic buys on a golden cross and sells on a death cross. Signals fire only on the bar
// where the averages cross.
type Basic struct {
	shortWindow int
	longWindow  int
}

func NewBasic(cfg config.MCA) (*Basic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Basic{shortWindow: cfg.ShortWindow, longWindow: cfg.LongWindow}, nil
}

func (b *Basic) Name() string {
	return config.StrategyMCA
}

func (b *Basic) Warmup() int {
	return b.longWindow
}

func (b *Basic) Evaluate(window []types.Candle, _ types.PositionView) types.Decision {
	if len(window) < b.longWindow+1 {
		return types.HoldDecision()
	}
	c, err := detectCross(indicator.Closes(window), b.shortWindow, b.longWindow)
	if err != nil {
		return types.HoldDecision()
	}
	switch {
	case c.rising:
		return types.Decision{Signal: types.Buy, Reason: "golden cross"}
	case c.falling:
		return types.Decision{Signal: types.Sell, Reason: "death cross"}
	}
	return types.HoldDecision()
}
