package engine

import (
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scripted replays a fixed signal per step, indexed from the first evaluated bar.
type scripted struct {
	warmup  int
	signals []types.Signal
	phases  []types.Phase
	step    int
	windows [][]types.Candle
	views   []types.PositionView
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) Warmup() int  { return s.warmup }

func (s *scripted) Evaluate(window []types.Candle, pos types.PositionView) types.Decision {
	s.windows = append(s.windows, window)
	s.views = append(s.views, pos)
	d := types.HoldDecision()
	if s.step < len(s.signals) {
		d.Signal = s.signals[s.step]
	}
	if s.step < len(s.phases) {
		d.Phase = s.phases[s.step]
		d.HasPhase = true
	}
	s.step++
	return d
}

func barsFromCloses(closes ...string) []types.Candle {
	bars := make([]types.Candle, len(closes))
	for i, c := range closes {
		price := decimal.RequireFromString(c)
		bars[i] = types.Candle{
			Ticker:    "BTC/USDT",
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1),
			Interval:  types.Hour,
		}
	}
	return bars
}

func trading(balance, fraction float64) config.Trading {
	return config.Trading{InitialBalance: balance, TradeFraction: fraction}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
