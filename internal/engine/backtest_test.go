package engine

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"cryptobacktest/internal/config"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	_, err := New(trading(0, 1), &scripted{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(trading(1000, 1.5), &scripted{})
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "trading.trade_fraction", cfgErr.Param)

	_, err = New(trading(1000, 1), nil)
	assert.ErrorIs(t, err, ErrNoStrategy)

	eng, err := New(trading(1000, 1), &scripted{})
	require.NoError(t, err)
	assert.True(t, eng.InitialBalance().Equal(dec("1000")))
}

func TestRunRoundTrip(t *testing.T) {
	strat := &scripted{signals: []types.Signal{types.Buy, types.Hold, types.Sell}}
	eng, err := New(trading(1000, 1), strat)
	require.NoError(t, err)

	result, err := eng.Run(barsFromCloses("100", "105", "110"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, types.SideTypeBuy, result.Trades[0].Side)
	assert.True(t, result.Trades[0].Quantity.Equal(dec("10")))
	assert.True(t, result.Trades[0].CashAfter.IsZero())
	assert.Equal(t, types.SideTypeSell, result.Trades[1].Side)
	assert.True(t, result.Trades[1].CashAfter.Equal(dec("1100")))

	require.Len(t, result.Equity, 3)
	assert.True(t, result.Equity[1].Equity.Equal(dec("1050")))
	assert.True(t, result.FinalEquity.Equal(dec("1100")))
	assert.True(t, result.ReturnPct.Equal(dec("10")), "return got %s", result.ReturnPct)
	assert.True(t, result.Final.Position.IsZero())
	assert.Equal(t, 0, result.IgnoredSignals)
	assert.Equal(t, "scripted", result.Strategy)
}

func TestRunIgnoresInvalidTransitions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	strat := &scripted{signals: []types.Signal{types.Sell, types.Buy, types.Buy, types.Sell, types.Sell}}
	eng, err := New(trading(1000, 1), strat, WithLogger(zap.New(core)))
	require.NoError(t, err)

	result, err := eng.Run(barsFromCloses("100", "100", "100", "100", "100"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.IgnoredSignals)
	require.Len(t, result.Trades, 2)
	assert.Len(t, result.Equity, 5)
	assert.True(t, result.FinalEquity.Equal(dec("1000")))
	assert.Equal(t, 3, logs.FilterMessage("signal ignored").Len())
	assert.Equal(t, 1, logs.FilterMessage("backtest finished").Len())
}

func TestRunTradeFractionCompounding(t *testing.T) {
	strat := &scripted{signals: []types.Signal{types.Buy, types.Buy, types.Sell}}
	eng, err := New(trading(1000, 0.5), strat)
	require.NoError(t, err)

	result, err := eng.Run(barsFromCloses("100", "100", "200"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 3)
	assert.True(t, result.Trades[0].CashAfter.Equal(dec("500")))
	assert.True(t, result.Trades[1].CashAfter.Equal(dec("250")))
	assert.True(t, result.Trades[2].Quantity.Equal(dec("7.5")))
	assert.True(t, result.FinalEquity.Equal(dec("1750")))
	assert.True(t, result.ReturnPct.Equal(dec("75")))
}

func TestRunInsufficientData(t *testing.T) {
	eng, err := New(trading(1000, 1), &scripted{warmup: 3})
	require.NoError(t, err)

	_, err = eng.Run(barsFromCloses("1", "2", "3"))
	require.ErrorIs(t, err, ErrInsufficientData)
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Have)
	assert.Equal(t, 4, insufficient.Need)

	result, err := eng.Run(barsFromCloses("1", "2", "3", "4"))
	require.NoError(t, err)
	assert.Len(t, result.Equity, 1)

	_, err = eng.Run(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRunWindowsNeverSeeFutureBars(t *testing.T) {
	bars := barsFromCloses("1", "2", "3", "4", "5", "6")
	strat := &scripted{warmup: 2}
	eng, err := New(trading(1000, 1), strat)
	require.NoError(t, err)

	_, err = eng.Run(bars)
	require.NoError(t, err)

	require.Len(t, strat.windows, 4)
	for step, window := range strat.windows {
		i := step + 2
		require.Len(t, window, 3)
		assert.Equal(t, bars[i].Timestamp, window[len(window)-1].Timestamp)
		assert.Equal(t, bars[i-2].Timestamp, window[0].Timestamp)
		assert.Equal(t, len(window), cap(window))
	}
}

// momentum buys after an up close and sells after a down close, so its decisions depend on the data.
type momentum struct{}

func (momentum) Name() string { return "momentum" }
func (momentum) Warmup() int  { return 1 }

func (momentum) Evaluate(window []types.Candle, _ types.PositionView) types.Decision {
	prev, last := window[len(window)-2].Close, window[len(window)-1].Close
	switch {
	case last.GreaterThan(prev):
		return types.Decision{Signal: types.Buy}
	case last.LessThan(prev):
		return types.Decision{Signal: types.Sell}
	}
	return types.HoldDecision()
}

func TestRunFutureBarsDoNotChangeThePast(t *testing.T) {
	base := []string{"100", "103", "101", "99", "104", "107", "102", "98", "105", "110"}
	for _, cut := range []int{2, 4, 6, 8} {
		t.Run(fmt.Sprintf("bars after %d changed", cut), func(t *testing.T) {
			altered := append([]string(nil), base[:cut+1]...)
			for i := cut + 1; i < len(base); i++ {
				altered = append(altered, strconv.Itoa(50+7*i))
			}

			run := func(closes []string) *Result {
				eng, err := New(trading(1000, 0.5), momentum{})
				require.NoError(t, err)
				result, err := eng.Run(barsFromCloses(closes...))
				require.NoError(t, err)
				return result
			}
			original, changed := run(base), run(altered)

			// equity index 0 is bar 1, so bar cut is equity index cut-1
			assert.Equal(t, original.Equity[:cut], changed.Equity[:cut])
			cutoff := barsFromCloses(base...)[cut].Timestamp
			var want, got []types.TradeRecord
			for _, tr := range original.Trades {
				if !tr.Timestamp.After(cutoff) {
					want = append(want, tr)
				}
			}
			for _, tr := range changed.Trades {
				if !tr.Timestamp.After(cutoff) {
					got = append(got, tr)
				}
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRunConservation(t *testing.T) {
	closes := []string{"100", "97.3", "101.7", "88.1", "93.9", "120.4", "111.11", "99.99"}
	strat := &scripted{signals: []types.Signal{types.Buy, types.Buy, types.Hold, types.Sell, types.Buy, types.Buy, types.Sell, types.Hold}}
	eng, err := New(trading(1000, 0.3), strat)
	require.NoError(t, err)

	bars := barsFromCloses(closes...)
	result, err := eng.Run(bars)
	require.NoError(t, err)

	prev := NewPortfolioState(dec("1000"))
	for i, point := range result.Equity {
		assert.True(t, point.Equity.Equal(point.Cash.Add(point.Position.Mul(point.Close))))
		assert.False(t, point.Cash.IsNegative())
		assert.False(t, point.Position.IsNegative())

		// a transition never changes the value of the account at the bar price
		before := prev.Equity(bars[i].Close).Round(cashScale)
		assert.True(t, before.Equal(point.Equity.Round(cashScale)), "bar %d: %s vs %s", i, before, point.Equity)
		prev = PortfolioState{Cash: point.Cash, Position: point.Position}
	}
}

func TestRunTradeFractionRoundTripIsExact(t *testing.T) {
	for _, price := range []string{"3", "7", "97.3"} {
		t.Run("price "+price, func(t *testing.T) {
			eng, err := New(trading(1000, 0.5), &scripted{signals: []types.Signal{types.Buy, types.Sell}})
			require.NoError(t, err)

			result, err := eng.Run(barsFromCloses(price, price))
			require.NoError(t, err)
			require.Len(t, result.Trades, 2)
			assert.True(t, result.Final.Cash.Equal(dec("1000")), "cash got %s", result.Final.Cash)
			assert.True(t, result.ReturnPct.IsZero(), "return got %s", result.ReturnPct)
		})
	}
}

func TestRunDeterminism(t *testing.T) {
	bars := barsFromCloses("100", "90", "110", "95", "130")
	signals := []types.Signal{types.Buy, types.Sell, types.Buy, types.Hold, types.Sell}

	run := func() *Result {
		eng, err := New(trading(1000, 0.7), &scripted{signals: signals})
		require.NoError(t, err)
		result, err := eng.Run(bars)
		require.NoError(t, err)
		return result
	}
	assert.Equal(t, run(), run())
}

func TestRunRecordsPhase(t *testing.T) {
	strat := &scripted{phases: []types.Phase{types.Bullish, types.Bearish}}
	eng, err := New(trading(1000, 1), strat)
	require.NoError(t, err)

	result, err := eng.Run(barsFromCloses("1", "2", "3"))
	require.NoError(t, err)

	assert.True(t, result.Equity[0].HasPhase)
	assert.Equal(t, types.Bullish, result.Equity[0].Phase)
	assert.Equal(t, types.Bearish, result.Equity[1].Phase)
	// last decision carries no phase, the previous one is kept
	assert.Equal(t, types.Bearish, result.Equity[2].Phase)

	assert.False(t, strat.views[0].HasPhase)
	assert.Equal(t, types.Bullish, strat.views[1].Phase)
}

func TestRunDoesNotModifyBars(t *testing.T) {
	bars := barsFromCloses("100", "110", "120")
	snapshot := append([]types.Candle(nil), bars...)
	eng, err := New(trading(1000, 1), &scripted{warmup: 1, signals: []types.Signal{types.Buy, types.Sell}})
	require.NoError(t, err)

	_, err = eng.Run(bars)
	require.NoError(t, err)
	assert.Equal(t, snapshot, bars)
	assert.True(t, decimal.NewFromInt(100).Equal(bars[0].Close))
}
