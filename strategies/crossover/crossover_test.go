package crossover

import (
	"strconv"
	"testing"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/engine"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(closes ...string) []types.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: decimal.RequireFromString(c)}
	}
	return out
}

func long(entry string) types.PositionView {
	return types.PositionView{Long: true, EntryPrice: decimal.NewNullDecimal(decimal.RequireFromString(entry))}
}

func TestBasicEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		closes []string
		want   types.Signal
	}{
		{"golden cross", []string{"10", "10", "10", "13"}, types.Buy},
		{"already above, no new cross", []string{"10", "10", "13", "14"}, types.Hold},
		{"death cross", []string{"10", "10", "10", "7"}, types.Sell},
		{"already below, no new cross", []string{"10", "10", "7", "6"}, types.Hold},
		{"flat", []string{"10", "10", "10", "10"}, types.Hold},
	}
	s, err := NewBasic(config.MCA{ShortWindow: 2, LongWindow: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Warmup())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Evaluate(bars(tt.closes...), types.PositionView{}).Signal)
		})
	}
}

func TestBasicSignalsOnlyOnCrossBars(t *testing.T) {
	s, err := NewBasic(config.MCA{ShortWindow: 2, LongWindow: 3})
	require.NoError(t, err)
	eng, err := engine.New(config.Trading{InitialBalance: 1000, TradeFraction: 0.5}, s)
	require.NoError(t, err)

	series := bars("10", "10", "10", "13", "14", "15", "9", "8", "7", "12", "14")
	result, err := eng.Run(series)
	require.NoError(t, err)

	// one buy per golden cross even though short stays above long afterwards
	require.Len(t, result.Trades, 3)
	assert.Equal(t, series[3].Timestamp, result.Trades[0].Timestamp)
	assert.Equal(t, types.SideTypeBuy, result.Trades[0].Side)
	assert.Equal(t, series[6].Timestamp, result.Trades[1].Timestamp)
	assert.Equal(t, types.SideTypeSell, result.Trades[1].Side)
	assert.Equal(t, series[9].Timestamp, result.Trades[2].Timestamp)
	assert.Equal(t, types.SideTypeBuy, result.Trades[2].Side)
	assert.Equal(t, 0, result.IgnoredSignals)
}

func TestBasicAtMostOneBuyOnRisingSeries(t *testing.T) {
	rising := make([]string, 30)
	for i := range rising {
		rising[i] = strconv.Itoa(i + 1)
	}
	flatThenRising := []string{"10", "10", "10", "10", "10", "10", "10"}
	for p := 11; p <= 30; p++ {
		flatThenRising = append(flatThenRising, strconv.Itoa(p))
	}

	tests := []struct {
		name      string
		closes    []string
		wantBuys  int
		wantFirst int
	}{
		{"strictly increasing from the start", rising, 0, -1},
		{"flat then strictly increasing", flatThenRising, 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewBasic(config.MCA{ShortWindow: 3, LongWindow: 7})
			require.NoError(t, err)
			eng, err := engine.New(config.Trading{InitialBalance: 1000, TradeFraction: 0.5}, s)
			require.NoError(t, err)

			series := bars(tt.closes...)
			result, err := eng.Run(series)
			require.NoError(t, err)

			// short stays above long after the first cross, so no further buy may fire
			buys := 0
			for _, trade := range result.Trades {
				assert.Equal(t, types.SideTypeBuy, trade.Side)
				buys++
			}
			assert.LessOrEqual(t, buys, 1)
			assert.Equal(t, tt.wantBuys, buys)
			if tt.wantFirst >= 0 {
				assert.Equal(t, series[tt.wantFirst].Timestamp, result.Trades[0].Timestamp)
			}
			assert.Equal(t, 0, result.IgnoredSignals)
		})
	}
}

func guarded(t *testing.T) *Guarded {
	t.Helper()
	g, err := NewGuarded(config.MCAGuarded{
		ShortWindow:       2,
		LongWindow:        3,
		TrendFilterWindow: 5,
		StopLossPct:       0.1,
		TakeProfitPct:     0.2,
	})
	require.NoError(t, err)
	return g
}

func TestGuardedEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		closes     []string
		pos        types.PositionView
		want       types.Signal
		wantReason string
	}{
		{"cross above trend", []string{"10", "10", "10", "10", "10", "13"}, types.PositionView{}, types.Buy, ReasonTrendCross},
		{"cross below trend", []string{"30", "30", "10", "10", "10", "12"}, types.PositionView{}, types.Hold, ""},
		{"death cross while flat", []string{"10", "10", "10", "10", "10", "7"}, types.PositionView{}, types.Hold, ""},
		{"death cross beats stop loss", []string{"10", "10", "10", "10", "10", "7"}, long("100"), types.Sell, ReasonDeathCross},
		{"stop loss at threshold", []string{"90", "90", "90", "90", "90", "90"}, long("100"), types.Sell, ReasonStopLoss},
		{"above stop loss", []string{"91", "91", "91", "91", "91", "91"}, long("100"), types.Hold, ""},
		{"take profit at threshold", []string{"120", "120", "120", "120", "120", "120"}, long("100"), types.Sell, ReasonTakeProfit},
		{"entry rule first while long", []string{"10", "10", "10", "10", "10", "13"}, long("10"), types.Buy, ReasonTrendCross},
	}
	g := guarded(t)
	assert.Equal(t, 5, g.Warmup())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Evaluate(bars(tt.closes...), tt.pos)
			assert.Equal(t, tt.want, got.Signal)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestGuardedStopLossBacktest(t *testing.T) {
	eng, err := engine.New(config.Trading{InitialBalance: 1000, TradeFraction: 1}, guarded(t))
	require.NoError(t, err)

	// enters on the cross at 13, stop level is 11.7; the short SMA stays above the long one
	result, err := eng.Run(bars("10", "10", "10", "10", "10", "13", "15", "11.7", "11"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, types.SideTypeBuy, result.Trades[0].Side)
	assert.Equal(t, types.SideTypeSell, result.Trades[1].Side)
	assert.Equal(t, ReasonStopLoss, result.Trades[1].Reason)
	assert.True(t, result.Trades[1].Price.Equal(decimal.RequireFromString("11.7")))
	assert.True(t, result.Final.Position.IsZero())
}

func TestNewGuardedInvalid(t *testing.T) {
	_, err := NewGuarded(config.MCAGuarded{ShortWindow: 3, LongWindow: 2, TrendFilterWindow: 5, StopLossPct: 0.1, TakeProfitPct: 0.1})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
