package sweep

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/engine"
	"cryptobacktest/internal/metrics"
	"cryptobacktest/strategies"
	"cryptobacktest/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trading = config.Trading{InitialBalance: 1000, TradeFraction: 0.5}

func series() []types.Candle {
	closes := []int64{10, 10, 10, 13, 14, 15, 9, 8, 7, 12, 14, 16, 15, 11, 9, 8, 10, 13, 15, 17}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		p := decimal.NewFromInt(c)
		out[i] = types.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: p, High: p, Low: p, Close: p}
	}
	return out
}

func mca() config.Strategy {
	return config.Strategy{Name: config.StrategyMCA}
}

func TestGrid(t *testing.T) {
	tests := []struct {
		name    string
		base    config.Strategy
		shorts  []int
		longs   []int
		want    [][2]int
		wantErr error
	}{
		{"pairs with short below long", mca(), []int{2, 3, 5}, []int{3, 5}, [][2]int{{2, 3}, {2, 5}, {3, 5}}, nil},
		{"guarded windows", config.Strategy{Name: config.StrategyMCAGuarded}, []int{2}, []int{4}, [][2]int{{2, 4}}, nil},
		{"no valid pair", mca(), []int{5}, []int{3}, nil, ErrEmptyGrid},
		{"dip top cannot sweep", config.Strategy{Name: config.StrategyDipTop}, []int{2}, []int{3}, nil, ErrNotSweepable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := Grid(tt.base, tt.shorts, tt.longs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, jobs, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w[0], jobs[i].ShortWindow)
				assert.Equal(t, w[1], jobs[i].LongWindow)
			}
		})
	}

	jobs, err := Grid(config.Strategy{Name: config.StrategyMCADynamicStopLoss}, []int{2}, []int{6})
	require.NoError(t, err)
	assert.Equal(t, 2, jobs[0].Strategy.MCADynamicStopLoss.ShortWindow)
	assert.Equal(t, 6, jobs[0].Strategy.MCADynamicStopLoss.LongWindow)
}

func TestRunMatchesSequentialRuns(t *testing.T) {
	bars := series()
	jobs, err := Grid(mca(), []int{2, 3, 4}, []int{3, 5, 8})
	require.NoError(t, err)

	outcomes, err := NewRunner(trading, 3, WithProgress(io.Discard)).Run(context.Background(), bars, jobs)
	require.NoError(t, err)
	require.Len(t, outcomes, len(jobs))

	for i, job := range jobs {
		assert.Equal(t, job, outcomes[i].Job)
		require.NoError(t, outcomes[i].Err)

		strat, err := strategies.New(job.Strategy)
		require.NoError(t, err)
		eng, err := engine.New(trading, strat)
		require.NoError(t, err)
		want, err := eng.Run(bars)
		require.NoError(t, err)

		assert.True(t, want.FinalEquity.Equal(outcomes[i].Result.FinalEquity), "job %d", i)
		assert.Equal(t, len(want.Trades), len(outcomes[i].Result.Trades), "job %d", i)
	}
}

func TestRunKeepsPerJobFailures(t *testing.T) {
	m := metrics.NewMetrics()
	jobs, err := Grid(mca(), []int{2}, []int{3, 50})
	require.NoError(t, err)

	outcomes, err := NewRunner(trading, 2, WithMetrics(m)).Run(context.Background(), series(), jobs)
	require.NoError(t, err)

	assert.NoError(t, outcomes[0].Err)
	assert.True(t, errors.Is(outcomes[1].Err, engine.ErrInsufficientData))
	assert.Nil(t, outcomes[1].Result)
	assert.Equal(t, 0, Best(outcomes))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(config.StrategyMCA, metrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(config.StrategyMCA, metrics.StatusError)))
}

func TestRunStopsOnCancel(t *testing.T) {
	jobs, err := Grid(mca(), []int{2, 3}, []int{4, 5})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewRunner(trading, 1).Run(ctx, series(), jobs)
	assert.ErrorIs(t, err, context.Canceled)
	for _, o := range outcomes {
		assert.Nil(t, o.Result)
	}
}

func TestBest(t *testing.T) {
	res := func(pct string) *engine.Result {
		return &engine.Result{ReturnPct: decimal.RequireFromString(pct)}
	}
	tests := []struct {
		name     string
		outcomes []Outcome
		want     int
	}{
		{"empty", nil, -1},
		{"all failed", []Outcome{{Err: errors.New("x")}}, -1},
		{"highest return", []Outcome{{Result: res("1")}, {Result: res("7.5")}, {Result: res("-3")}}, 1},
		{"tie keeps first", []Outcome{{Result: res("2")}, {Result: res("2")}}, 0},
		{"skips failures", []Outcome{{Err: errors.New("x"), Result: res("99")}, {Result: res("0")}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Best(tt.outcomes))
		})
	}
}
