// Package feed loads bar series from the configured source and checks they are fit for replay.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptobacktest/types"
)

var (
	ErrUnordered = errors.New("bars are not strictly ordered by timestamp")
	ErrNoBars    = errors.New("source returned no bars")
)

type Request struct {
	Symbol   string
	Interval types.Interval
	// Start and End are optional. When Start is zero the source returns the Limit most recent bars.
	Start time.Time
	End   time.Time
	Limit int
}

type Source interface {
	Candles(ctx context.Context, req Request) ([]types.Candle, error)
}

// Range resolves the optional bounds of the request against now.
func (r Request) Range(now time.Time) (time.Time, time.Time) {
	end := r.End
	if end.IsZero() {
		end = now
	}
	start := r.Start
	if start.IsZero() && r.Limit > 0 {
		if d, ok := types.IntervalToTime[r.Interval]; ok {
			start = end.Add(-d * time.Duration(r.Limit))
		}
	}
	return start, end
}

// Load fetches bars and rejects series that are empty, unordered or contain duplicates.
func Load(ctx context.Context, src Source, req Request) (types.Chart, error) {
	candles, err := src.Candles(ctx, req)
	if err != nil {
		return types.Chart{}, fmt.Errorf("load %s %s: %w", req.Symbol, req.Interval, err)
	}
	if len(candles) == 0 {
		return types.Chart{}, fmt.Errorf("load %s %s: %w", req.Symbol, req.Interval, ErrNoBars)
	}
	if err := CheckOrder(candles); err != nil {
		return types.Chart{}, err
	}
	return types.NewChart(req.Symbol, req.Interval, candles), nil
}

func CheckOrder(candles []types.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("bar %d at %s follows %s: %w",
				i, candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339), ErrUnordered)
		}
	}
	return nil
}

// LastN keeps the most recent n candles. n <= 0 keeps everything.
func LastN(candles []types.Candle, n int) []types.Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
