// Package indicator holds pure helpers over price series. None of them mutate their input.
package indicator

import (
	"errors"
	"fmt"

	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientData = errors.New("insufficient data for indicator")
	ErrInvalidWindow    = errors.New("window must be at least 1")
)

// Closes extracts the close price of every candle.
func Closes(candles []types.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func tail(values []decimal.Decimal, window int) ([]decimal.Decimal, error) {
	if window < 1 {
		return nil, ErrInvalidWindow
	}
	if len(values) < window {
		return nil, fmt.Errorf("have %d values, need %d: %w", len(values), window, ErrInsufficientData)
	}
	return values[len(values)-window:], nil
}

// Mean is the arithmetic mean of the last window values.
func Mean(values []decimal.Decimal, window int) (decimal.Decimal, error) {
	last, err := tail(values, window)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Avg(last[0], last[1:]...), nil
}

func Min(values []decimal.Decimal, window int) (decimal.Decimal, error) {
	last, err := tail(values, window)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Min(last[0], last[1:]...), nil
}

func Max(values []decimal.Decimal, window int) (decimal.Decimal, error) {
	last, err := tail(values, window)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(last[0], last[1:]...), nil
}

// MeanSeries returns the last count rolling means of the given window, oldest first.
func MeanSeries(values []decimal.Decimal, window, count int) ([]decimal.Decimal, error) {
	if window < 1 || count < 1 {
		return nil, ErrInvalidWindow
	}
	need := window + count - 1
	if len(values) < need {
		return nil, fmt.Errorf("have %d values, need %d: %w", len(values), need, ErrInsufficientData)
	}
	out := make([]decimal.Decimal, 0, count)
	for end := len(values) - count + 1; end <= len(values); end++ {
		m, err := Mean(values[:end], window)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
