package indicator

import (
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first value has no
// previous close and is left undefined.
func TrueRange(candles []types.Candle) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(candles))
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		range1 := high.Sub(low)
		range2 := high.Sub(prevClose).Abs()
		range3 := low.Sub(prevClose).Abs()

		out[i] = decimal.NewNullDecimal(decimal.Max(range1, range2, range3))
	}
	return out
}

// AverageTrueRange is the trailing simple mean of the true range over period bars.
// ATR[i] is undefined for i < period.
func AverageTrueRange(candles []types.Candle, period int) ([]decimal.NullDecimal, error) {
	if period < 1 {
		return nil, ErrInvalidWindow
	}
	trueRanges := TrueRange(candles)
	out := make([]decimal.NullDecimal, len(candles))

	sum := decimal.Zero
	for i := 1; i < len(trueRanges); i++ {
		sum = sum.Add(trueRanges[i].Decimal)
		if i > period {
			sum = sum.Sub(trueRanges[i-period].Decimal)
		}
		if i >= period {
			out[i] = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(period))))
		}
	}
	return out, nil
}

// LastATR returns the most recent defined ATR value, if any.
func LastATR(candles []types.Candle, period int) (decimal.NullDecimal, error) {
	atr, err := AverageTrueRange(candles, period)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if len(atr) == 0 {
		return decimal.NullDecimal{}, nil
	}
	return atr[len(atr)-1], nil
}

// HighLow is the Donchian channel over the given candles.
func HighLow(candles []types.Candle) (decimal.Decimal, decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}

	highest := candles[0].High
	lowest := candles[0].Low

	for _, c := range candles {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
	}
	return highest, lowest
}
