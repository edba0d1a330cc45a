// Package crossover implements moving average crossover strategies on closing prices.
package crossover

import (
	"cryptobacktest/internal/indicator"

	"github.com/shopspring/decimal"
)

type cross struct {
	short     decimal.Decimal
	long      decimal.Decimal
	rising    bool
	falling   bool
	lastClose decimal.Decimal
}

// detectCross compares the short/long SMAs of closes with those of the bar before.
// closes needs at least longWindow+1 values.
func detectCross(closes []decimal.Decimal, shortWindow, longWindow int) (cross, error) {
	prev := closes[:len(closes)-1]

	short, err := indicator.Mean(closes, shortWindow)
	if err != nil {
		return cross{}, err
	}
	long, err := indicator.Mean(closes, longWindow)
	if err != nil {
		return cross{}, err
	}
	prevShort, err := indicator.Mean(prev, shortWindow)
	if err != nil {
		return cross{}, err
	}
	prevLong, err := indicator.Mean(prev, longWindow)
	if err != nil {
		return cross{}, err
	}

	return cross{
		short:     short,
		long:      long,
		rising:    prevShort.LessThanOrEqual(prevLong) && short.GreaterThan(long),
		falling:   prevShort.GreaterThanOrEqual(prevLong) && short.LessThan(long),
		lastClose: closes[len(closes)-1],
	}, nil
}
