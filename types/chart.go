package types

import (
	"time"
)

// Chart is a loaded bar series for a single ticker.
type Chart struct {
	Ticker   string    `json:"ticker"`
	Candles  []Candle  `json:"candles"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Interval Interval  `json:"interval"`
}

func NewChart(ticker string, interval Interval, candles []Candle) Chart {
	chart := Chart{
		Ticker:   ticker,
		Candles:  candles,
		Interval: interval,
	}
	if len(candles) > 0 {
		chart.Start = candles[0].Timestamp
		chart.End = candles[len(candles)-1].Timestamp
	}
	return chart
}
