package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVSource reads bars from a file with a timestamp,open,high,low,close,volume header.
// Timestamps are RFC3339 or unix milliseconds.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Candles(ctx context.Context, req Request) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	candles, err := ReadCSV(f, req.Symbol, req.Interval)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	filtered := candles[:0]
	for _, c := range candles {
		if !req.Start.IsZero() && c.Timestamp.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && !c.Timestamp.Before(req.End) {
			continue
		}
		filtered = append(filtered, c)
	}
	return LastN(filtered, req.Limit), nil
}

func ReadCSV(r io.Reader, symbol string, interval types.Interval) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[i] = col
	}

	var candles []types.Candle
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]decimal.Decimal, 5)
		for i := range values {
			values[i], err = decimal.NewFromString(strings.TrimSpace(record[cols[i+1]]))
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, csvColumns[i+1], err)
			}
		}

		candles = append(candles, types.Candle{
			Ticker:    symbol,
			Timestamp: ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
			Interval:  interval,
		})
	}
	return candles, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}
