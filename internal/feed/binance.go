package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptobacktest/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultBinanceURL = "https://api.binance.com"
	// MaxKlinesPerRequest is the page size limit of the klines endpoint.
	MaxKlinesPerRequest = 1000
)

var binanceIntervals = map[types.Interval]string{
	types.OneMinute:      "1m",
	types.ThreeMinutes:   "3m",
	types.FiveMinutes:    "5m",
	types.FifteenMinutes: "15m",
	types.ThirtyMinutes:  "30m",
	types.Hour:           "1h",
	types.TwoHours:       "2h",
	types.FourHours:      "4h",
	types.Day:            "1d",
	types.Week:           "1w",
	types.Month:          "1M",
}

// BinanceSource pages through the public klines endpoint. No API key is needed.
type BinanceSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewBinanceSource(baseURL string, client *http.Client, logger *zap.Logger) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Candles fetches forward from req.Start when set, otherwise the req.Limit bars up to req.End.
func (s *BinanceSource) Candles(ctx context.Context, req Request) ([]types.Candle, error) {
	interval, ok := binanceIntervals[req.Interval]
	if !ok {
		return nil, fmt.Errorf("binance: unsupported interval %q", req.Interval)
	}
	symbol := strings.ToUpper(strings.ReplaceAll(req.Symbol, "/", ""))

	if req.Start.IsZero() {
		if req.Limit <= 0 {
			return nil, fmt.Errorf("binance: limit or start time required")
		}
		return s.fetchBackward(ctx, req, symbol, interval)
	}
	return s.fetchForward(ctx, req, symbol, interval)
}

func (s *BinanceSource) fetchBackward(ctx context.Context, req Request, symbol, interval string) ([]types.Candle, error) {
	var all []types.Candle
	end := req.End

	for len(all) < req.Limit {
		page := min(req.Limit-len(all), MaxKlinesPerRequest)
		batch, err := s.fetchKlines(ctx, req, symbol, interval, time.Time{}, end, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(batch, all...)
		end = batch[0].Timestamp.Add(-time.Millisecond)
		if len(batch) < page {
			break
		}
	}
	s.logger.Info("fetched binance klines", zap.String("symbol", symbol), zap.String("interval", interval), zap.Int("count", len(all)))
	return all, nil
}

func (s *BinanceSource) fetchForward(ctx context.Context, req Request, symbol, interval string) ([]types.Candle, error) {
	var all []types.Candle
	start := req.Start

	for req.Limit <= 0 || len(all) < req.Limit {
		page := MaxKlinesPerRequest
		if req.Limit > 0 {
			page = min(req.Limit-len(all), MaxKlinesPerRequest)
		}
		batch, err := s.fetchKlines(ctx, req, symbol, interval, start, req.End, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		start = batch[len(batch)-1].Timestamp.Add(time.Millisecond)
		if len(batch) < page {
			break
		}
	}
	s.logger.Info("fetched binance klines", zap.String("symbol", symbol), zap.String("interval", interval), zap.Int("count", len(all)))
	return all, nil
}

func (s *BinanceSource) fetchKlines(ctx context.Context, req Request, symbol, interval string, start, end time.Time, limit int) ([]types.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	fullURL := s.baseURL + "/api/v3/klines?" + params.Encode()
	s.logger.Debug("requesting klines", zap.String("url", fullURL))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("binance klines: status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	return klinesToCandles(rows, req.Symbol, req.Interval)
}

// klinesToCandles converts [openTime, open, high, low, close, volume, ...] rows.
func klinesToCandles(rows [][]json.RawMessage, symbol string, interval types.Interval) ([]types.Candle, error) {
	candles := make([]types.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		values := make([]decimal.Decimal, 5)
		for j := range values {
			var raw string
			if err := json.Unmarshal(row[j+1], &raw); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			values[j] = v
		}
		candles = append(candles, types.Candle{
			Ticker:    symbol,
			Timestamp: time.UnixMilli(openTime).UTC(),
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
