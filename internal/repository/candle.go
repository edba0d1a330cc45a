package repository

import (
	"context"
	"errors"
	"time"

	"cryptobacktest/internal/feed"
	"cryptobacktest/types"

	"github.com/jackc/pgx/v5"
)

var bucketToInterval = map[types.Interval]string{
	types.OneMinute:      "1 minute",
	types.FiveMinutes:    "5 minutes",
	types.FifteenMinutes: "15 minutes",
	types.ThirtyMinutes:  "30 minutes",
	types.Hour:           "1 hour",
	types.FourHours:      "4 hours",
	types.Day:            "1 day",
	types.Week:           "1 week",
}

func (db *Database) GetAggregates(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, ErrIntervalNotSupported
	}
	args := aggregatesParams{
		TimeBucket: bucket,
		AssetID:    int32(assetId),
		Starttime:  start,
		Endtime:    end,
	}
	candles, err := db.candles.GetAggregates(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoCandles
		}
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return convertCandles(candles, interval, ticker), nil
}

// Candles makes Database usable as a feed.Source.
func (db *Database) Candles(ctx context.Context, req feed.Request) ([]types.Candle, error) {
	asset, err := db.GetAssetByTicker(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	start, end := req.Range(db.now())
	candles, err := db.GetAggregates(ctx, asset.Id, asset.Ticker, req.Interval, start, end)
	if err != nil {
		return nil, err
	}
	return feed.LastN(candles, req.Limit), nil
}

func convertCandles(candleDAOs []aggregatesRow, interval types.Interval, ticker string) []types.Candle {
	candles := make([]types.Candle, 0, len(candleDAOs))
	for _, dao := range candleDAOs {
		candles = append(candles, types.Candle{
			AssetId:   int(dao.AssetID),
			Ticker:    ticker,
			Open:      dao.Open,
			Close:     dao.Close,
			High:      dao.High,
			Low:       dao.Low,
			Volume:    dao.Volume,
			Interval:  interval,
			Timestamp: dao.Bucket,
		})
	}
	return candles
}
