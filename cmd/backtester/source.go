package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/feed"
	"cryptobacktest/internal/repository"
	"cryptobacktest/types"

	"go.uber.org/zap"
)

// openSource returns the configured bar source and a func releasing it.
func openSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (feed.Source, func(), error) {
	noop := func() {}
	switch cfg.Data.Source {
	case "csv":
		return feed.NewCSVSource(cfg.Data.Path), noop, nil
	case "sqlite":
		store, err := repository.OpenSQLite(cfg.Data.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := repository.NewDatabase(ctx, cfg.Data.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		return db, db.Close, nil
	case "binance":
		client := &http.Client{Timeout: 30 * time.Second}
		return feed.NewBinanceSource(cfg.Data.BaseURL, client, logger.Named("binance")), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

func cacheBars(ctx context.Context, path string, bars []types.Candle) error {
	store, err := repository.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveCandles(ctx, bars)
}
