package engine

import (
	"fmt"

	"cryptobacktest/internal/config"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Strategy turns a trailing window of bars into a decision for the last bar of the window.
// The window always holds Warmup()+1 bars and never extends past the current step.
type Strategy interface {
	Name() string
	Warmup() int
	Evaluate(window []types.Candle, pos types.PositionView) types.Decision
}

type Engine struct {
	strategy       Strategy
	initialBalance decimal.Decimal
	tradeFraction  decimal.Decimal
	logger         *zap.Logger
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(cfg config.Trading, strat Strategy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, ErrNoStrategy
	}
	if strat.Warmup() < 0 {
		return nil, &config.ConfigError{Param: "strategy", Value: strat.Name(), Reason: fmt.Sprintf("negative warmup %d", strat.Warmup())}
	}

	e := &Engine{
		strategy:       strat,
		initialBalance: decimal.NewFromFloat(cfg.InitialBalance),
		tradeFraction:  decimal.NewFromFloat(cfg.TradeFraction),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("strategy", strat.Name()))
	return e, nil
}

func (e *Engine) InitialBalance() decimal.Decimal {
	return e.initialBalance
}
