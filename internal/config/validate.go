package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	StrategyDipTop             = "dip_top"
	StrategyMCA                = "mca"
	StrategyMCAGuarded         = "mca_guarded"
	StrategyMCADynamicStopLoss = "mca_dynamic_stoploss"

	DipTopMean   = "mean"
	DipTopMinMax = "min-max"

	ExchangeBinance = "binance"
)

// ConfigError names the offending parameter. errors.Is(err, ErrInvalidConfig) holds for it.
type ConfigError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func invalid(param string, value any, reason string) error {
	return &ConfigError{Param: param, Value: value, Reason: reason}
}

// Validate returns the first problem found.
func (c Config) Validate() error {
	if err := c.Trading.Validate(); err != nil {
		return err
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.Volatility.ATR.Periods < 1 {
		return invalid("volatility.atr.periods", c.Volatility.ATR.Periods, "must be at least 1")
	}
	switch c.Data.Source {
	case "csv", "sqlite":
		if c.Data.Path == "" {
			return invalid("data.path", c.Data.Path, "required for "+c.Data.Source)
		}
	case "postgres":
		if c.Data.DSN == "" {
			return invalid("data.dsn", c.Data.DSN, "required for postgres")
		}
	case "binance":
		if c.Exchange != ExchangeBinance {
			return invalid("exchange", c.Exchange, "only binance is supported")
		}
		if c.Trading.DurationLimit < 1 {
			return invalid("trading.duration_limit", c.Trading.DurationLimit, "must be at least 1")
		}
	default:
		return invalid("data.source", c.Data.Source, "expected csv, sqlite, postgres or binance")
	}
	if _, _, err := c.Data.Range(); err != nil {
		return err
	}
	if c.Sweep.Workers < 0 {
		return invalid("sweep.workers", c.Sweep.Workers, "must not be negative")
	}
	return nil
}

func (t Trading) Validate() error {
	if t.InitialBalance <= 0 {
		return invalid("trading.initial_balance", t.InitialBalance, "must be positive")
	}
	if t.TradeFraction <= 0 || t.TradeFraction > 1 {
		return invalid("trading.trade_fraction", t.TradeFraction, "must be in (0, 1]")
	}
	return nil
}

// Validate checks only the block selected by Name.
func (s Strategy) Validate() error {
	switch s.Name {
	case StrategyDipTop:
		return s.DipTop.Validate()
	case StrategyMCA:
		return s.MCA.Validate()
	case StrategyMCAGuarded:
		return s.MCAGuarded.Validate()
	case StrategyMCADynamicStopLoss:
		return s.MCADynamicStopLoss.Validate()
	default:
		return invalid("strategy.name", s.Name, "unknown strategy")
	}
}

func (d DipTop) Validate() error {
	if d.Window < 1 {
		return invalid("strategy.dip_top.window", d.Window, "must be at least 1")
	}
	if d.DipPct < 0 || d.DipPct >= 100 {
		return invalid("strategy.dip_top.dip_pct", d.DipPct, "must be in [0, 100)")
	}
	if d.TopPct < 0 {
		return invalid("strategy.dip_top.top_pct", d.TopPct, "must not be negative")
	}
	if d.StratType != DipTopMean && d.StratType != DipTopMinMax {
		return invalid("strategy.dip_top.strat_type", d.StratType, "expected mean or min-max")
	}
	return nil
}

func validateWindows(prefix string, short, long int) error {
	if short < 1 {
		return invalid(prefix+".short_window", short, "must be at least 1")
	}
	if long < 1 {
		return invalid(prefix+".long_window", long, "must be at least 1")
	}
	if short >= long {
		return invalid(prefix+".short_window", short, fmt.Sprintf("must be less than long_window (%d)", long))
	}
	return nil
}

func (m MCA) Validate() error {
	return validateWindows("strategy.mca", m.ShortWindow, m.LongWindow)
}

func (m MCAGuarded) Validate() error {
	if err := validateWindows("strategy.mca_guarded", m.ShortWindow, m.LongWindow); err != nil {
		return err
	}
	if m.TrendFilterWindow < 1 {
		return invalid("strategy.mca_guarded.trend_filter_window", m.TrendFilterWindow, "must be at least 1")
	}
	if m.StopLossPct <= 0 || m.StopLossPct >= 1 {
		return invalid("strategy.mca_guarded.stop_loss_pct", m.StopLossPct, "must be in (0, 1)")
	}
	if m.TakeProfitPct <= 0 || m.TakeProfitPct >= 1 {
		return invalid("strategy.mca_guarded.take_profit_pct", m.TakeProfitPct, "must be in (0, 1)")
	}
	return nil
}

func (m MCADynamicStopLoss) Validate() error {
	if err := validateWindows("strategy.mca_dynamic_stoploss", m.ShortWindow, m.LongWindow); err != nil {
		return err
	}
	if m.MaxGuardWindow < 1 {
		return invalid("strategy.mca_dynamic_stoploss.max_guard_window", m.MaxGuardWindow, "must be at least 1")
	}
	if m.Delta <= 0 || m.Delta > 1 {
		return invalid("strategy.mca_dynamic_stoploss.delta", m.Delta, "must be in (0, 1]")
	}
	return nil
}
