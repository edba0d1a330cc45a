package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BACKTEST"

type Config struct {
	Log        Log        `mapstructure:"log"`
	Exchange   string     `mapstructure:"exchange"`
	Data       Data       `mapstructure:"data"`
	Trading    Trading    `mapstructure:"trading"`
	Strategy   Strategy   `mapstructure:"strategy"`
	Volatility Volatility `mapstructure:"volatility"`
	Report     Report     `mapstructure:"report"`
	Sweep      Sweep      `mapstructure:"sweep"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Data selects where bars are read from. Only the fields of the chosen source are used.
type Data struct {
	Source  string `mapstructure:"source"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	BaseURL string `mapstructure:"base_url"`
	Start   string `mapstructure:"start"`
	End     string `mapstructure:"end"`
}

// Range parses data.start and data.end. Each accepts a date (2006-01-02) or RFC3339 and may be empty.
func (d Data) Range() (time.Time, time.Time, error) {
	start, err := parseDate(d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("data.start", d.Start, err.Error())
	}
	end, err := parseDate(d.End)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("data.end", d.End, err.Error())
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, invalid("data.start", d.Start, "must be before data.end")
	}
	return start, end, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), nil
}

type Trading struct {
	Symbol         string  `mapstructure:"symbol"`
	Timeframe      string  `mapstructure:"timeframe"`
	DurationLimit  int     `mapstructure:"duration_limit"`
	InitialBalance float64 `mapstructure:"initial_balance"`
	TradeFraction  float64 `mapstructure:"trade_fraction"`
}

type Strategy struct {
	Name               string             `mapstructure:"name"`
	DipTop             DipTop             `mapstructure:"dip_top"`
	MCA                MCA                `mapstructure:"mca"`
	MCAGuarded         MCAGuarded         `mapstructure:"mca_guarded"`
	MCADynamicStopLoss MCADynamicStopLoss `mapstructure:"mca_dynamic_stoploss"`
}

type DipTop struct {
	Window    int     `mapstructure:"window"`
	DipPct    float64 `mapstructure:"dip_pct"`
	TopPct    float64 `mapstructure:"top_pct"`
	StratType string  `mapstructure:"strat_type"`
}

type MCA struct {
	ShortWindow int `mapstructure:"short_window"`
	LongWindow  int `mapstructure:"long_window"`
}

type MCAGuarded struct {
	ShortWindow       int     `mapstructure:"short_window"`
	LongWindow        int     `mapstructure:"long_window"`
	TrendFilterWindow int     `mapstructure:"trend_filter_window"`
	StopLossPct       float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct     float64 `mapstructure:"take_profit_pct"`
}

type MCADynamicStopLoss struct {
	ShortWindow    int     `mapstructure:"short_window"`
	LongWindow     int     `mapstructure:"long_window"`
	MaxGuardWindow int     `mapstructure:"max_guard_window"`
	Delta          float64 `mapstructure:"delta"`
}

type Volatility struct {
	ATR ATR `mapstructure:"atr"`
}

type ATR struct {
	Periods int `mapstructure:"periods"`
}

type Report struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	TradesFile   string  `mapstructure:"trades_file"`
	EquityFile   string  `mapstructure:"equity_file"`
}

// Sweep lists the crossover windows tried by the parameter sweep.
type Sweep struct {
	ShortWindows []int `mapstructure:"short_windows"`
	LongWindows  []int `mapstructure:"long_windows"`
	Workers      int   `mapstructure:"workers"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("exchange", ExchangeBinance)
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.path", "")
	v.SetDefault("data.dsn", "")
	v.SetDefault("data.base_url", "https://api.binance.com")
	v.SetDefault("data.start", "")
	v.SetDefault("data.end", "")
	v.SetDefault("trading.symbol", "BTC/USDT")
	v.SetDefault("trading.timeframe", "1h")
	v.SetDefault("trading.duration_limit", 1000)
	v.SetDefault("trading.initial_balance", 1000)
	v.SetDefault("trading.trade_fraction", 1)
	v.SetDefault("strategy.name", StrategyDipTop)
	v.SetDefault("strategy.dip_top.window", 20)
	v.SetDefault("strategy.dip_top.dip_pct", 5)
	v.SetDefault("strategy.dip_top.top_pct", 5)
	v.SetDefault("strategy.dip_top.strat_type", DipTopMean)
	v.SetDefault("strategy.mca.short_window", 10)
	v.SetDefault("strategy.mca.long_window", 50)
	v.SetDefault("strategy.mca_guarded.short_window", 10)
	v.SetDefault("strategy.mca_guarded.long_window", 50)
	v.SetDefault("strategy.mca_guarded.trend_filter_window", 200)
	v.SetDefault("strategy.mca_guarded.stop_loss_pct", 0.05)
	v.SetDefault("strategy.mca_guarded.take_profit_pct", 0.1)
	v.SetDefault("strategy.mca_dynamic_stoploss.short_window", 10)
	v.SetDefault("strategy.mca_dynamic_stoploss.long_window", 50)
	v.SetDefault("strategy.mca_dynamic_stoploss.max_guard_window", 5)
	v.SetDefault("strategy.mca_dynamic_stoploss.delta", 0.98)
	v.SetDefault("volatility.atr.periods", 14)
	v.SetDefault("report.risk_free_rate", 0)
	v.SetDefault("report.trades_file", "")
	v.SetDefault("report.equity_file", "")
	v.SetDefault("sweep.short_windows", []int{})
	v.SetDefault("sweep.long_windows", []int{})
	v.SetDefault("sweep.workers", 4)
	v.SetDefault("metrics.addr", "")
}

// Load reads the YAML file at path (optional) and applies BACKTEST_ prefixed env overrides.
// The result is not validated; call Validate before use.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
