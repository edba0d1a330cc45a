package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/engine"
	"cryptobacktest/internal/feed"
	"cryptobacktest/internal/logging"
	"cryptobacktest/internal/metrics"
	"cryptobacktest/internal/sweep"
	"cryptobacktest/strategies"
	"cryptobacktest/types"

	"go.uber.org/zap"
)

type options struct {
	configPath string
	sweep      bool
	cachePath  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to the YAML config (default ./config.yaml)")
	flag.BoolVar(&opts.sweep, "sweep", false, "run the crossover window sweep instead of a single backtest")
	flag.StringVar(&opts.cachePath, "cache", "", "sqlite file the loaded bars are saved to")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, opts options, logger *zap.Logger) error {
	interval, err := types.ParseInterval(cfg.Trading.Timeframe)
	if err != nil {
		return err
	}
	start, end, err := cfg.Data.Range()
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	chart, err := feed.Load(ctx, src, feed.Request{
		Symbol:   cfg.Trading.Symbol,
		Interval: interval,
		Start:    start,
		End:      end,
		Limit:    cfg.Trading.DurationLimit,
	})
	if err != nil {
		return err
	}
	logger.Info("bars loaded",
		zap.String("symbol", chart.Ticker),
		zap.String("interval", string(chart.Interval)),
		zap.Int("count", len(chart.Candles)),
		zap.Time("start", chart.Start),
		zap.Time("end", chart.End))

	if opts.cachePath != "" {
		if err := cacheBars(ctx, opts.cachePath, chart.Candles); err != nil {
			logger.Warn("caching bars failed", zap.String("path", opts.cachePath), zap.Error(err))
		}
	}

	m := metrics.NewMetrics()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if opts.sweep {
		return runSweep(ctx, cfg, chart.Candles, m, logger)
	}
	return runSingle(cfg, chart.Candles, m, logger)
}

func runSingle(cfg config.Config, bars []types.Candle, m *metrics.Metrics, logger *zap.Logger) error {
	strat, err := strategies.New(cfg.Strategy)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg.Trading, strat, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := eng.Run(bars)
	m.ObserveRun(strat.Name(), time.Since(started), result, err)
	if err != nil {
		return err
	}

	engine.GenerateReport(result, bars, engine.NewReportingConfig(cfg)).Print(os.Stdout)
	return writeLedgers(cfg.Report, result)
}

func runSweep(ctx context.Context, cfg config.Config, bars []types.Candle, m *metrics.Metrics, logger *zap.Logger) error {
	jobs, err := sweep.Grid(cfg.Strategy, cfg.Sweep.ShortWindows, cfg.Sweep.LongWindows)
	if err != nil {
		return err
	}
	runner := sweep.NewRunner(cfg.Trading, cfg.Sweep.Workers,
		sweep.WithLogger(logger),
		sweep.WithMetrics(m),
		sweep.WithProgress(os.Stderr))

	outcomes, err := runner.Run(ctx, bars, jobs)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHORT\tLONG\tTRADES\tRETURN %\tERROR")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%d\t%d\t-\t-\t%v\n", o.Job.ShortWindow, o.Job.LongWindow, o.Err)
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t\n", o.Job.ShortWindow, o.Job.LongWindow, len(o.Result.Trades), o.Result.ReturnPct.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best := sweep.Best(outcomes)
	if best < 0 {
		return errors.New("every sweep job failed")
	}
	fmt.Printf("\nBest: short=%d long=%d\n", outcomes[best].Job.ShortWindow, outcomes[best].Job.LongWindow)
	engine.GenerateReport(outcomes[best].Result, bars, engine.NewReportingConfig(cfg)).Print(os.Stdout)
	return writeLedgers(cfg.Report, outcomes[best].Result)
}

func writeLedgers(cfg config.Report, result *engine.Result) error {
	if cfg.TradesFile != "" {
		if err := engine.WriteTradesCSVFile(cfg.TradesFile, result.Trades); err != nil {
			return err
		}
	}
	if cfg.EquityFile != "" {
		if err := engine.WriteEquityCSVFile(cfg.EquityFile, result.Equity); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
