// Package sweep replays one bar series through a grid of crossover windows in parallel.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/engine"
	"cryptobacktest/internal/metrics"
	"cryptobacktest/strategies"
	"cryptobacktest/types"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotSweepable = errors.New("strategy has no crossover windows to sweep")
	ErrEmptyGrid    = errors.New("sweep grid has no short < long pair")
)

type Job struct {
	ShortWindow int
	LongWindow  int
	Strategy    config.Strategy
}

// Outcome is the result of one job. Err holds per-run failures such as insufficient data,
// which do not abort the sweep.
type Outcome struct {
	Job    Job
	Result *engine.Result
	Err    error
}

// Grid builds one job per (short, long) pair with short < long, in input order.
func Grid(base config.Strategy, shorts, longs []int) ([]Job, error) {
	var jobs []Job
	for _, s := range shorts {
		for _, l := range longs {
			if s >= l {
				continue
			}
			strat := base
			switch base.Name {
			case config.StrategyMCA:
				strat.MCA.ShortWindow, strat.MCA.LongWindow = s, l
			case config.StrategyMCAGuarded:
				strat.MCAGuarded.ShortWindow, strat.MCAGuarded.LongWindow = s, l
			case config.StrategyMCADynamicStopLoss:
				strat.MCADynamicStopLoss.ShortWindow, strat.MCADynamicStopLoss.LongWindow = s, l
			default:
				return nil, fmt.Errorf("%s: %w", base.Name, ErrNotSweepable)
			}
			jobs = append(jobs, Job{ShortWindow: s, LongWindow: l, Strategy: strat})
		}
	}
	if len(jobs) == 0 {
		return nil, ErrEmptyGrid
	}
	return jobs, nil
}

type Runner struct {
	trading  config.Trading
	workers  int
	logger   *zap.Logger
	metrics  *metrics.Metrics
	progress io.Writer
}

type Option func(*Runner)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithProgress draws a progress bar on w. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(r *Runner) {
		r.progress = w
	}
}

func NewRunner(trading config.Trading, workers int, opts ...Option) *Runner {
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		trading: trading,
		workers: workers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job against bars. Outcomes are returned in job order.
// Cancelling ctx stops scheduling new jobs; a run already started finishes.
func (r *Runner) Run(ctx context.Context, bars []types.Candle, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))
	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = initProgressBar(len(jobs), r.progress)
		defer bar.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, job := range jobs {
		i, job := i, job
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.runJob(job, bars)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Runner) runJob(job Job, bars []types.Candle) Outcome {
	out := Outcome{Job: job}
	logger := r.logger.With(zap.Int("short_window", job.ShortWindow), zap.Int("long_window", job.LongWindow))

	strat, err := strategies.New(job.Strategy)
	if err != nil {
		out.Err = err
		r.metrics.ObserveRun(job.Strategy.Name, 0, nil, err)
		logger.Warn("sweep job rejected", zap.Error(err))
		return out
	}
	eng, err := engine.New(r.trading, strat, engine.WithLogger(logger))
	if err != nil {
		out.Err = err
		r.metrics.ObserveRun(strat.Name(), 0, nil, err)
		logger.Warn("sweep job rejected", zap.Error(err))
		return out
	}

	started := time.Now()
	out.Result, out.Err = eng.Run(bars)
	r.metrics.ObserveRun(strat.Name(), time.Since(started), out.Result, out.Err)
	if out.Err != nil {
		logger.Warn("sweep job failed", zap.Error(out.Err))
	}
	return out
}

// Best returns the index of the successful outcome with the highest return, or -1.
// Ties keep the earlier job.
func Best(outcomes []Outcome) int {
	best := -1
	for i, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		if best == -1 || o.Result.ReturnPct.GreaterThan(outcomes[best].Result.ReturnPct) {
			best = i
		}
	}
	return best
}

func initProgressBar(maxTicks int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Sweeping parameters..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
