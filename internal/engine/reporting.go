package engine

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"cryptobacktest/internal/config"
	"cryptobacktest/internal/indicator"
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

type Report struct {
	// Meta / period info
	Strategy       string
	StartDate      time.Time
	EndDate        time.Time
	TotalPeriod    time.Duration
	TotalTrades    int
	RoundTrips     int
	IgnoredSignals int

	// Absolute performance
	FinalEquity          decimal.Decimal
	ReturnPct            decimal.Decimal
	NetProfit            decimal.Decimal
	NetAvgProfitPerTrade decimal.Decimal
	CAGR                 decimal.Decimal

	// Trade-level distribution metrics
	WinRate      decimal.Decimal
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	ProfitFactor decimal.Decimal

	// Drawdown & loss streak metrics
	MaxDrawdown          decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal
	MaxDrawdownDays      time.Duration
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	SharpeRatio decimal.Decimal

	// Volatility of the replayed series
	ATRPeriods int
	LastATR    decimal.NullDecimal
	RangeHigh  decimal.Decimal
	RangeLow   decimal.Decimal
}

type ReportingConfig struct {
	sharpeRiskFreeRate decimal.Decimal
	atrPeriods         int
}

func NewReportingConfig(cfg config.Config) ReportingConfig {
	return ReportingConfig{
		sharpeRiskFreeRate: decimal.NewFromFloat(cfg.Report.RiskFreeRate),
		atrPeriods:         cfg.Volatility.ATR.Periods,
	}
}

// roundTrip is the buys of one position followed by the sell that closed it.
// exit is nil while the position is still open.
type roundTrip struct {
	entries []types.TradeRecord
	exit    *types.TradeRecord
}

func (rt roundTrip) closed() bool {
	return rt.exit != nil && len(rt.entries) > 0
}

func (rt roundTrip) pnl() decimal.Decimal {
	pnl := decimal.Zero
	for _, entry := range rt.entries {
		pnl = pnl.Sub(entry.Quantity.Mul(entry.Price))
	}
	if rt.exit != nil {
		pnl = pnl.Add(rt.exit.Quantity.Mul(rt.exit.Price))
	}
	return pnl
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "===== Backtest Report =====")
	fmt.Fprintf(w, "Strategy:              %s\n", r.Strategy)
	fmt.Fprintf(w, "Start Date:            %s\n", r.StartDate.Format(time.DateTime))
	fmt.Fprintf(w, "End Date:              %s\n", r.EndDate.Format(time.DateTime))
	fmt.Fprintf(w, "Total Period:          %d days\n", r.TotalPeriod/(24*time.Hour))
	fmt.Fprintf(w, "Total Trades:          %d\n", r.TotalTrades)
	fmt.Fprintf(w, "Round Trips:           %d\n", r.RoundTrips)
	fmt.Fprintf(w, "Ignored Signals:       %d\n", r.IgnoredSignals)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Final Equity:          %s\n", r.FinalEquity.StringFixed(2))
	fmt.Fprintf(w, "Return %%:              %s\n", r.ReturnPct.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s\n", r.NetProfit.StringFixed(2))
	fmt.Fprintf(w, "Avg Profit/Trade:      %s\n", r.NetAvgProfitPerTrade.StringFixed(2))
	fmt.Fprintf(w, "CAGR:                  %s\n", r.CAGR.StringFixed(4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Win Rate %%:            %s\n", r.WinRate.StringFixed(2))
	fmt.Fprintf(w, "Avg Win:               %s\n", r.AvgWin.StringFixed(2))
	fmt.Fprintf(w, "Avg Loss:              %s\n", r.AvgLoss.StringFixed(2))
	fmt.Fprintf(w, "Profit Factor:         %s\n", r.ProfitFactor.StringFixed(2))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", r.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", r.MaxDrawdownPercent.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown Duration: %v\n", r.MaxDrawdownDays)
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", r.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", r.SharpeRatio.StringFixed(4))

	fmt.Fprintln(w, "\n-- Volatility --")
	if r.LastATR.Valid {
		fmt.Fprintf(w, "ATR(%d):               %s\n", r.ATRPeriods, r.LastATR.Decimal.StringFixed(4))
	} else {
		fmt.Fprintf(w, "ATR(%d):               n/a\n", r.ATRPeriods)
	}
	fmt.Fprintf(w, "Range High/Low:        %s / %s\n", r.RangeHigh.StringFixed(2), r.RangeLow.StringFixed(2))

	fmt.Fprintln(w, "===========================")
}

// GenerateReport derives the summary metrics from a finished run. bars is the series the run
// was made on and is only used for the volatility section.
func GenerateReport(result *Result, bars []types.Candle, cfg ReportingConfig) *Report {
	trips := tradesToRoundTrips(result.Trades)

	report := &Report{
		Strategy:       result.Strategy,
		TotalTrades:    len(result.Trades),
		IgnoredSignals: result.IgnoredSignals,
		FinalEquity:    result.FinalEquity,
		ReturnPct:      result.ReturnPct,
		ATRPeriods:     cfg.atrPeriods,
	}
	if len(result.Equity) > 0 {
		report.StartDate = result.Equity[0].Timestamp
		report.EndDate = result.Equity[len(result.Equity)-1].Timestamp
		report.TotalPeriod = report.EndDate.Sub(report.StartDate).Truncate(time.Hour * 24)
	}
	for _, rt := range trips {
		if rt.closed() {
			report.RoundTrips++
		}
	}

	var wg sync.WaitGroup
	wg.Add(9)
	go func() {
		report.NetProfit = calcNetProfit(trips, &wg)
	}()
	go func() {
		report.NetAvgProfitPerTrade = calcNetAvgProfitPerTrade(trips, &wg)
	}()
	go func() {
		report.AvgWin, report.AvgLoss, report.WinRate, report.ProfitFactor = calcWinLossMetrics(trips, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(result.Equity, &wg)
	}()
	go func() {
		report.MaxDrawdown, report.MaxDrawdownPercent, report.MaxDrawdownDays = calcDrawdownMetrics(result.Equity, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(trips, &wg)
	}()
	go func() {
		report.SharpeRatio = calcSharpeRatio(result.Equity, cfg.sharpeRiskFreeRate, &wg)
	}()
	go func() {
		defer wg.Done()
		if cfg.atrPeriods < 1 {
			return
		}
		report.LastATR, _ = indicator.LastATR(bars, cfg.atrPeriods)
	}()
	go func() {
		defer wg.Done()
		report.RangeHigh, report.RangeLow = indicator.HighLow(bars)
	}()
	wg.Wait()

	return report
}

func calcNetProfit(trips []roundTrip, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	net := decimal.Zero
	for _, rt := range trips {
		// Only realize PnL once the position is closed
		if rt.closed() {
			net = net.Add(rt.pnl())
		}
	}
	return net
}

func calcNetAvgProfitPerTrade(trips []roundTrip, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	net := decimal.Zero
	realized := 0
	for _, rt := range trips {
		if rt.closed() {
			net = net.Add(rt.pnl())
			realized++
		}
	}
	if realized == 0 {
		return decimal.Zero
	}
	return net.Div(decimal.NewFromInt(int64(realized)))
}

// calcWinLossMetrics returns avg win, avg loss (absolute), win rate in percent and profit factor.
func calcWinLossMetrics(trips []roundTrip, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	defer wg.Done()

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // store absolute loss amounts
	winCount := 0
	lossCount := 0
	realized := 0

	for _, rt := range trips {
		if !rt.closed() {
			continue
		}
		realized++
		net := rt.pnl()
		switch {
		case net.IsPositive():
			sumWins = sumWins.Add(net)
			winCount++
		case net.IsNegative():
			sumLosses = sumLosses.Add(net.Abs())
			lossCount++
		}
	}

	avgWin := decimal.Zero
	avgLoss := decimal.Zero
	winRate := decimal.Zero
	profitFactor := decimal.Zero

	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
		profitFactor = sumWins.Div(sumLosses)
	}
	if realized > 0 {
		winRate = decimal.NewFromInt(int64(winCount)).Div(decimal.NewFromInt(int64(realized))).Mul(hundred)
	}

	return avgWin, avgLoss, winRate, profitFactor
}

func calcCAGR(equity []types.EquityPoint, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(equity) < 2 {
		return decimal.Zero
	}

	start := equity[0]
	end := equity[len(equity)-1]

	// If starting value is <= 0, CAGR is not well-defined
	if !start.Equity.IsPositive() {
		return decimal.Zero
	}

	// time difference in years (using 365.25 days to account for leap years)
	duration := end.Timestamp.Sub(start.Timestamp)
	if duration <= 0 {
		return decimal.Zero
	}
	years := duration.Hours() / (24.0 * 365.25)

	ratio := end.Equity.Div(start.Equity)
	if !ratio.IsPositive() {
		return decimal.Zero
	}

	cagrFloat := math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0
	if math.IsInf(cagrFloat, 0) || math.IsNaN(cagrFloat) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(cagrFloat)
}

// calcDrawdownMetrics returns the largest peak-to-trough fall, the same fall as a percent of
// its peak, and the time from that peak to the trough.
func calcDrawdownMetrics(equity []types.EquityPoint, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal, time.Duration) {
	defer wg.Done()

	if len(equity) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	peak := equity[0].Equity
	peakTime := equity[0].Timestamp

	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for _, point := range equity {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
			peakTime = point.Timestamp
		}

		if peak.IsPositive() {
			dd := peak.Sub(point.Equity)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
				maxDDPct = dd.Div(peak).Mul(hundred)
				maxDDDuration = point.Timestamp.Sub(peakTime)
			}
		}
	}

	return maxDD, maxDDPct, maxDDDuration
}

func calcMaxConsecutiveLosses(trips []roundTrip, wg *sync.WaitGroup) int {
	defer wg.Done()

	maxLossStreak := 0
	currentStreak := 0

	// trips are already in exit order
	for _, rt := range trips {
		if !rt.closed() {
			continue
		}
		if rt.pnl().IsNegative() {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}

	return maxLossStreak
}

func calcSharpeRatio(equity []types.EquityPoint, annualRiskFree decimal.Decimal, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	monthlyReturns := getMonthlyReturns(equity)
	if len(monthlyReturns) < 2 {
		// Need at least 2 months to compute stddev
		return decimal.Zero
	}

	// rf_monthly = (1 + rf_annual)^(1/12) - 1
	rfMonthly := math.Pow(1.0+annualRiskFree.InexactFloat64(), 1.0/12.0) - 1.0

	excess := make([]float64, 0, len(monthlyReturns))
	for _, r := range monthlyReturns {
		excess = append(excess, r.InexactFloat64()-rfMonthly)
	}

	var sum float64
	for _, x := range excess {
		sum += x
	}
	meanMonthlyExcess := sum / float64(len(excess))

	// Sample standard deviation of monthly excess returns
	var varianceSum float64
	for _, x := range excess {
		diff := x - meanMonthlyExcess
		varianceSum += diff * diff
	}
	stdMonthly := math.Sqrt(varianceSum / float64(len(excess)-1))
	if stdMonthly == 0 {
		return decimal.Zero
	}

	// Monthly Sharpe, then annualize by sqrt(12)
	return decimal.NewFromFloat(meanMonthlyExcess / stdMonthly * math.Sqrt(12.0))
}

// getMonthlyReturns uses the last equity point of each calendar month. equity must be
// in time order, which Run guarantees.
func getMonthlyReturns(equity []types.EquityPoint) []decimal.Decimal {
	var monthEnds []decimal.Decimal
	var lastYear int
	var lastMonth time.Month

	for i, point := range equity {
		y, m, _ := point.Timestamp.Date()
		if i == 0 || y != lastYear || m != lastMonth {
			monthEnds = append(monthEnds, point.Equity)
			lastYear, lastMonth = y, m
			continue
		}
		monthEnds[len(monthEnds)-1] = point.Equity
	}

	if len(monthEnds) < 2 {
		return nil
	}

	returns := make([]decimal.Decimal, 0, len(monthEnds)-1)
	prev := monthEnds[0]
	for _, curr := range monthEnds[1:] {
		if !prev.IsPositive() {
			prev = curr
			continue
		}
		returns = append(returns, curr.Div(prev).Sub(decimal.NewFromInt(1)))
		prev = curr
	}
	return returns
}

// tradesToRoundTrips groups the ledger into positions: every buy until the next sell
// belongs to the same trip.
func tradesToRoundTrips(trades []types.TradeRecord) []roundTrip {
	var trips []roundTrip
	var current roundTrip

	for i := range trades {
		tr := trades[i]
		switch tr.Side {
		case types.SideTypeBuy:
			current.entries = append(current.entries, tr)
		case types.SideTypeSell:
			current.exit = &tr
			trips = append(trips, current)
			current = roundTrip{}
		}
	}
	if len(current.entries) > 0 {
		trips = append(trips, current)
	}
	return trips
}
