package engine

import (
	"errors"

	"cryptobacktest/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Run replays bars through the strategy. The first Warmup() bars only feed the first window,
// so the ledger starts at index Warmup().
func (e *Engine) Run(bars []types.Candle) (*Result, error) {
	warmup := e.strategy.Warmup()
	if len(bars) < warmup+1 {
		return nil, &InsufficientDataError{Have: len(bars), Need: warmup + 1}
	}

	state := NewPortfolioState(e.initialBalance)
	result := &Result{
		Strategy: e.strategy.Name(),
		Initial:  e.initialBalance,
		Equity:   make([]types.EquityPoint, 0, len(bars)-warmup),
	}

	for i := warmup; i < len(bars); i++ {
		bar := bars[i]
		// Capacity is capped so a strategy appending to its window cannot touch later bars.
		window := bars[i-warmup : i+1 : i+1]

		decision := e.strategy.Evaluate(window, state.View())
		if decision.HasPhase {
			state = state.WithPhase(decision.Phase)
		}

		next, trade, err := e.apply(state, decision, bar)
		switch {
		case errors.Is(err, ErrInvalidTransition):
			result.IgnoredSignals++
			e.logger.Debug("signal ignored",
				zap.Time("timestamp", bar.Timestamp),
				zap.Stringer("signal", decision.Signal),
				zap.Error(err))
		case err != nil:
			return nil, err
		default:
			state = next
			if trade != nil {
				result.Trades = append(result.Trades, *trade)
				e.logger.Debug("trade executed",
					zap.Time("timestamp", trade.Timestamp),
					zap.String("side", string(trade.Side)),
					zap.Stringer("price", trade.Price),
					zap.Stringer("quantity", trade.Quantity),
					zap.String("reason", trade.Reason))
			}
		}

		result.Equity = append(result.Equity, types.EquityPoint{
			Timestamp: bar.Timestamp,
			Close:     bar.Close,
			Cash:      state.Cash,
			Position:  state.Position,
			Equity:    state.Equity(bar.Close),
			Phase:     state.Phase,
			HasPhase:  state.HasPhase,
		})
	}

	if len(result.Equity) == 0 {
		return nil, ErrEmptyRun
	}

	result.Final = state
	result.FinalEquity = result.Equity[len(result.Equity)-1].Equity
	result.ReturnPct = result.FinalEquity.Sub(e.initialBalance).Div(e.initialBalance).Mul(hundred)

	e.logger.Info("backtest finished",
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(result.Trades)),
		zap.Int("ignored_signals", result.IgnoredSignals),
		zap.Stringer("final_equity", result.FinalEquity),
		zap.Stringer("return_pct", result.ReturnPct.Round(4)))
	return result, nil
}

func (e *Engine) apply(state PortfolioState, decision types.Decision, bar types.Candle) (PortfolioState, *types.TradeRecord, error) {
	var (
		next     PortfolioState
		quantity decimal.Decimal
		side     types.Side
		err      error
	)
	switch decision.Signal {
	case types.Buy:
		next, quantity, err = state.Buy(bar.Close, e.tradeFraction)
		side = types.SideTypeBuy
	case types.Sell:
		next, quantity, err = state.Sell(bar.Close)
		side = types.SideTypeSell
	default:
		return state, nil, nil
	}
	if err != nil {
		return state, nil, err
	}
	return next, &types.TradeRecord{
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
		Side:      side,
		Quantity:  quantity,
		CashAfter: next.Cash,
		Reason:    decision.Reason,
	}, nil
}
