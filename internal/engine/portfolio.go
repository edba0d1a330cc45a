package engine

import (
	"cryptobacktest/types"

	"github.com/shopspring/decimal"
)

const (
	// quantityScale keeps the base amount precise enough that quantity*price recovers the
	// invested cash to well below cashScale.
	quantityScale = 28
	// cashScale is the quote currency precision cash settles to on a sale.
	cashScale = 12
)

// PortfolioState is the long-only, single asset account of a run. Transitions return
// a new value and leave the receiver untouched.
type PortfolioState struct {
	Cash       decimal.Decimal
	Position   decimal.Decimal
	EntryPrice decimal.NullDecimal
	Phase      types.Phase
	HasPhase   bool
}

func NewPortfolioState(initialCash decimal.Decimal) PortfolioState {
	return PortfolioState{
		Cash:     initialCash,
		Position: decimal.Zero,
		Phase:    types.Bearish,
	}
}

func (s PortfolioState) Long() bool {
	return s.Position.IsPositive()
}

// Equity values the position at price.
func (s PortfolioState) Equity(price decimal.Decimal) decimal.Decimal {
	return s.Cash.Add(s.Position.Mul(price))
}

func (s PortfolioState) View() types.PositionView {
	return types.PositionView{
		Long:       s.Long(),
		EntryPrice: s.EntryPrice,
		Phase:      s.Phase,
		HasPhase:   s.HasPhase,
	}
}

func (s PortfolioState) WithPhase(phase types.Phase) PortfolioState {
	s.Phase = phase
	s.HasPhase = true
	return s
}

// Buy invests fraction of the available cash at price. Repeated buys average the entry price.
func (s PortfolioState) Buy(price, fraction decimal.Decimal) (PortfolioState, decimal.Decimal, error) {
	if !s.Cash.IsPositive() {
		return s, decimal.Zero, &TransitionError{Signal: types.Buy, Reason: "no cash available"}
	}
	if !price.IsPositive() {
		return s, decimal.Zero, &TransitionError{Signal: types.Buy, Reason: "price must be positive"}
	}

	invest := s.Cash.Mul(fraction)
	quantity := invest.DivRound(price, quantityScale)

	next := s
	next.Cash = s.Cash.Sub(invest)
	next.Position = s.Position.Add(quantity)
	next.EntryPrice = decimal.NewNullDecimal(weightedAvg(s.EntryPrice.Decimal, s.Position, price, quantity))
	return next, quantity, nil
}

// Sell liquidates the whole position at price.
func (s PortfolioState) Sell(price decimal.Decimal) (PortfolioState, decimal.Decimal, error) {
	if !s.Position.IsPositive() {
		return s, decimal.Zero, &TransitionError{Signal: types.Sell, Reason: "no open position"}
	}

	quantity := s.Position
	next := s
	next.Cash = s.Cash.Add(quantity.Mul(price)).Round(cashScale)
	next.Position = decimal.Zero
	next.EntryPrice = decimal.NullDecimal{}
	return next, quantity, nil
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
