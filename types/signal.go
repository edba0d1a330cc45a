package types

// Signal is the discrete output of a strategy for one step.
type Signal int8

const (
	Sell Signal = -1
	Hold Signal = 0
	Buy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is what a strategy returns for one step. Phase is only meaningful when HasPhase is set.
type Decision struct {
	Signal   Signal
	Phase    Phase
	HasPhase bool
	Reason   string
}

func HoldDecision() Decision {
	return Decision{Signal: Hold}
}
