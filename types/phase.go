package types

// Phase is the bullish/bearish regime tracked by phase based strategies.
type Phase uint8

const (
	Bearish Phase = 0
	Bullish Phase = 1
)

func (p Phase) String() string {
	if p == Bullish {
		return "BULLISH"
	}
	return "BEARISH"
}
