package types

// Signal is the directional call derived from price versus indicator.
// Its numeric value is the exposure it implies: +1 long, -1 short.
type Signal int8

const (
	// SignalShort is emitted when the price closes below the indicator.
	SignalShort Signal = -1
	// SignalLong is emitted when the price closes at or above the indicator.
	SignalLong Signal = 1
)

// Float64 returns the exposure multiplier of the signal.
func (s Signal) Float64() float64 {
	return float64(s)
}

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	default:
		return "unknown"
	}
}
