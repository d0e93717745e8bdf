package types

type IndicatorType string

const (
	IndicatorTypeEMA IndicatorType = "ema"
)

// Smoothing selects how an exponential moving average is seeded and weighted.
type Smoothing string

const (
	// SmoothingRecursive seeds with the first price and applies ema = alpha*price + (1-alpha)*ema.
	SmoothingRecursive Smoothing = "recursive"
	// SmoothingAdjusted divides by the decaying sum of weights, correcting the start-up bias.
	SmoothingAdjusted Smoothing = "adjusted"
	// SmoothingSMASeeded seeds with the simple average of the first period prices (TA-Lib convention).
	SmoothingSMASeeded Smoothing = "sma-seeded"
)

// AllSmoothings lists every supported smoothing mode.
var AllSmoothings = []any{SmoothingRecursive, SmoothingAdjusted, SmoothingSMASeeded}

// Valid reports whether s is a known smoothing mode.
func (s Smoothing) Valid() bool {
	switch s {
	case SmoothingRecursive, SmoothingAdjusted, SmoothingSMASeeded:
		return true
	default:
		return false
	}
}
