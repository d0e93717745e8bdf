package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/types"
)

// Indicator defines a causal transform from a price column to an indicator column.
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// WarmUp returns how many prices are needed before the first defined value
	WarmUp() int
	// Series returns one value per price. Values before the warm-up are None.
	// Value i only depends on prices[0..i].
	Series(prices []float64) ([]optional.Option[float64], error)
}
