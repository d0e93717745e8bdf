package indicator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
)

// EMA indicator implements Exponential Moving Average calculation.
type EMA struct {
	period    int
	smoothing types.Smoothing
}

// NewEMA creates an EMA with span period. An empty smoothing selects SmoothingRecursive.
func NewEMA(period int, smoothing types.Smoothing) (*EMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if smoothing == "" {
		smoothing = types.SmoothingRecursive
	}

	if !smoothing.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown smoothing %q", smoothing)
	}

	return &EMA{
		period:    period,
		smoothing: smoothing,
	}, nil
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// WarmUp implements Indicator. The first period-1 values are undefined.
func (e *EMA) WarmUp() int {
	return e.period
}

// Period returns the configured span.
func (e *EMA) Period() int {
	return e.period
}

// Smoothing returns the configured smoothing mode.
func (e *EMA) Smoothing() types.Smoothing {
	return e.smoothing
}

// Alpha returns the smoothing factor 2/(period+1).
func (e *EMA) Alpha() float64 {
	return 2.0 / float64(e.period+1)
}

// Series calculates the EMA for every price.
func (e *EMA) Series(prices []float64) ([]optional.Option[float64], error) {
	if len(prices) < e.period {
		return nil, errors.NewInsufficientDataErrorf(e.period, len(prices), "",
			"EMA(%d) needs at least %d prices, got %d", e.period, e.period, len(prices))
	}

	var raw []float64

	switch e.smoothing {
	case types.SmoothingRecursive:
		raw = calculateRecursiveEMA(prices, e.Alpha())
	case types.SmoothingAdjusted:
		raw = calculateAdjustedEMA(prices, e.Alpha())
	case types.SmoothingSMASeeded:
		// talib fills the warm-up with zeros, which are masked below
		raw = talib.Ema(prices, e.period)
	default:
		return nil, fmt.Errorf("unsupported smoothing %q", e.smoothing)
	}

	out := make([]optional.Option[float64], len(prices))
	for i := range prices {
		if i < e.period-1 {
			out[i] = optional.None[float64]()

			continue
		}

		out[i] = optional.Some(raw[i])
	}

	return out, nil
}

// calculateRecursiveEMA seeds with the first price and applies
// EMA = EMA_prev + alpha * (price - EMA_prev) for every later price.
// A flat series therefore stays exactly flat.
func calculateRecursiveEMA(prices []float64, alpha float64) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}

	ema := prices[0]
	out[0] = ema

	for i := 1; i < len(prices); i++ {
		ema += alpha * (prices[i] - ema)
		out[i] = ema
	}

	return out
}

// calculateAdjustedEMA computes sum((1-alpha)^k * p[t-k]) / sum((1-alpha)^k)
// with both sums carried forward, so each step is O(1).
func calculateAdjustedEMA(prices []float64, alpha float64) []float64 {
	out := make([]float64, len(prices))
	decay := 1 - alpha
	numerator := 0.0
	denominator := 0.0

	for i, price := range prices {
		numerator = price + decay*numerator
		denominator = 1 + decay*denominator
		out[i] = numerator / denominator
	}

	return out
}
