package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/shopspring/decimal"
)

// Params are the per-run engine inputs besides the price series.
type Params struct {
	// EMAPeriod is the span W of the moving average.
	EMAPeriod int
	// InitialInvestment is the amount the equity curve starts from.
	InitialInvestment float64
	// Smoothing selects the moving average flavour. Empty means recursive.
	Smoothing types.Smoothing
}

// Result holds every series derived from one run. Nothing in it is mutated after Run returns.
type Result struct {
	RunID  string
	Symbol string
	Params Params
	Times  []time.Time
	Prices []float64
	// Indicator is None for the first EMAPeriod-1 points.
	Indicator []optional.Option[float64]
	Signal    []optional.Option[types.Signal]
	Position  []optional.Option[types.Signal]
	Returns   types.ReturnSeries
	// Equity is InitialInvestment * exp(running sum of strategy returns).
	Equity []float64
	// BuyAndHoldEquity is the same curve driven by the benchmark returns.
	BuyAndHoldEquity []float64
	Profit           float64
	BuyAndHoldProfit float64
}

// FinalEquity returns the last value of the equity curve.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.Params.InitialInvestment
	}

	return r.Equity[len(r.Equity)-1]
}

// ProfitAmount returns the profit rounded to cents for display.
func (r *Result) ProfitAmount() decimal.Decimal {
	return decimal.NewFromFloat(r.Profit).Round(2)
}

// Engine runs the EMA crossover backtest over a price series.
// Implementations perform no I/O and keep no state between runs.
type Engine interface {
	// Run computes indicator, signal, position, returns and equity for series.
	Run(series types.PriceSeries) (*Result, error)
	// Params returns the parameters the engine was built with.
	Params() Params
}
