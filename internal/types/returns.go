package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// ReturnSeries holds the buy-and-hold and strategy log returns aligned with a PriceSeries.
// Index 0 is always None since it has no previous price.
type ReturnSeries struct {
	Times     []time.Time                `json:"times"`
	Benchmark []optional.Option[float64] `json:"-"`
	Strategy  []optional.Option[float64] `json:"-"`
}

// DatedReturn is one defined return with its date.
type DatedReturn struct {
	Time   time.Time `json:"time" yaml:"time"`
	Return float64   `json:"return" yaml:"return"`
}

// StrategyReturns returns the defined strategy returns with their dates.
func (r ReturnSeries) StrategyReturns() []DatedReturn {
	return defined(r.Times, r.Strategy)
}

// BenchmarkReturns returns the defined buy-and-hold returns with their dates.
func (r ReturnSeries) BenchmarkReturns() []DatedReturn {
	return defined(r.Times, r.Benchmark)
}

func defined(times []time.Time, values []optional.Option[float64]) []DatedReturn {
	out := make([]DatedReturn, 0, len(values))

	for i, v := range values {
		if v.IsNone() {
			continue
		}

		out = append(out, DatedReturn{Time: times[i], Return: v.Unwrap()})
	}

	return out
}

// Values strips the dates from a dated return slice.
func Values(returns []DatedReturn) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r.Return
	}

	return out
}
