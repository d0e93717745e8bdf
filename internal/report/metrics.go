package report

import (
	"math"
	"sort"

	"github.com/rxtech-lab/ema-backtest/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PeriodsPerYear annualises daily figures.
const PeriodsPerYear = 252

// RiskOptions configures the VaR and Expected Shortfall figures.
type RiskOptions struct {
	Confidence  float64
	Simulations int
	Horizon     int
	Seed        uint64
}

// DefaultRiskOptions returns 95% confidence, 10000 one-period paths and seed 42.
func DefaultRiskOptions() RiskOptions {
	return RiskOptions{
		Confidence:  0.95,
		Simulations: 10000,
		Horizon:     1,
		Seed:        42,
	}
}

// ComputeMetrics derives the performance statistics of a log return series.
// A zero risk-free rate is assumed. Undefined ratios (no variance, too few
// periods) are reported as 0.
func ComputeMetrics(returns []types.DatedReturn, opts RiskOptions) types.PerformanceMetrics {
	values := types.Values(returns)
	n := len(values)

	metrics := types.PerformanceMetrics{
		Periods: n,
		Risk: types.RiskMetrics{
			Confidence:  opts.Confidence,
			Simulations: opts.Simulations,
			Horizon:     opts.Horizon,
		},
	}

	if n == 0 {
		return metrics
	}

	metrics.TotalReturn = math.Exp(floats.Sum(values)) - 1

	years := float64(n) / PeriodsPerYear
	metrics.CAGR = math.Pow(1+metrics.TotalReturn, 1/years) - 1

	mean, std := meanStd(values)
	metrics.Volatility = std * math.Sqrt(PeriodsPerYear)

	if std > 0 {
		metrics.Sharpe = mean / std * math.Sqrt(PeriodsPerYear)
	}

	if dd := downsideDeviation(values); dd > 0 {
		metrics.Sortino = mean / dd * math.Sqrt(PeriodsPerYear)
	}

	metrics.MaxDrawdown, metrics.MaxDrawdownPeriods = maxDrawdown(values)
	metrics.BestPeriod, metrics.WorstPeriod = bestWorst(values)
	metrics.WinRate = winRate(values)

	simple := simpleReturns(values)
	metrics.Risk.HistoricalVaR, metrics.Risk.HistoricalES = historicalVaR(simple, opts.Confidence)
	metrics.Risk.ParametricVaR = parametricVaR(mean, std, opts.Confidence)
	metrics.Risk.MonteCarloVaR, metrics.Risk.MonteCarloES = MonteCarloVaR(mean, std, opts)

	return metrics
}

// meanStd returns the mean and the sample standard deviation, which is 0
// below two values.
func meanStd(values []float64) (float64, float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}

	return stat.MeanStdDev(values, nil)
}

// downsideDeviation is the root mean square of the negative returns over all periods.
func downsideDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		if v < 0 {
			sum += v * v
		}
	}

	return math.Sqrt(sum / float64(len(values)))
}

// maxDrawdown walks the compounded curve starting at 1 and returns the deepest
// decline from a running peak (<= 0) and the longest run of periods under water.
func maxDrawdown(values []float64) (float64, int) {
	equity := 1.0
	peak := 1.0
	deepest := 0.0
	longest := 0
	current := 0

	for _, r := range values {
		equity *= math.Exp(r)

		if equity >= peak {
			peak = equity
			current = 0

			continue
		}

		current++
		if current > longest {
			longest = current
		}

		if dd := equity/peak - 1; dd < deepest {
			deepest = dd
		}
	}

	return deepest, longest
}

func bestWorst(values []float64) (float64, float64) {
	best := math.Inf(-1)
	worst := math.Inf(1)

	for _, v := range values {
		best = math.Max(best, v)
		worst = math.Min(worst, v)
	}

	return math.Exp(best) - 1, math.Exp(worst) - 1
}

// winRate counts positive periods among the non-zero ones.
func winRate(values []float64) float64 {
	wins, total := 0, 0

	for _, v := range values {
		if v == 0 {
			continue
		}

		total++

		if v > 0 {
			wins++
		}
	}

	if total == 0 {
		return 0
	}

	return float64(wins) / float64(total)
}

func simpleReturns(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Exp(v) - 1
	}

	return out
}

// historicalVaR returns the (1-confidence) quantile of values and the mean of
// the values at or below it.
func historicalVaR(values []float64, confidence float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	v := quantile(sorted, 1-confidence)

	return v, tailMean(sorted, v)
}

// parametricVaR assumes normally distributed log returns.
func parametricVaR(mean, std, confidence float64) float64 {
	if std == 0 {
		return math.Exp(mean) - 1
	}

	return math.Exp(distuv.Normal{Mu: mean, Sigma: std}.Quantile(1-confidence)) - 1
}

// quantile interpolates linearly over the empirical distribution of a sorted
// slice (R type 4). q is clamped to [0, 1].
func quantile(sorted []float64, q float64) float64 {
	return stat.Quantile(min(max(q, 0), 1), stat.LinInterp, sorted, nil)
}

// tailMean is the mean of the sorted values at or below threshold, or the
// threshold itself when there are none.
func tailMean(sorted []float64, threshold float64) float64 {
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i] > threshold })
	if n == 0 {
		return threshold
	}

	return stat.Mean(sorted[:n], nil)
}

// normalQuantile is the inverse of the standard normal CDF.
func normalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}
