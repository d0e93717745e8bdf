package report

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func dated(values ...float64) []types.DatedReturn {
	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	out := make([]types.DatedReturn, len(values))

	for i, v := range values {
		out[i] = types.DatedReturn{Time: start.AddDate(0, 0, i), Return: v}
	}

	return out
}

func (suite *MetricsTestSuite) TestEmptyReturns() {
	metrics := ComputeMetrics(nil, DefaultRiskOptions())

	suite.Equal(0, metrics.Periods)
	suite.Equal(0.0, metrics.TotalReturn)
	suite.Equal(0.0, metrics.Sharpe)
	suite.Equal(0.0, metrics.Risk.MonteCarloVaR)
	suite.Equal(0.95, metrics.Risk.Confidence)
}

func (suite *MetricsTestSuite) TestKnownSeries() {
	returns := dated(math.Log(1.1), math.Log(0.9), math.Log(1.05))
	metrics := ComputeMetrics(returns, DefaultRiskOptions())

	suite.Equal(3, metrics.Periods)
	suite.InDelta(1.1*0.9*1.05-1, metrics.TotalReturn, 1e-12)
	suite.InDelta(-0.1, metrics.MaxDrawdown, 1e-12)
	suite.Equal(2, metrics.MaxDrawdownPeriods)
	suite.InDelta(0.1, metrics.BestPeriod, 1e-12)
	suite.InDelta(-0.1, metrics.WorstPeriod, 1e-12)
	suite.InDelta(2.0/3, metrics.WinRate, 1e-12)

	_, std := meanStd(types.Values(returns))
	suite.InDelta(std*math.Sqrt(PeriodsPerYear), metrics.Volatility, 1e-12)
	suite.Greater(metrics.Sharpe, 0.0)
	suite.Greater(metrics.Sortino, 0.0)
	suite.Greater(metrics.CAGR, metrics.TotalReturn)
}

func (suite *MetricsTestSuite) TestFlatReturns() {
	metrics := ComputeMetrics(dated(0, 0, 0, 0), DefaultRiskOptions())

	suite.Equal(0.0, metrics.TotalReturn)
	suite.Equal(0.0, metrics.Volatility)
	suite.Equal(0.0, metrics.Sharpe)
	suite.Equal(0.0, metrics.Sortino)
	suite.Equal(0.0, metrics.MaxDrawdown)
	suite.Equal(0.0, metrics.WinRate)
	suite.Equal(0.0, metrics.Risk.HistoricalVaR)
	suite.Equal(0.0, metrics.Risk.ParametricVaR)
	suite.Equal(0.0, metrics.Risk.MonteCarloVaR)
}

func (suite *MetricsTestSuite) TestQuantile() {
	sorted := []float64{1, 2, 3, 4, 5}

	// p*n is the interpolation position, flat below the first rank
	suite.Equal(1.0, quantile(sorted, 0))
	suite.InDelta(1.25, quantile(sorted, 0.25), 1e-12)
	suite.Equal(1.0, quantile(sorted, 0.1))
	suite.InDelta(2.5, quantile(sorted, 0.5), 1e-12)
	suite.Equal(5.0, quantile(sorted, 1))
	suite.Equal(7.0, quantile([]float64{7}, 0.05))
	suite.Equal(1.0, quantile(sorted, -0.5))
	suite.Equal(5.0, quantile(sorted, 1.5))

	suite.Equal(1.0, tailMean(sorted, 1.4))
	suite.Equal(1.5, tailMean(sorted, 2))
	suite.Equal(0.5, tailMean(sorted, 0.5))
}

func (suite *MetricsTestSuite) TestMeanStd() {
	mean, std := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	suite.InDelta(5.0, mean, 1e-12)
	suite.InDelta(math.Sqrt(32.0/7), std, 1e-12)

	mean, std = meanStd([]float64{0.3})
	suite.Equal(0.3, mean)
	suite.Equal(0.0, std)

	mean, std = meanStd(nil)
	suite.Equal(0.0, mean)
	suite.Equal(0.0, std)
}

func (suite *MetricsTestSuite) TestHistoricalVaR() {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i-50) / 1000
	}

	v, es := historicalVaR(values, 0.95)
	suite.InDelta(-0.046, v, 1e-9)
	suite.LessOrEqual(es, v)

	// halfway between the fourth and fifth smallest values
	v, es = historicalVaR(values, 0.955)
	suite.InDelta(-0.0465, v, 1e-9)
	suite.InDelta(-0.0485, es, 1e-9)
}

func (suite *MetricsTestSuite) TestNormalQuantile() {
	suite.InDelta(-1.644854, normalQuantile(0.05), 1e-6)
	suite.InDelta(0, normalQuantile(0.5), 1e-12)
	suite.InDelta(2.326348, normalQuantile(0.99), 1e-6)
}

func (suite *MetricsTestSuite) TestMonteCarloDeterministic() {
	opts := RiskOptions{Confidence: 0.95, Simulations: 5000, Horizon: 5, Seed: 7}

	v1, es1 := MonteCarloVaR(0.0005, 0.02, opts)
	v2, es2 := MonteCarloVaR(0.0005, 0.02, opts)
	suite.Equal(v1, v2)
	suite.Equal(es1, es2)
	suite.LessOrEqual(es1, v1)

	opts.Seed = 8
	v3, _ := MonteCarloVaR(0.0005, 0.02, opts)
	suite.NotEqual(v1, v3)
}

func (suite *MetricsTestSuite) TestParametricVaR() {
	suite.InDelta(math.Exp(0.001-1.6448536269514722*0.02)-1, parametricVaR(0.001, 0.02, 0.95), 1e-9)
	suite.InDelta(math.Exp(0.001)-1, parametricVaR(0.001, 0, 0.95), 1e-12)
}

func (suite *MetricsTestSuite) TestMonteCarloSingleDraw() {
	// one path of one period is exp of the first normal draw from the seeded source
	draw := rand.New(newSource(11)).NormFloat64()*0.02 + 0.001

	v, es := MonteCarloVaR(0.001, 0.02, RiskOptions{Confidence: 0.95, Simulations: 1, Horizon: 1, Seed: 11})
	suite.InDelta(math.Exp(draw)-1, v, 1e-15)
	suite.Equal(v, es)
}

func (suite *MetricsTestSuite) TestMonteCarloApproachesParametric() {
	opts := RiskOptions{Confidence: 0.95, Simulations: 200000, Horizon: 1, Seed: 42}

	v, _ := MonteCarloVaR(0, 0.01, opts)
	suite.InDelta(parametricVaR(0, 0.01, 0.95), v, 5e-4)
}

func (suite *MetricsTestSuite) TestMonteCarloDegenerate() {
	v, es := MonteCarloVaR(0.01, 0, RiskOptions{Confidence: 0.95, Simulations: 10, Horizon: 3})
	suite.InDelta(math.Exp(0.03)-1, v, 1e-12)
	suite.InDelta(math.Exp(0.03)-1, es, 1e-12)

	v, es = MonteCarloVaR(0.01, 0.02, RiskOptions{Confidence: 0.95})
	suite.Equal(0.0, v)
	suite.Equal(0.0, es)
}
