package report

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// MonteCarloVaR simulates opts.Simulations paths of opts.Horizon normal log
// returns with the given mean and standard deviation. It returns the VaR and
// Expected Shortfall of the compounded path returns. The same seed always
// produces the same figures.
func MonteCarloVaR(mean, std float64, opts RiskOptions) (float64, float64) {
	if opts.Simulations <= 0 || opts.Horizon <= 0 {
		return 0, 0
	}

	dist := distuv.Normal{Mu: mean, Sigma: std, Src: newSource(opts.Seed)}
	outcomes := make([]float64, opts.Simulations)

	for i := range outcomes {
		path := 0.0
		for h := 0; h < opts.Horizon; h++ {
			path += dist.Rand()
		}

		outcomes[i] = math.Exp(path) - 1
	}

	sort.Float64s(outcomes)

	v := quantile(outcomes, 1-opts.Confidence)

	return v, tailMean(outcomes, v)
}

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
