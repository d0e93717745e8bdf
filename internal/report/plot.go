package report

import (
	"math"

	"github.com/moznion/go-optional"
)

// plot maps several series onto a box of the given height sharing a y scale.
type plot struct {
	height float64
	min    float64
	max    float64
}

func newPlot(height int, series ...[]optional.Option[float64]) plot {
	p := plot{
		height: float64(height),
		min:    math.Inf(1),
		max:    math.Inf(-1),
	}

	for _, s := range series {
		for _, v := range s {
			if v.IsNone() {
				continue
			}

			p.min = math.Min(p.min, v.Unwrap())
			p.max = math.Max(p.max, v.Unwrap())
		}
	}

	if math.IsInf(p.min, 0) {
		p.min, p.max = 0, 1
	}

	if p.max == p.min {
		p.min--
		p.max++
	}

	return p
}

func (p plot) y(v float64) float64 {
	return p.height - (v-p.min)/(p.max-p.min)*p.height
}

func someValues(values []float64) []optional.Option[float64] {
	out := make([]optional.Option[float64], len(values))
	for i, v := range values {
		out[i] = optional.Some(v)
	}

	return out
}
