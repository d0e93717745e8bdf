// Package report turns a finished backtest into performance metrics and
// renders them as HTML, YAML or a terminal chart.
package report

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"go.uber.org/multierr"
)

// Report is everything a renderer needs from one run.
type Report struct {
	Summary          types.Summary
	Times            []time.Time
	Prices           []float64
	Indicator        []optional.Option[float64]
	Equity           []float64
	BuyAndHoldEquity []float64
	StrategyReturns  []types.DatedReturn
}

// ReportRenderer renders a report as an artifact such as a file or a response body.
type ReportRenderer interface {
	Render(ctx context.Context, report Report) error
}

// ChartRenderer presents the price, the indicator and the profit of a run.
type ChartRenderer interface {
	RenderChart(ctx context.Context, report Report) error
}

// MultiRenderer fans a report out to several renderers.
// Every renderer runs even if an earlier one failed.
type MultiRenderer struct {
	renderers []ReportRenderer
}

func NewMultiRenderer(renderers ...ReportRenderer) *MultiRenderer {
	return &MultiRenderer{renderers: renderers}
}

// Len returns the number of wrapped renderers.
func (m *MultiRenderer) Len() int {
	return len(m.renderers)
}

// Render implements ReportRenderer.
func (m *MultiRenderer) Render(ctx context.Context, report Report) error {
	var err error

	for _, r := range m.renderers {
		err = multierr.Append(err, r.Render(ctx, report))
	}

	return err
}
