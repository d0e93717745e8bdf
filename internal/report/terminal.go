package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/shopspring/decimal"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// GainStyle for a non-negative profit.
	GainStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

	// LossStyle for a negative profit.
	LossStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	// PriceStyle for price marks on the chart.
	PriceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	// EMAStyle for indicator marks on the chart.
	EMAStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// HelpStyle for axis labels.
	HelpStyle = lipgloss.NewStyle().Faint(true)
)

const (
	priceMark = "●"
	emaMark   = "·"
)

// TerminalRenderer prints the profit and a fixed-size text chart of price vs EMA.
type TerminalRenderer struct {
	w      io.Writer
	width  int
	height int
}

// NewTerminalRenderer writes to w. Non-positive sizes fall back to 72x16.
func NewTerminalRenderer(w io.Writer, width, height int) *TerminalRenderer {
	if width <= 0 {
		width = 72
	}

	if height <= 0 {
		height = 16
	}

	return &TerminalRenderer{w: w, width: width, height: height}
}

// Render implements ReportRenderer.
func (t *TerminalRenderer) Render(ctx context.Context, report Report) error {
	return t.RenderChart(ctx, report)
}

// RenderChart implements ChartRenderer.
func (t *TerminalRenderer) RenderChart(_ context.Context, report Report) error {
	var b strings.Builder

	s := report.Summary

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s  EMA(%d) %s  %s → %s",
		s.Symbol, s.EMAPeriod, s.Smoothing, s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Investment %s  Final equity %s\n", s.InitialInvestment, s.FinalEquity))
	b.WriteString("Profit " + profitStyle(s.Profit).Render(s.Profit))
	b.WriteString("  Buy and hold " + profitStyle(s.BuyAndHoldProfit).Render(s.BuyAndHoldProfit))
	b.WriteString("\n\n")

	b.WriteString(t.chart(report))

	b.WriteString(fmt.Sprintf("\nSharpe %.2f  Max drawdown %s  VaR(%.0f%%) %s\n",
		s.Strategy.Sharpe, percent(s.Strategy.MaxDrawdown), s.Strategy.Risk.Confidence*100, percent(s.Strategy.Risk.HistoricalVaR)))

	if _, err := io.WriteString(t.w, b.String()); err != nil {
		return errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to write terminal report", err)
	}

	return nil
}

// chart samples the series onto a width x height grid. EMA marks are drawn
// first so the price wins where both land on the same cell.
func (t *TerminalRenderer) chart(report Report) string {
	prices := someValues(report.Prices)
	if len(prices) == 0 {
		return HelpStyle.Render("(no prices)") + "\n"
	}

	p := newPlot(t.height-1, prices, report.Indicator)

	grid := make([][]string, t.height)
	for row := range grid {
		grid[row] = make([]string, t.width)
		for col := range grid[row] {
			grid[row][col] = " "
		}
	}

	plotSeries := func(series []optional.Option[float64], mark string) {
		for col := 0; col < t.width; col++ {
			i := sampleIndex(col, t.width, len(series))
			if i >= len(series) || series[i].IsNone() {
				continue
			}

			row := int(math.Round(p.y(series[i].Unwrap())))
			row = min(max(row, 0), t.height-1)
			grid[row][col] = mark
		}
	}

	plotSeries(report.Indicator, EMAStyle.Render(emaMark))
	plotSeries(prices, PriceStyle.Render(priceMark))

	var b strings.Builder

	label := len(fmt.Sprintf("%.2f", p.max))
	for row, cells := range grid {
		switch row {
		case 0:
			b.WriteString(HelpStyle.Render(fmt.Sprintf("%*.2f ┤", label, p.max)))
		case t.height - 1:
			b.WriteString(HelpStyle.Render(fmt.Sprintf("%*.2f ┤", label, p.min)))
		default:
			b.WriteString(strings.Repeat(" ", label+1) + HelpStyle.Render("│"))
		}

		b.WriteString(strings.Join(cells, ""))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("%s %s price  %s EMA\n", strings.Repeat(" ", label+1),
		PriceStyle.Render(priceMark), EMAStyle.Render(emaMark)))

	return b.String()
}

// sampleIndex maps a chart column onto a series index.
func sampleIndex(col, width, n int) int {
	if n <= 1 || width <= 1 {
		return 0
	}

	return int(math.Round(float64(col) * float64(n-1) / float64(width-1)))
}

func profitStyle(amount string) lipgloss.Style {
	d, err := decimal.NewFromString(amount)
	if err == nil && d.IsNegative() {
		return LossStyle
	}

	return GainStyle
}
