package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
)

const (
	chartWidth  = "960px"
	chartHeight = "320px"
	// PriceChartID and EquityChartID are the element ids of the two charts.
	PriceChartID  = "price-chart"
	EquityChartID = "equity-chart"
	// HTMLFileName is the file HTMLRenderer writes inside its output directory.
	HTMLFileName = "report.html"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"pct":  percent,
	"date": func(t time.Time) string { return t.Format(time.DateOnly) },
}).ParseFS(templateFS, "templates/report.html.tmpl"))

type metricRow struct {
	Name      string
	Strategy  string
	Benchmark string
}

type chartBlock struct {
	Element template.HTML
	Script  template.HTML
}

type htmlData struct {
	Summary     types.Summary
	Assets      []string
	PriceChart  chartBlock
	EquityChart chartBlock
	Rows        []metricRow
}

// HTMLRenderer writes a standalone HTML report with ECharts line charts.
type HTMLRenderer struct {
	outputDir string
	w         io.Writer
}

// NewHTMLRenderer writes to w.
func NewHTMLRenderer(w io.Writer) *HTMLRenderer {
	return &HTMLRenderer{w: w}
}

// NewHTMLFileRenderer writes report.html inside outputDir, creating it if needed.
func NewHTMLFileRenderer(outputDir string) *HTMLRenderer {
	return &HTMLRenderer{outputDir: outputDir}
}

// Render implements ReportRenderer.
func (h *HTMLRenderer) Render(_ context.Context, report Report) error {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, newHTMLData(report)); err != nil {
		return errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to execute html template", err)
	}

	if h.w != nil {
		if _, err := h.w.Write(buf.Bytes()); err != nil {
			return errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to write html report", err)
		}

		return nil
	}

	if err := os.MkdirAll(h.outputDir, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeReportRenderFailed, err, "failed to create %s", h.outputDir)
	}

	if err := os.WriteFile(filepath.Join(h.outputDir, HTMLFileName), buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to write html report", err)
	}

	return nil
}

func newHTMLData(report Report) htmlData {
	dates := make([]string, len(report.Times))
	for i, t := range report.Times {
		dates[i] = t.Format(time.DateOnly)
	}

	priceChart := newLineChart(PriceChartID, dates)
	priceChart.AddSeries("Price", lineData(someValues(report.Prices))).
		AddSeries(fmt.Sprintf("EMA(%d)", report.Summary.EMAPeriod), lineData(report.Indicator))

	equityChart := newLineChart(EquityChartID, dates)
	equityChart.AddSeries("Strategy", lineData(someValues(report.Equity))).
		AddSeries("Buy and hold", lineData(someValues(report.BuyAndHoldEquity)))

	price := priceChart.RenderSnippet()
	equity := equityChart.RenderSnippet()

	s := report.Summary.Strategy
	b := report.Summary.Benchmark
	pct := percent
	num := func(v float64) string { return fmt.Sprintf("%.2f", v) }

	return htmlData{
		Summary: report.Summary,
		// assets are resolved against the host while rendering the snippet
		Assets:      priceChart.JSAssets.Values,
		PriceChart:  chartBlock{Element: template.HTML(price.Element), Script: template.HTML(price.Script)},
		EquityChart: chartBlock{Element: template.HTML(equity.Element), Script: template.HTML(equity.Script)},
		Rows: []metricRow{
			{"Total return", pct(s.TotalReturn), pct(b.TotalReturn)},
			{"CAGR", pct(s.CAGR), pct(b.CAGR)},
			{"Volatility (ann.)", pct(s.Volatility), pct(b.Volatility)},
			{"Sharpe", num(s.Sharpe), num(b.Sharpe)},
			{"Sortino", num(s.Sortino), num(b.Sortino)},
			{"Max drawdown", pct(s.MaxDrawdown), pct(b.MaxDrawdown)},
			{"Longest drawdown (days)", fmt.Sprint(s.MaxDrawdownPeriods), fmt.Sprint(b.MaxDrawdownPeriods)},
			{"Best day", pct(s.BestPeriod), pct(b.BestPeriod)},
			{"Worst day", pct(s.WorstPeriod), pct(b.WorstPeriod)},
			{"Win rate", pct(s.WinRate), pct(b.WinRate)},
			{"Historical VaR", pct(s.Risk.HistoricalVaR), pct(b.Risk.HistoricalVaR)},
			{"Historical ES", pct(s.Risk.HistoricalES), pct(b.Risk.HistoricalES)},
			{"Parametric VaR", pct(s.Risk.ParametricVaR), pct(b.Risk.ParametricVaR)},
			{"Monte Carlo VaR", pct(s.Risk.MonteCarloVaR), pct(b.Risk.MonteCarloVaR)},
			{"Monte Carlo ES", pct(s.Risk.MonteCarloES), pct(b.Risk.MonteCarloES)},
		},
	}
}

func newLineChart(id string, dates []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: id,
			Width:   chartWidth,
			Height:  chartHeight,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(dates)

	return line
}

// lineData maps undefined values to "-", which ECharts draws as a gap.
func lineData(values []optional.Option[float64]) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if v.IsNone() {
			out[i] = opts.LineData{Value: "-"}

			continue
		}

		out[i] = opts.LineData{Value: v.Unwrap()}
	}

	return out
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
