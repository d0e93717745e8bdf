// Package backtest wires a price provider, the engine and the renderers into one run.
package backtest

import (
	"context"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/ema-backtest/internal/config"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/report"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/rxtech-lab/ema-backtest/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// Request describes one backtest: which prices to fetch and how to trade them.
type Request struct {
	Ticker string
	Start  time.Time
	End    time.Time
	Params engine.Params
}

// RequestFromConfig extracts the run request from a loaded configuration.
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		Ticker: cfg.Ticker,
		Start:  cfg.StartDate,
		End:    cfg.EndDate,
		Params: engine.Params{
			EMAPeriod:         cfg.EMAPeriod,
			InitialInvestment: cfg.InitialInvestment,
			Smoothing:         cfg.Smoothing,
		},
	}
}

// RiskOptionsFromConfig extracts the VaR settings from a report configuration.
func RiskOptionsFromConfig(cfg config.ReportConfig) report.RiskOptions {
	return report.RiskOptions{
		Confidence:  cfg.Confidence,
		Simulations: cfg.Simulations,
		Horizon:     cfg.Horizon,
		Seed:        cfg.Seed,
	}
}

// Outcome is the engine result together with the report built from it.
type Outcome struct {
	Result *engine.Result
	Report report.Report
}

// Runner fetches prices, runs the engine and hands the report to its renderers.
type Runner struct {
	provider provider.PriceProvider
	renderer report.ReportRenderer
	chart    report.ChartRenderer
	risk     report.RiskOptions
	log      *logger.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithReportRenderer renders every successful run with r.
func WithReportRenderer(r report.ReportRenderer) Option {
	return func(runner *Runner) {
		runner.renderer = r
	}
}

// WithChartRenderer presents every successful run with c.
func WithChartRenderer(c report.ChartRenderer) Option {
	return func(runner *Runner) {
		runner.chart = c
	}
}

// WithRiskOptions replaces report.DefaultRiskOptions for the VaR and Expected Shortfall figures.
func WithRiskOptions(opts report.RiskOptions) Option {
	return func(runner *Runner) {
		runner.risk = opts
	}
}

// WithLogger logs run progress to log instead of discarding it.
func WithLogger(log *logger.Logger) Option {
	return func(runner *Runner) {
		runner.log = log
	}
}

// WithClock overrides the timestamp source of the summary.
func WithClock(now func() time.Time) Option {
	return func(runner *Runner) {
		runner.now = now
	}
}

// NewRunner returns a Runner reading prices from p. Without options it discards logs and uses report.DefaultRiskOptions.
func NewRunner(p provider.PriceProvider, opts ...Option) *Runner {
	r := &Runner{
		provider: p,
		risk:     report.DefaultRiskOptions(),
		log:      logger.NewNopLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes one backtest. Parameters are checked before any price is fetched,
// and provider failures are surfaced without retrying.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.End.Before(req.Start) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "end date %s is before start date %s",
			req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}

	eng, err := engine.NewBacktestEngineV1(req.Params, r.log)
	if err != nil {
		return nil, err
	}

	series, err := r.provider.FetchPrices(ctx, req.Ticker, req.Start, req.End)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeUnknown {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch prices for %s", req.Ticker)
		}

		return nil, err
	}

	if series.Symbol == "" {
		series.Symbol = req.Ticker
	}

	result, err := eng.Run(series)
	if err != nil {
		return nil, err
	}

	rep := BuildReport(result, req, r.risk, r.now())

	r.log.Info("Backtest finished",
		zap.String("run_id", result.RunID),
		zap.String("ticker", req.Ticker),
		zap.String("provider", r.provider.Name()),
		zap.Int("ema_period", req.Params.EMAPeriod),
		zap.String("profit", rep.Summary.Profit),
		zap.String("buy_and_hold_profit", rep.Summary.BuyAndHoldProfit),
	)

	if r.chart != nil {
		if err := r.chart.RenderChart(ctx, rep); err != nil {
			return nil, errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to render chart", err)
		}
	}

	if r.renderer != nil {
		if err := r.renderer.Render(ctx, rep); err != nil {
			return nil, errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to render report", err)
		}
	}

	return &Outcome{Result: result, Report: rep}, nil
}
