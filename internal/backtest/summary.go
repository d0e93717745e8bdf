package backtest

import (
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/ema-backtest/internal/report"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/shopspring/decimal"
)

// BuildReport computes the metrics of result and packs everything renderers need.
func BuildReport(result *engine.Result, req Request, risk report.RiskOptions, now time.Time) report.Report {
	strategy := result.Returns.StrategyReturns()

	start, end := req.Start, req.End
	if len(result.Times) > 0 {
		start, end = result.Times[0], result.Times[len(result.Times)-1]
	}

	summary := types.Summary{
		RunID:             result.RunID,
		Timestamp:         now.UTC(),
		Symbol:            result.Symbol,
		StartDate:         start,
		EndDate:           end,
		EMAPeriod:         result.Params.EMAPeriod,
		Smoothing:         result.Params.Smoothing,
		Prices:            len(result.Prices),
		InitialInvestment: money(result.Params.InitialInvestment),
		FinalEquity:       money(result.FinalEquity()),
		Profit:            result.ProfitAmount().StringFixed(2),
		BuyAndHoldProfit:  money(result.BuyAndHoldProfit),
		Strategy:          report.ComputeMetrics(strategy, risk),
		Benchmark:         report.ComputeMetrics(result.Returns.BenchmarkReturns(), risk),
	}

	return report.Report{
		Summary:          summary,
		Times:            result.Times,
		Prices:           result.Prices,
		Indicator:        result.Indicator,
		Equity:           result.Equity,
		BuyAndHoldEquity: result.BuyAndHoldEquity,
		StrategyReturns:  strategy,
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
