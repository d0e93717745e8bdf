package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RiskMetrics struct {
	// Confidence level used for every VaR/ES figure, e.g. 0.95.
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// Historical Value-at-Risk: the loss quantile of the observed returns, reported as a negative return.
	HistoricalVaR float64 `yaml:"historical_var" json:"historical_var"`
	// Historical Expected Shortfall: mean of the returns at or below the historical VaR.
	HistoricalES float64 `yaml:"historical_es" json:"historical_es"`
	// Parametric VaR assuming normally distributed returns.
	ParametricVaR float64 `yaml:"parametric_var" json:"parametric_var"`
	// Monte Carlo VaR over Horizon periods.
	MonteCarloVaR float64 `yaml:"monte_carlo_var" json:"monte_carlo_var"`
	// Monte Carlo Expected Shortfall over Horizon periods.
	MonteCarloES float64 `yaml:"monte_carlo_es" json:"monte_carlo_es"`
	// Number of simulated paths.
	Simulations int `yaml:"simulations" json:"simulations"`
	// Periods per simulated path.
	Horizon int `yaml:"horizon" json:"horizon"`
}

type PerformanceMetrics struct {
	// Number of defined returns the metrics were computed from.
	Periods int `yaml:"periods" json:"periods"`
	// Cumulative simple return, exp(sum of log returns) - 1.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// Compound annual growth rate.
	CAGR float64 `yaml:"cagr" json:"cagr"`
	// Annualised standard deviation of the log returns.
	Volatility float64 `yaml:"volatility" json:"volatility"`
	// Annualised Sharpe ratio with a zero risk-free rate.
	Sharpe float64 `yaml:"sharpe" json:"sharpe"`
	// Annualised Sortino ratio with a zero target.
	Sortino float64 `yaml:"sortino" json:"sortino"`
	// Largest peak-to-trough decline of the equity curve, as a negative fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// Longest drawdown measured in periods.
	MaxDrawdownPeriods int `yaml:"max_drawdown_periods" json:"max_drawdown_periods"`
	// Best single period return.
	BestPeriod float64 `yaml:"best_period" json:"best_period"`
	// Worst single period return.
	WorstPeriod float64 `yaml:"worst_period" json:"worst_period"`
	// Share of non-zero returns that were positive.
	WinRate float64     `yaml:"win_rate" json:"win_rate"`
	Risk    RiskMetrics `yaml:"risk" json:"risk"`
}

// Summary is the persisted outcome of one backtest run.
type Summary struct {
	// RunID is the unique identifier for this backtest run.
	RunID string `yaml:"run_id" json:"run_id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Symbol    string    `yaml:"symbol" json:"symbol"`
	StartDate time.Time `yaml:"start_date" json:"start_date"`
	EndDate   time.Time `yaml:"end_date" json:"end_date"`
	EMAPeriod int       `yaml:"ema_period" json:"ema_period"`
	Smoothing Smoothing `yaml:"smoothing" json:"smoothing"`
	// Prices is the number of price points the run consumed.
	Prices int `yaml:"prices" json:"prices"`
	// Money figures are rendered with two decimals.
	InitialInvestment string `yaml:"initial_investment" json:"initial_investment"`
	FinalEquity       string `yaml:"final_equity" json:"final_equity"`
	Profit            string `yaml:"profit" json:"profit"`
	BuyAndHoldProfit  string `yaml:"buy_and_hold_profit" json:"buy_and_hold_profit"`
	// Strategy is computed from the strategy returns, Benchmark from buy-and-hold.
	Strategy  PerformanceMetrics `yaml:"strategy" json:"strategy"`
	Benchmark PerformanceMetrics `yaml:"benchmark" json:"benchmark"`
}

func WriteSummary(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary to file: %w", err)
	}

	return nil
}
