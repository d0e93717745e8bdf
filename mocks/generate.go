package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/ema-backtest/pkg/marketdata/provider PriceProvider
//go:generate mockgen -destination=./mock_renderer.go -package=mocks github.com/rxtech-lab/ema-backtest/internal/report ReportRenderer,ChartRenderer
