package engine

import (
	"math"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ema-backtest/internal/indicator"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"go.uber.org/zap"
)

type BacktestEngineV1 struct {
	params Params
	ema    *indicator.EMA
	log    *logger.Logger
}

// NewBacktestEngineV1 validates params and builds an engine. A nil logger discards output.
func NewBacktestEngineV1(params Params, log *logger.Logger) (Engine, error) {
	if params.EMAPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "ema period must be a positive integer, got %d", params.EMAPeriod)
	}

	if !(params.InitialInvestment > 0) || math.IsInf(params.InitialInvestment, 0) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "initial investment must be a positive number, got %v", params.InitialInvestment)
	}

	if params.Smoothing == "" {
		params.Smoothing = types.SmoothingRecursive
	}

	ema, err := indicator.NewEMA(params.EMAPeriod, params.Smoothing)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to create EMA indicator", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BacktestEngineV1{
		params: params,
		ema:    ema,
		log:    log,
	}, nil
}

// Params implements Engine.
func (b *BacktestEngineV1) Params() Params {
	return b.params
}

// Run implements Engine.
func (b *BacktestEngineV1) Run(series types.PriceSeries) (*Result, error) {
	if series.Len() < b.ema.WarmUp() {
		return nil, errors.NewInsufficientDataErrorf(b.ema.WarmUp(), series.Len(), series.Symbol,
			"%s has %d prices but EMA(%d) needs at least %d", series.Symbol, series.Len(), b.ema.Period(), b.ema.WarmUp())
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}

	prices := series.Prices()
	times := series.Times()

	ind, err := ComputeIndicator(b.ema, prices)
	if err != nil {
		return nil, err
	}

	signal, err := ComputeSignal(prices, ind)
	if err != nil {
		return nil, err
	}

	position := ComputePosition(signal)

	perf, err := ComputeReturns(prices, position, b.params.InitialInvestment)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     uuid.New().String(),
		Symbol:    series.Symbol,
		Params:    b.params,
		Times:     times,
		Prices:    prices,
		Indicator: ind,
		Signal:    signal,
		Position:  position,
		Returns: types.ReturnSeries{
			Times:     times,
			Benchmark: perf.Benchmark,
			Strategy:  perf.Strategy,
		},
		Equity:           perf.Equity,
		BuyAndHoldEquity: perf.BuyAndHoldEquity,
		Profit:           perf.Profit,
		BuyAndHoldProfit: perf.BuyAndHoldProfit,
	}

	b.log.Debug("Backtest completed",
		zap.String("run_id", result.RunID),
		zap.String("symbol", series.Symbol),
		zap.Int("prices", series.Len()),
		zap.Int("ema_period", b.ema.Period()),
		zap.String("smoothing", string(b.ema.Smoothing())),
		zap.Float64("profit", result.Profit),
	)

	return result, nil
}

// ComputeIndicator runs ind over prices.
func ComputeIndicator(ind indicator.Indicator, prices []float64) ([]optional.Option[float64], error) {
	values, err := ind.Series(prices)
	if err != nil {
		if errors.IsInsufficientDataError(err) {
			return nil, err
		}

		return nil, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "failed to calculate %s", ind.Name())
	}

	return values, nil
}

// ComputeSignal is Short where price < indicator and Long otherwise.
// Dates without an indicator value get no signal.
func ComputeSignal(prices []float64, ind []optional.Option[float64]) ([]optional.Option[types.Signal], error) {
	if len(prices) != len(ind) {
		return nil, errors.Newf(errors.ErrCodeInvalidSeries, "prices and indicator differ in length: %d != %d", len(prices), len(ind))
	}

	signal := make([]optional.Option[types.Signal], len(prices))
	for i, value := range ind {
		if value.IsNone() {
			signal[i] = optional.None[types.Signal]()

			continue
		}

		if prices[i] < value.Unwrap() {
			signal[i] = optional.Some(types.SignalShort)
		} else {
			signal[i] = optional.Some(types.SignalLong)
		}
	}

	return signal, nil
}

// ComputePosition carries the last known signal forward.
// Dates before the first signal have no position.
func ComputePosition(signal []optional.Option[types.Signal]) []optional.Option[types.Signal] {
	position := make([]optional.Option[types.Signal], len(signal))
	last := optional.None[types.Signal]()

	for i, s := range signal {
		if s.IsSome() {
			last = s
		}

		position[i] = last
	}

	return position
}

// Performance is the output of ComputeReturns.
type Performance struct {
	Benchmark        []optional.Option[float64]
	Strategy         []optional.Option[float64]
	Equity           []float64
	BuyAndHoldEquity []float64
	Profit           float64
	BuyAndHoldProfit float64
}

// ComputeReturns derives log returns and the equity curves.
//
//	benchmark[t] = ln(price[t] / price[t-1])
//	strategy[t]  = benchmark[t] * position[t-1]
//	equity[t]    = initial * exp(sum(strategy[0..t]))
//
// strategy[t] is None when position[t-1] is unknown and adds nothing to the sum.
func ComputeReturns(prices []float64, position []optional.Option[types.Signal], initial float64) (Performance, error) {
	if len(prices) != len(position) {
		return Performance{}, errors.Newf(errors.ErrCodeInvalidSeries, "prices and position differ in length: %d != %d", len(prices), len(position))
	}

	n := len(prices)
	perf := Performance{
		Benchmark:        make([]optional.Option[float64], n),
		Strategy:         make([]optional.Option[float64], n),
		Equity:           make([]float64, n),
		BuyAndHoldEquity: make([]float64, n),
	}

	strategySum := 0.0
	benchmarkSum := 0.0

	for t := 0; t < n; t++ {
		perf.Benchmark[t] = optional.None[float64]()
		perf.Strategy[t] = optional.None[float64]()

		if t > 0 {
			benchmark := math.Log(prices[t] / prices[t-1])
			perf.Benchmark[t] = optional.Some(benchmark)
			benchmarkSum += benchmark

			// position[t-1], never position[t]
			if position[t-1].IsSome() {
				strategy := benchmark * position[t-1].Unwrap().Float64()
				perf.Strategy[t] = optional.Some(strategy)
				strategySum += strategy
			}
		}

		perf.Equity[t] = initial * math.Exp(strategySum)
		perf.BuyAndHoldEquity[t] = initial * math.Exp(benchmarkSum)
	}

	if n > 0 {
		perf.Profit = perf.Equity[n-1] - initial
		perf.BuyAndHoldProfit = perf.BuyAndHoldEquity[n-1] - initial
	}

	return perf, nil
}
