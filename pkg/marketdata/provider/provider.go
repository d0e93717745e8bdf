package provider

import (
	"context"
	"io"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/config"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
)

// PriceProvider fetches the daily adjusted close series of one instrument.
type PriceProvider interface {
	// Name identifies the provider, e.g. "yahoo".
	Name() string
	// FetchPrices returns the closes between start and end, both inclusive, ordered by date.
	// example:
	// FetchPrices(ctx, "INFY", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (types.PriceSeries, error)
}

// New creates the provider named in cfg. A positive CacheTTL wraps it in a CachedProvider.
func New(cfg config.ProviderConfig, log *logger.Logger) (PriceProvider, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		p   PriceProvider
		err error
	)

	switch cfg.Name {
	case config.ProviderYahoo:
		p, err = NewYahooClient(cfg.BaseURL, cfg.Timeout, cfg.RequestsPerMinute, log)
	case config.ProviderPolygon:
		p, err = NewPolygonClient(cfg.APIKey, log)
	case config.ProviderBinance:
		p, err = NewBinanceClient(cfg.BaseURL, log)
	case config.ProviderParquet:
		p, err = NewParquetClient(cfg.DataPath, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %q", cfg.Name)
	}

	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		return NewCachedProvider(p, cfg.CacheTTL, log), nil
	}

	return p, nil
}

// Close releases the resources held by p, such as the DuckDB connection of a
// ParquetClient. Providers without resources are left alone.
func Close(p PriceProvider) error {
	if closer, ok := p.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// dateOf drops the clock part of t, keeping its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// appendPoint adds a point unless its date does not advance the series.
// Providers sometimes repeat the latest bar; the first one wins.
func appendPoint(points []types.PricePoint, date time.Time, price float64) []types.PricePoint {
	if n := len(points); n > 0 && !date.After(points[n-1].Time) {
		return points
	}

	return append(points, types.PricePoint{Time: date, Price: price})
}

func checkRange(ticker string, start, end time.Time) error {
	if ticker == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "ticker is required")
	}

	if end.Before(start) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	return nil
}

func noData(provider, ticker string, start, end time.Time) error {
	return errors.Newf(errors.ErrCodeNoDataFound, "%s returned no prices for %s between %s and %s",
		provider, ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
}
