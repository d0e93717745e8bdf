package types

import (
	"time"

	"github.com/rxtech-lab/ema-backtest/pkg/errors"
)

// PricePoint is one adjusted close.
type PricePoint struct {
	Time  time.Time `json:"time" yaml:"time"`
	Price float64   `json:"price" yaml:"price"`
}

// PriceSeries is an ordered adjusted-close series for a single instrument.
type PriceSeries struct {
	Symbol string       `json:"symbol" yaml:"symbol"`
	Points []PricePoint `json:"points" yaml:"points"`
}

// Len returns the number of points in the series.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Prices returns the price column.
func (s PriceSeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}

	return prices
}

// Times returns the date column.
func (s PriceSeries) Times() []time.Time {
	times := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		times[i] = p.Time
	}

	return times
}

// Validate checks that the series is non-empty, strictly increasing by date
// and that every price is positive (log returns are undefined otherwise).
func (s PriceSeries) Validate() error {
	if len(s.Points) == 0 {
		return errors.Newf(errors.ErrCodeInvalidSeries, "price series for %q is empty", s.Symbol)
	}

	for i, p := range s.Points {
		if p.Price <= 0 {
			return errors.Newf(errors.ErrCodeInvalidSeries, "price at %s must be positive, got %v", p.Time.Format(time.DateOnly), p.Price)
		}

		if i > 0 && !p.Time.After(s.Points[i-1].Time) {
			return errors.Newf(errors.ErrCodeInvalidSeries, "price series is not strictly increasing at index %d (%s)", i, p.Time.Format(time.DateOnly))
		}
	}

	return nil
}

// NewPriceSeries builds a series from parallel slices.
func NewPriceSeries(symbol string, times []time.Time, prices []float64) (PriceSeries, error) {
	if len(times) != len(prices) {
		return PriceSeries{}, errors.Newf(errors.ErrCodeInvalidSeries, "times and prices differ in length: %d != %d", len(times), len(prices))
	}

	points := make([]PricePoint, len(times))
	for i := range times {
		points[i] = PricePoint{Time: times[i], Price: prices[i]}
	}

	return PriceSeries{Symbol: symbol, Points: points}, nil
}
