package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/types"
)

// DataGenerator generates adjusted-close series for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how prices are generated.
type GeneratorConfig struct {
	// Symbol is the instrument symbol (e.g., "INFY", "SPY")
	Symbol string
	// StartTime is the date of the first price
	StartTime time.Time
	// Interval is the distance between prices
	Interval time.Duration
	// Count is the number of prices to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility is the standard deviation of each step (0.01 = 1%)
	Volatility float64
	// Trend is the total drift spread over the series (-0.5 to 0.5 for bearish to bullish)
	Trend float64
}

// DefaultConfig returns one year of daily prices.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "TEST",
		StartTime:    time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		Interval:     24 * time.Hour,
		Count:        252,
		InitialPrice: 100.0,
		Volatility:   0.015,
		Trend:        0.0,
	}
}

// Generate creates a series following geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) types.PriceSeries {
	points := make([]types.PricePoint, config.Count)
	price := config.InitialPrice
	current := config.StartTime

	drift := 0.0
	if config.Count > 0 {
		drift = config.Trend / float64(config.Count)
	}

	for i := 0; i < config.Count; i++ {
		points[i] = types.PricePoint{
			Time:  current,
			Price: roundToDecimals(price, 4),
		}

		// Box-Muller transform for a standard normal draw
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		next := price * (1 + config.Volatility*z + drift)
		if next <= 0 {
			next = price * 0.99
		}

		price = next
		current = current.Add(config.Interval)
	}

	return types.PriceSeries{
		Symbol: config.Symbol,
		Points: points,
	}
}

// GenerateYear is a convenience function for 252 daily prices with a fixed seed.
func GenerateYear(symbol string) types.PriceSeries {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Symbol = symbol

	return gen.Generate(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
