package writer

import (
	"github.com/rxtech-lab/ema-backtest/internal/types"
)

// PriceWriter defines the interface for writing a price series to a destination.
type PriceWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write persists every point of the series.
	Write(series types.PriceSeries) error
	// Finalize completes the writing process (e.g., commits transactions, exports files).
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
