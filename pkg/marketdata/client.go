package marketdata

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/rxtech-lab/ema-backtest/pkg/marketdata/provider"
	"github.com/rxtech-lab/ema-backtest/pkg/marketdata/writer"
	"go.uber.org/zap"
)

// DownloadParams holds the parameters for a market data download request.
type DownloadParams struct {
	Ticker    string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtefield=StartDate"`
}

// Client downloads prices from a provider and stores them as parquet files
// that the parquet provider can read back.
type Client struct {
	provider provider.PriceProvider
	dataPath string
	validate *validator.Validate
	log      *logger.Logger
}

// NewClient creates a new market data client writing into dataPath.
func NewClient(p provider.PriceProvider, dataPath string, log *logger.Logger) (*Client, error) {
	if p == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "provider is required")
	}

	if dataPath == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "data path is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		provider: p,
		dataPath: dataPath,
		validate: validator.New(),
		log:      log,
	}, nil
}

// Download fetches the series and writes it to the data path.
// It returns the written file and the number of prices in it.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, int, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	series, err := c.provider.FetchPrices(ctx, params.Ticker, params.StartDate, params.EndDate)
	if err != nil {
		return "", 0, err
	}

	w := writer.NewParquetWriter(c.outputPath(params), c.log)
	if err := w.Initialize(); err != nil {
		return "", 0, fmt.Errorf("failed to initialize writer at %s: %w", w.GetOutputPath(), err)
	}

	defer func() {
		if err := w.Close(); err != nil {
			c.log.Warn("Failed to close writer", zap.Error(err))
		}
	}()

	if err := w.Write(series); err != nil {
		return "", 0, err
	}

	path, err := w.Finalize()
	if err != nil {
		return "", 0, err
	}

	c.log.Info("Downloaded prices",
		zap.String("provider", c.provider.Name()),
		zap.String("ticker", params.Ticker),
		zap.Int("count", series.Len()),
		zap.String("path", path),
	)

	return path, series.Len(), nil
}

// outputPath builds DATA_PATH/TICKER_START_END.parquet.
func (c *Client) outputPath(params DownloadParams) string {
	name := fmt.Sprintf("%s_%s_%s.parquet",
		params.Ticker,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"))

	return filepath.Join(c.dataPath, name)
}
