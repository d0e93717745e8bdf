package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ParquetClient reads prices from local parquet files with columns time, symbol and close.
// Intraday rows are collapsed to the last close of each day.
type ParquetClient struct {
	db   *sql.DB
	path string
	log  *logger.Logger
	sq   squirrel.StatementBuilderType
}

// NewParquetClient opens an in-memory DuckDB database and exposes path (a file or glob) as a view.
func NewParquetClient(path string, log *logger.Logger) (*ParquetClient, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "parquet provider requires a data path")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	// Create a view from the parquet file - using raw SQL as Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM read_parquet('%s');`,
		strings.ReplaceAll(path, "'", "''"))

	if _, err := db.Exec(query); err != nil {
		return nil, multierr.Append(
			errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read parquet data at %s", path),
			db.Close(),
		)
	}

	log.Debug("Opened parquet data", zap.String("path", path))

	return &ParquetClient{
		db:   db,
		path: path,
		log:  log,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Name implements PriceProvider.
func (c *ParquetClient) Name() string {
	return "parquet"
}

// FetchPrices implements PriceProvider.
func (c *ParquetClient) FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (_ types.PriceSeries, err error) {
	if err := checkRange(ticker, start, end); err != nil {
		return types.PriceSeries{}, err
	}

	query, args, err := c.sq.
		Select("CAST(time AS DATE) AS day", "CAST(arg_max(close, time) AS DOUBLE) AS close").
		From("market_data").
		Where(squirrel.And{
			squirrel.Eq{"symbol": ticker},
			squirrel.GtOrEq{"time": dateOf(start)},
			squirrel.Lt{"time": dateOf(end).AddDate(0, 0, 1)},
		}).
		GroupBy("day").
		OrderBy("day ASC").
		ToSql()
	if err != nil {
		return types.PriceSeries{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query prices for %s", ticker)
	}

	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	points := make([]types.PricePoint, 0, 256)

	for rows.Next() {
		var (
			day   time.Time
			price float64
		)

		if err := rows.Scan(&day, &price); err != nil {
			return types.PriceSeries{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan price row", err)
		}

		points = appendPoint(points, dateOf(day), price)
	}

	if err := rows.Err(); err != nil {
		return types.PriceSeries{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate price rows", err)
	}

	if len(points) == 0 {
		return types.PriceSeries{}, noData(c.Name(), ticker, start, end)
	}

	c.log.Info("Fetched prices",
		zap.String("provider", c.Name()),
		zap.String("ticker", ticker),
		zap.String("path", c.path),
		zap.Int("count", len(points)),
	)

	return types.PriceSeries{Symbol: ticker, Points: points}, nil
}

// Close releases the DuckDB connection.
func (c *ParquetClient) Close() error {
	return c.db.Close()
}
