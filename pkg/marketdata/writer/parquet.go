package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ParquetWriter stages prices in an in-memory DuckDB table and exports them
// as a parquet file with the columns the parquet provider reads (time, symbol, close).
type ParquetWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
	log        *logger.Logger
}

// NewParquetWriter creates a writer that exports to outputPath.
func NewParquetWriter(outputPath string, log *logger.Logger) PriceWriter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &ParquetWriter{
		outputPath: outputPath,
		log:        log,
	}
}

// Initialize opens the database, creates the table and prepares the insert
// statement inside a transaction.
func (w *ParquetWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			id TEXT,
			time TIMESTAMP,
			symbol TEXT,
			close DOUBLE
		)
	`)
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to create table: %w", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.stmt, err = w.tx.Prepare(`INSERT INTO market_data (id, time, symbol, close) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = w.tx.Rollback()
		w.db.Close()

		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	return nil
}

// Write inserts every point of the series.
func (w *ParquetWriter) Write(series types.PriceSeries) error {
	if w.stmt == nil {
		return fmt.Errorf("writer not initialized or statement is nil")
	}

	for _, point := range series.Points {
		if _, err := w.stmt.Exec(uuid.New().String(), point.Time, series.Symbol, point.Price); err != nil {
			return fmt.Errorf("failed to insert price at %s: %w", point.Time.Format("2006-01-02"), err)
		}
	}

	return nil
}

// Finalize commits the transaction and exports the table to parquet.
func (w *ParquetWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", fmt.Errorf("writer not initialized or transaction is nil")
	}

	if err := w.tx.Commit(); err != nil {
		_ = w.tx.Rollback()

		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.tx = nil

	if dir := filepath.Dir(w.outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	path := strings.ReplaceAll(w.outputPath, "'", "''")

	if _, err := w.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM market_data ORDER BY symbol, time) TO '%s' (FORMAT PARQUET)`, path)); err != nil {
		return "", fmt.Errorf("failed to export to Parquet: %w", err)
	}

	w.log.Info("Exported prices", zap.String("path", w.outputPath))

	return w.outputPath, nil
}

// Close releases the statement, any open transaction and the connection.
func (w *ParquetWriter) Close() error {
	var err error

	if w.stmt != nil {
		err = multierr.Append(err, w.stmt.Close())
		w.stmt = nil
	}

	if w.tx != nil {
		if rollbackErr := w.tx.Rollback(); rollbackErr != nil {
			w.log.Warn("Failed to rollback transaction during close", zap.Error(rollbackErr))
		}

		w.tx = nil
	}

	if w.db != nil {
		err = multierr.Append(err, w.db.Close())
		w.db = nil
	}

	return err
}

// GetOutputPath returns the parquet file path.
func (w *ParquetWriter) GetOutputPath() string {
	return w.outputPath
}
