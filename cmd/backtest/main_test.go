package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

type BacktestCmdTestSuite struct {
	suite.Suite
	tempDir string
}

func TestBacktestCmdSuite(t *testing.T) {
	suite.Run(t, new(BacktestCmdTestSuite))
}

func (suite *BacktestCmdTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

// writePrices stores 30 daily closes for INFY as parquet and returns the path.
func (suite *BacktestCmdTestSuite) writePrices() string {
	path := filepath.Join(suite.tempDir, "prices.parquet")

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	_, err = db.Exec(fmt.Sprintf(`COPY (
		SELECT
			TIMESTAMP '2023-01-02 15:30:00' + to_days(CAST(i AS INTEGER)) AS time,
			'INFY' AS symbol,
			CAST(100 + i + (i %% 3) AS DOUBLE) AS close
		FROM range(30) AS r(i)
	) TO '%s' (FORMAT PARQUET)`, path))
	suite.Require().NoError(err)

	return path
}

func (suite *BacktestCmdTestSuite) TestSchema() {
	var out bytes.Buffer

	err := newApp(&out).Run(context.Background(), []string{"ema-backtest", "schema"})
	suite.Require().NoError(err)
	suite.Contains(out.String(), `"ema_period"`)
	suite.Contains(out.String(), `"initial_investment"`)
}

func (suite *BacktestCmdTestSuite) TestRunWithParquet() {
	path := suite.writePrices()
	output := filepath.Join(suite.tempDir, "results")

	var out bytes.Buffer

	err := newApp(&out).Run(context.Background(), []string{
		"ema-backtest", "run",
		"--provider", "parquet",
		"--data", path,
		"--ticker", "INFY",
		"--start", "2023-01-01",
		"--end", "2023-02-15",
		"--ema", "5",
		"--yaml",
		"--html",
		"--output", output,
		"--log-level", "error",
	})
	suite.Require().NoError(err)
	suite.Contains(out.String(), "INFY")

	var data []byte

	folder := filepath.Join(output, "INFY", "ema5_recursive", "20230101_20230215")

	data, err = os.ReadFile(filepath.Join(folder, "summary.yaml"))
	suite.Require().NoError(err)

	var summary types.Summary
	suite.Require().NoError(yaml.Unmarshal(data, &summary))
	suite.Equal("INFY", summary.Symbol)
	suite.Equal(30, summary.Prices)
	suite.Equal(5, summary.EMAPeriod)

	_, err = os.Stat(filepath.Join(folder, "report.html"))
	suite.NoError(err)
}

func (suite *BacktestCmdTestSuite) TestRunRejectsInvalidPeriod() {
	var out bytes.Buffer

	err := newApp(&out).Run(context.Background(), []string{
		"ema-backtest", "run",
		"--provider", "parquet",
		"--data", suite.writePrices(),
		"--ema", "0",
	})
	suite.Error(err)
}

func (suite *BacktestCmdTestSuite) TestOverridesOnlySetFlags() {
	var got map[string]any

	cmd := &cli.Command{
		Name:  "overrides",
		Flags: configFlags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			got = overrides(cmd)

			return nil
		},
	}

	err := cmd.Run(context.Background(), []string{"overrides", "--ticker", "TCS", "--start", "2022-03-01", "--ema", "12", "--dev"})
	suite.Require().NoError(err)

	suite.Equal(map[string]any{
		"ticker":          "TCS",
		"start_date":      "2022-03-01",
		"ema_period":      cmd.Int("ema"),
		"log.development": true,
	}, got)
}

func (suite *BacktestCmdTestSuite) TestDownloadCopiesRange() {
	out := filepath.Join(suite.tempDir, "copy")

	var buf bytes.Buffer

	err := newApp(&buf).Run(context.Background(), []string{
		"ema-backtest", "download",
		"--provider", "parquet",
		"--data", suite.writePrices(),
		"--ticker", "INFY",
		"--start", "2023-01-02",
		"--end", "2023-01-11",
		"--out", out,
	})
	suite.Require().NoError(err)
	suite.Contains(buf.String(), "Wrote 10 prices for INFY")

	_, err = os.Stat(filepath.Join(out, "INFY_2023-01-02_2023-01-11.parquet"))
	suite.NoError(err)
}
