package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func (suite *ConfigTestSuite) TestLoadDefaults() {
	cfg, err := Load("", nil)
	suite.Require().NoError(err)

	suite.Equal(Default(), *cfg)
}

func (suite *ConfigTestSuite) TestLoadFile() {
	path := suite.writeConfig(`
ticker: AAPL
start_date: 2022-01-03
end_date: "2022-06-30"
initial_investment: 2500
ema_period: 20
smoothing: adjusted
provider:
  name: parquet
  data_path: data/aapl.parquet
  timeout: 5s
report:
  html: true
  output_dir: out
  confidence: 0.99
  simulations: 500
  horizon: 10
log:
  level: debug
`)

	cfg, err := Load(path, nil)
	suite.Require().NoError(err)

	suite.Equal("AAPL", cfg.Ticker)
	suite.Equal(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	suite.Equal(time.Date(2022, 6, 30, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	suite.Equal(2500.0, cfg.InitialInvestment)
	suite.Equal(20, cfg.EMAPeriod)
	suite.Equal(types.SmoothingAdjusted, cfg.Smoothing)
	suite.Equal(ProviderParquet, cfg.Provider.Name)
	suite.Equal("data/aapl.parquet", cfg.Provider.DataPath)
	suite.Equal(5*time.Second, cfg.Provider.Timeout)
	suite.Equal(60, cfg.Provider.RequestsPerMinute)
	suite.True(cfg.Report.HTML)
	suite.False(cfg.Report.YAML)
	suite.Equal("out", cfg.Report.OutputDir)
	suite.Equal(0.99, cfg.Report.Confidence)
	suite.Equal(500, cfg.Report.Simulations)
	suite.Equal(10, cfg.Report.Horizon)
	suite.Equal(uint64(42), cfg.Report.Seed)
	suite.Equal("debug", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestOverridesWin() {
	path := suite.writeConfig("ticker: AAPL\nema_period: 20\n")

	cfg, err := Load(path, map[string]any{
		"ticker":     "MSFT",
		"ema_period": 5,
		"start_date": "2021-03-01",
	})
	suite.Require().NoError(err)

	suite.Equal("MSFT", cfg.Ticker)
	suite.Equal(5, cfg.EMAPeriod)
	suite.Equal(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
}

func (suite *ConfigTestSuite) TestEnvOverride() {
	suite.T().Setenv("EMA_BACKTEST_TICKER", "TCS")
	suite.T().Setenv("EMA_BACKTEST_REPORT_SIMULATIONS", "250")
	suite.T().Setenv("POLYGON_API_KEY", "secret")

	cfg, err := Load("", map[string]any{"provider.name": "polygon"})
	suite.Require().NoError(err)

	suite.Equal("TCS", cfg.Ticker)
	suite.Equal(250, cfg.Report.Simulations)
	suite.Equal("secret", cfg.Provider.APIKey)
}

func (suite *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(suite.tempDir, "missing.yaml"), nil)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestValidate() {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		code   errors.ErrorCode
	}{
		{name: "zero ema period", mutate: func(c *Config) { c.EMAPeriod = 0 }, code: errors.ErrCodeInvalidConfiguration},
		{name: "ema period above range", mutate: func(c *Config) { c.EMAPeriod = 51 }, code: errors.ErrCodeInvalidConfiguration},
		{name: "zero investment", mutate: func(c *Config) { c.InitialInvestment = 0 }, code: errors.ErrCodeInvalidConfiguration},
		{name: "negative investment", mutate: func(c *Config) { c.InitialInvestment = -10 }, code: errors.ErrCodeInvalidConfiguration},
		{name: "empty ticker", mutate: func(c *Config) { c.Ticker = "" }, code: errors.ErrCodeInvalidConfiguration},
		{name: "end before start", mutate: func(c *Config) { c.EndDate = c.StartDate.AddDate(0, 0, -1) }, code: errors.ErrCodeInvalidConfiguration},
		{name: "unknown smoothing", mutate: func(c *Config) { c.Smoothing = "wilder" }, code: errors.ErrCodeInvalidConfiguration},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider.Name = "bloomberg" }, code: errors.ErrCodeInvalidConfiguration},
		{name: "polygon without key", mutate: func(c *Config) { c.Provider.Name = ProviderPolygon }, code: errors.ErrCodeInvalidConfiguration},
		{name: "parquet without path", mutate: func(c *Config) { c.Provider.Name = ProviderParquet }, code: errors.ErrCodeInvalidConfiguration},
		{name: "confidence of one", mutate: func(c *Config) { c.Report.Confidence = 1 }, code: errors.ErrCodeInvalidConfiguration},
		{name: "incompatible version", mutate: func(c *Config) { c.Version = "v99.0.0" }, code: errors.ErrCodeVersionMismatch},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			suite.Error(err)
			suite.Equal(tc.code, errors.GetCode(err))
			suite.True(errors.IsInvalidParameter(err))
		})
	}
}

func (suite *ConfigTestSuite) TestDefaultIsValid() {
	cfg := Default()
	suite.NoError(cfg.Validate())
}

func (suite *ConfigTestSuite) TestSingleDayRangeIsValid() {
	cfg := Default()
	cfg.EndDate = cfg.StartDate

	suite.NoError(cfg.Validate())
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	cfg := Default()

	schemaJSON, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schemaJSON), &schema))

	suite.Equal("ema-backtest-config", schema["title"])

	properties, ok := schema["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "ticker")
	suite.Contains(properties, "ema_period")
	suite.NotContains(properties, "api_key")

	smoothing, ok := properties["smoothing"].(map[string]any)
	suite.Require().True(ok)
	suite.ElementsMatch([]any{"recursive", "adjusted", "sma-seeded"}, smoothing["enum"])

	required, ok := schema["required"].([]any)
	suite.Require().True(ok)
	suite.Contains(required, "ticker")
}
