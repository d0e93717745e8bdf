package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/internal/version"
	apperrors "github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "EMA_BACKTEST"

// ProviderName selects the market data provider.
type ProviderName string

const (
	ProviderYahoo   ProviderName = "yahoo"
	ProviderPolygon ProviderName = "polygon"
	ProviderBinance ProviderName = "binance"
	ProviderParquet ProviderName = "parquet"
)

// AllProviders lists every supported provider name.
var AllProviders = []any{ProviderYahoo, ProviderPolygon, ProviderBinance, ProviderParquet}

// Config is everything a backtest run consumes. It is built once and passed down.
type Config struct {
	Ticker            string          `mapstructure:"ticker" yaml:"ticker" json:"ticker" validate:"required" jsonschema:"title=Ticker,description=Symbol to backtest (e.g. INFY or BTCUSDT),required"`
	StartDate         time.Time       `mapstructure:"start_date" yaml:"start_date" json:"start_date" validate:"required" jsonschema:"title=Start Date,description=First date of the price series,required"`
	EndDate           time.Time       `mapstructure:"end_date" yaml:"end_date" json:"end_date" validate:"required,gtefield=StartDate" jsonschema:"title=End Date,description=Last date of the price series,required"`
	InitialInvestment float64         `mapstructure:"initial_investment" yaml:"initial_investment" json:"initial_investment" validate:"gt=0" jsonschema:"title=Initial Investment,description=Amount invested at the start of the series,exclusiveMinimum=0"`
	EMAPeriod         int             `mapstructure:"ema_period" yaml:"ema_period" json:"ema_period" validate:"min=1,max=50" jsonschema:"title=EMA Period,description=Span of the exponential moving average,minimum=1,maximum=50"`
	Smoothing         types.Smoothing `mapstructure:"smoothing" yaml:"smoothing" json:"smoothing" validate:"oneof=recursive adjusted sma-seeded" jsonschema:"title=Smoothing,description=How the moving average is seeded and weighted"`
	Provider          ProviderConfig  `mapstructure:"provider" yaml:"provider" json:"provider"`
	Report            ReportConfig    `mapstructure:"report" yaml:"report" json:"report"`
	Log               LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
	// Version is the engine version this configuration was written for. Empty skips the check.
	Version string `mapstructure:"version" yaml:"version" json:"version,omitempty" jsonschema:"title=Version,description=Engine version the config targets"`
}

type ProviderConfig struct {
	Name              ProviderName  `mapstructure:"name" yaml:"name" json:"name" validate:"oneof=yahoo polygon binance parquet" jsonschema:"title=Provider,description=Market data provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key" json:"-" validate:"required_if=Name polygon"`
	DataPath          string        `mapstructure:"data_path" yaml:"data_path" json:"data_path,omitempty" validate:"required_if=Name parquet" jsonschema:"title=Data Path,description=Parquet file or glob for the parquet provider"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url" json:"base_url,omitempty" validate:"omitempty,url" jsonschema:"title=Base URL,description=Override of the provider endpoint"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute" validate:"min=1"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl" validate:"gte=0"`
}

type ReportConfig struct {
	OutputDir   string  `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir" validate:"required_if=HTML true,required_if=YAML true"`
	HTML        bool    `mapstructure:"html" yaml:"html" json:"html"`
	YAML        bool    `mapstructure:"yaml" yaml:"yaml" json:"yaml"`
	Confidence  float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence" validate:"gt=0,lt=1" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1"`
	Simulations int     `mapstructure:"simulations" yaml:"simulations" json:"simulations" validate:"min=1,max=1000000"`
	Horizon     int     `mapstructure:"horizon" yaml:"horizon" json:"horizon" validate:"min=1"`
	Seed        uint64  `mapstructure:"seed" yaml:"seed" json:"seed"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development" yaml:"development" json:"development"`
}

// Load reads the optional YAML file at path, applies environment overrides
// (EMA_BACKTEST_ prefix, "." replaced by "_") and then the explicit overrides,
// which take precedence over everything else. An empty path skips the file.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("provider.api_key", envPrefix+"_PROVIDER_API_KEY", "POLYGON_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, apperrors.Wrapf(apperrors.ErrCodeInvalidConfiguration, err, "config file %q not found", path)
			}

			return nil, apperrors.Wrapf(apperrors.ErrCodeInvalidConfiguration, err, "failed to read config file %q", path)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfiguration, "failed to decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration of a run with no file and no overrides.
func Default() Config {
	return Config{
		Ticker:            "INFY",
		StartDate:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		InitialInvestment: 10000,
		EMAPeriod:         9,
		Smoothing:         types.SmoothingRecursive,
		Provider: ProviderConfig{
			Name:              ProviderYahoo,
			Timeout:           15 * time.Second,
			RequestsPerMinute: 60,
			CacheTTL:          10 * time.Minute,
		},
		Report: ReportConfig{
			OutputDir:   "results",
			Confidence:  0.95,
			Simulations: 10000,
			Horizon:     1,
			Seed:        42,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("ticker", d.Ticker)
	v.SetDefault("start_date", d.StartDate.Format(time.DateOnly))
	v.SetDefault("end_date", d.EndDate.Format(time.DateOnly))
	v.SetDefault("initial_investment", d.InitialInvestment)
	v.SetDefault("ema_period", d.EMAPeriod)
	v.SetDefault("smoothing", string(d.Smoothing))
	v.SetDefault("version", "")

	v.SetDefault("provider.name", string(d.Provider.Name))
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.data_path", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", d.Provider.Timeout.String())
	v.SetDefault("provider.requests_per_minute", d.Provider.RequestsPerMinute)
	v.SetDefault("provider.cache_ttl", d.Provider.CacheTTL.String())

	v.SetDefault("report.output_dir", d.Report.OutputDir)
	v.SetDefault("report.html", d.Report.HTML)
	v.SetDefault("report.yaml", d.Report.YAML)
	v.SetDefault("report.confidence", d.Report.Confidence)
	v.SetDefault("report.simulations", d.Report.Simulations)
	v.SetDefault("report.horizon", d.Report.Horizon)
	v.SetDefault("report.seed", d.Report.Seed)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.DateOnly),
		)
	}
}

// Validate checks struct constraints and the engine version the config targets.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if err := version.CheckVersionCompatibility(version.GetVersion(), c.Version); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVersionMismatch, "incompatible configuration", err)
	}

	return nil
}
