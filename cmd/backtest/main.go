package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/backtest"
	"github.com/rxtech-lab/ema-backtest/internal/config"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/report"
	"github.com/rxtech-lab/ema-backtest/internal/server"
	"github.com/rxtech-lab/ema-backtest/internal/version"
	"github.com/rxtech-lab/ema-backtest/pkg/marketdata"
	"github.com/rxtech-lab/ema-backtest/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// flagKeys maps CLI flags onto configuration keys. Only flags given on the
// command line override the file and the environment.
var flagKeys = map[string]string{
	"ticker":      "ticker",
	"start":       "start_date",
	"end":         "end_date",
	"investment":  "initial_investment",
	"ema":         "ema_period",
	"smoothing":   "smoothing",
	"provider":    "provider.name",
	"data":        "provider.data_path",
	"output":      "report.output_dir",
	"html":        "report.html",
	"yaml":        "report.yaml",
	"simulations": "report.simulations",
	"confidence":  "report.confidence",
	"seed":        "report.seed",
	"log-level":   "log.level",
	"dev":         "log.development",
}

// overrides collects the values of the flags the user set.
func overrides(cmd *cli.Command) map[string]any {
	out := make(map[string]any)

	for flag, key := range flagKeys {
		if !cmd.IsSet(flag) {
			continue
		}

		switch flag {
		case "start", "end":
			out[key] = cmd.Timestamp(flag).Format(time.DateOnly)
		case "investment", "confidence":
			out[key] = cmd.Float(flag)
		case "ema", "simulations":
			out[key] = cmd.Int(flag)
		case "seed":
			out[key] = cmd.Uint(flag)
		case "html", "yaml", "dev":
			out[key] = cmd.Bool(flag)
		default:
			out[key] = cmd.String(flag)
		}
	}

	return out
}

// setup loads the configuration and builds the logger and the price provider.
func setup(cmd *cli.Command) (*config.Config, *logger.Logger, provider.PriceProvider, error) {
	cfg, err := config.Load(cmd.String("config"), overrides(cmd))
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := provider.New(cfg.Provider, log)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, log, p, nil
}

// closeProvider releases the provider of an action and only warns on failure.
func closeProvider(p provider.PriceProvider, log *logger.Logger) {
	if err := provider.Close(p); err != nil {
		log.Warn("Failed to close price provider", zap.String("provider", p.Name()), zap.Error(err))
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, p, err := setup(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()
	defer closeProvider(p, log)

	req := backtest.RequestFromConfig(cfg)
	folder := backtest.ResultFolder(cfg.Report.OutputDir, req)

	var renderers []report.ReportRenderer
	if cfg.Report.YAML {
		renderers = append(renderers, report.NewYAMLRenderer(folder))
	}

	if cfg.Report.HTML {
		renderers = append(renderers, report.NewHTMLFileRenderer(folder))
	}

	opts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithRiskOptions(backtest.RiskOptionsFromConfig(cfg.Report)),
		backtest.WithChartRenderer(report.NewTerminalRenderer(cmd.Root().Writer, int(cmd.Int("width")), int(cmd.Int("height")))),
	}

	if len(renderers) > 0 {
		opts = append(opts, backtest.WithReportRenderer(report.NewMultiRenderer(renderers...)))
	}

	outcome, err := backtest.NewRunner(p, opts...).Run(ctx, req)
	if err != nil {
		return err
	}

	if len(renderers) > 0 {
		log.Info("Report written", zap.String("folder", folder), zap.String("run_id", outcome.Result.RunID))
	}

	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, p, err := setup(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()
	defer closeProvider(p, log)

	runner := backtest.NewRunner(p,
		backtest.WithLogger(log),
		backtest.WithRiskOptions(backtest.RiskOptionsFromConfig(cfg.Report)),
	)

	srv := server.New(*cfg, runner, log)
	if err := srv.Start(cmd.String("addr")); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Shutting down server")

	return srv.Shutdown(shutdownCtx)
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, p, err := setup(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()
	defer closeProvider(p, log)

	client, err := marketdata.NewClient(p, cmd.String("out"), log)
	if err != nil {
		return err
	}

	path, count, err := client.Download(ctx, marketdata.DownloadParams{
		Ticker:    cfg.Ticker,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Wrote %d prices for %s to %s\n", count, cfg.Ticker, path)

	return err
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	cfg := config.Default()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func configFlags() []cli.Flag {
	dateConfig := cli.TimestampConfig{Layouts: []string{"2006-01-02"}}

	return []cli.Flag{
		&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Symbol to backtest"},
		&cli.TimestampFlag{Name: "start", Aliases: []string{"s"}, Usage: "Start date in `YYYY-MM-DD` format", Config: dateConfig},
		&cli.TimestampFlag{Name: "end", Aliases: []string{"e"}, Usage: "End date in `YYYY-MM-DD` format", Config: dateConfig},
		&cli.FloatFlag{Name: "investment", Aliases: []string{"i"}, Usage: "Initial investment"},
		&cli.IntFlag{Name: "ema", Usage: "EMA period (1-50)"},
		&cli.StringFlag{Name: "smoothing", Usage: "EMA smoothing: recursive, adjusted or sma-seeded"},
		&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Market data provider: yahoo, polygon, binance or parquet"},
		&cli.StringFlag{Name: "data", Usage: "Parquet file or glob for the parquet provider"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn or error"},
		&cli.BoolFlag{Name: "dev", Usage: "Human friendly logs"},
	}
}

func newApp(stdout io.Writer) *cli.Command {
	runFlags := append(configFlags(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Folder for report files"},
		&cli.BoolFlag{Name: "html", Usage: "Write an HTML report"},
		&cli.BoolFlag{Name: "yaml", Usage: "Write summary.yaml"},
		&cli.IntFlag{Name: "simulations", Usage: "Monte Carlo paths"},
		&cli.FloatFlag{Name: "confidence", Usage: "VaR confidence level, e.g. 0.95"},
		&cli.UintFlag{Name: "seed", Usage: "Monte Carlo seed"},
		&cli.IntFlag{Name: "width", Value: 72, Usage: "Terminal chart width"},
		&cli.IntFlag{Name: "height", Value: 16, Usage: "Terminal chart height"},
	)

	serveFlags := append(configFlags(),
		&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "Listen address"},
	)

	return &cli.Command{
		Name:    "ema-backtest",
		Usage:   "Backtest an EMA crossover strategy on daily closes",
		Version: version.GetVersion(),
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Fetch prices, run the backtest and print the result",
				Flags:  runFlags,
				Action: runAction,
			},
			{
				Name:   "serve",
				Usage:  "Serve backtests and reports over HTTP",
				Flags:  serveFlags,
				Action: serveAction,
			},
			{
				Name:  "download",
				Usage: "Fetch prices and store them as parquet for the parquet provider",
				Flags: append(configFlags(),
					&cli.StringFlag{Name: "out", Required: true, Usage: "Output directory for the parquet file"},
				),
				Action: downloadAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the configuration JSON schema",
				Action: schemaAction,
			},
		},
	}
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
