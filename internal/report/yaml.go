package report

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
)

// SummaryFileName is the file YAMLRenderer writes inside its output directory.
const SummaryFileName = "summary.yaml"

// YAMLRenderer persists the run summary as YAML.
type YAMLRenderer struct {
	outputDir string
}

func NewYAMLRenderer(outputDir string) *YAMLRenderer {
	return &YAMLRenderer{outputDir: outputDir}
}

// Render implements ReportRenderer.
func (y *YAMLRenderer) Render(_ context.Context, report Report) error {
	if err := os.MkdirAll(y.outputDir, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeReportRenderFailed, err, "failed to create %s", y.outputDir)
	}

	if err := types.WriteSummary(filepath.Join(y.outputDir, SummaryFileName), report.Summary); err != nil {
		return errors.Wrap(errors.ErrCodeReportRenderFailed, "failed to write summary", err)
	}

	return nil
}
