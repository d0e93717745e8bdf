package backtest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResultFolder returns base/<ticker>/ema<period>_<smoothing>/<start>_<end>,
// so runs with different parameters never overwrite each other.
func ResultFolder(base string, req Request) string {
	tickerFolder := filepath.Join(base, sanitize(req.Ticker))

	smoothing := string(req.Params.Smoothing)
	if smoothing == "" {
		smoothing = "recursive"
	}

	paramsFolder := filepath.Join(tickerFolder, fmt.Sprintf("ema%d_%s", req.Params.EMAPeriod, smoothing))
	timeRange := fmt.Sprintf("%s_%s", req.Start.Format("20060102"), req.End.Format("20060102"))

	return filepath.Join(paramsFolder, timeRange)
}

// sanitize keeps tickers such as "BRK/B" or "^NSEI" usable as folder names.
func sanitize(ticker string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '^', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, ticker)
}
