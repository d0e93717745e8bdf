package provider

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultYahooBaseURL is the public chart API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// yahooChartResponse is the part of the v8 chart payload the client reads.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				Currency  string `json:"currency"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooChartError `json:"error"`
	} `json:"chart"`
}

type yahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *yahooChartError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

type YahooClient struct {
	client         *resty.Client
	requestLimiter *rate.Limiter
	log            *logger.Logger
	mu             sync.Mutex
}

// NewYahooClient creates a chart API client allowing at most requestsPerMinute calls.
func NewYahooClient(baseURL string, timeout time.Duration, requestsPerMinute int, log *logger.Logger) (*YahooClient, error) {
	if requestsPerMinute <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "requests per minute must be positive, got %d", requestsPerMinute)
	}

	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; ema-backtest)")

	secondsPerRequest := time.Minute / time.Duration(requestsPerMinute)

	return &YahooClient{
		client:         client,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		log:            log,
	}, nil
}

// Name implements PriceProvider.
func (c *YahooClient) Name() string {
	return "yahoo"
}

// FetchPrices implements PriceProvider using the adjusted close of the daily chart.
// Days with a null close are skipped.
func (c *YahooClient) FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (types.PriceSeries, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return types.PriceSeries{}, err
	}

	if err := c.wait(ctx); err != nil {
		return types.PriceSeries{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "rate limiter wait cancelled", err)
	}

	var (
		result  yahooChartResponse
		failure yahooChartResponse
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"period1":              strconv.FormatInt(dateOf(start).Unix(), 10),
			"period2":              strconv.FormatInt(dateOf(end).AddDate(0, 0, 1).Unix(), 10),
			"interval":             "1d",
			"events":               "history",
			"includeAdjustedClose": "true",
		}).
		SetResult(&result).
		SetError(&failure).
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s from yahoo finance", ticker)
	}

	if resp.IsError() {
		c.log.Error("Yahoo Finance API returned non-OK status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("ticker", ticker),
		)

		if failure.Chart.Error != nil {
			return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, failure.Chart.Error, "yahoo finance returned status %d for %s", resp.StatusCode(), ticker)
		}

		return types.PriceSeries{}, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "yahoo finance returned status %d for %s", resp.StatusCode(), ticker)
	}

	if result.Chart.Error != nil {
		return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, result.Chart.Error, "yahoo finance error for %s", ticker)
	}

	points, err := parseYahooChart(ticker, &result)
	if err != nil {
		return types.PriceSeries{}, err
	}

	if len(points) == 0 {
		return types.PriceSeries{}, noData(c.Name(), ticker, start, end)
	}

	c.log.Info("Fetched prices",
		zap.String("provider", c.Name()),
		zap.String("ticker", ticker),
		zap.Int("count", len(points)),
	)

	return types.PriceSeries{Symbol: ticker, Points: points}, nil
}

func (c *YahooClient) wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.requestLimiter.Allow() {
		c.log.Warn("Yahoo Finance request limit reached, waiting")

		return c.requestLimiter.Wait(ctx)
	}

	return nil
}

// parseYahooChart prefers the adjclose series and falls back to the raw close.
// Timestamps are shifted by the exchange offset before taking the date.
func parseYahooChart(ticker string, resp *yahooChartResponse) ([]types.PricePoint, error) {
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]

	var closes []*float64

	switch {
	case len(result.Indicators.AdjClose) > 0:
		closes = result.Indicators.AdjClose[0].AdjClose
	case len(result.Indicators.Quote) > 0:
		closes = result.Indicators.Quote[0].Close
	default:
		return nil, nil
	}

	if len(closes) != len(result.Timestamp) {
		return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "yahoo finance returned %d timestamps but %d closes for %s",
			len(result.Timestamp), len(closes), ticker)
	}

	points := make([]types.PricePoint, 0, len(closes))

	for i, ts := range result.Timestamp {
		if closes[i] == nil || *closes[i] <= 0 {
			continue
		}

		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		points = appendPoint(points, dateOf(local), *closes[i])
	}

	return points, nil
}
