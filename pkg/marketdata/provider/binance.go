package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// binanceKlineLimit is the largest page the klines endpoint returns.
const binanceKlineLimit = 1000

// BinanceKlinesService is the subset of the klines request builder the client uses.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient creates klines requests.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceClientWrapper struct {
	client *binance.Client
}

func (w *binanceClientWrapper) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesServiceWrapper{service: w.client.NewKlinesService()}
}

type binanceKlinesServiceWrapper struct {
	service *binance.KlinesService
}

func (s *binanceKlinesServiceWrapper) Symbol(symbol string) BinanceKlinesService {
	s.service.Symbol(symbol)

	return s
}

func (s *binanceKlinesServiceWrapper) Interval(interval string) BinanceKlinesService {
	s.service.Interval(interval)

	return s
}

func (s *binanceKlinesServiceWrapper) StartTime(startTime int64) BinanceKlinesService {
	s.service.StartTime(startTime)

	return s
}

func (s *binanceKlinesServiceWrapper) EndTime(endTime int64) BinanceKlinesService {
	s.service.EndTime(endTime)

	return s
}

func (s *binanceKlinesServiceWrapper) Limit(limit int) BinanceKlinesService {
	s.service.Limit(limit)

	return s
}

func (s *binanceKlinesServiceWrapper) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type BinanceClient struct {
	apiClient BinanceAPIClient
	progress  io.Writer
	log       *logger.Logger
}

// NewBinanceClient creates a client for the public klines endpoint. No API key is needed.
// An empty baseURL keeps the library default.
func NewBinanceClient(baseURL string, log *logger.Logger) (*BinanceClient, error) {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	c := NewBinanceClientWithAPI(&binanceClientWrapper{client: client}, log)
	c.progress = os.Stderr

	return c, nil
}

// NewBinanceClientWithAPI builds a client around an existing API implementation.
// The progress bar is discarded.
func NewBinanceClientWithAPI(api BinanceAPIClient, log *logger.Logger) *BinanceClient {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BinanceClient{
		apiClient: api,
		progress:  io.Discard,
		log:       log,
	}
}

// Name implements PriceProvider.
func (c *BinanceClient) Name() string {
	return "binance"
}

// FetchPrices implements PriceProvider with daily klines, paging until end is reached.
func (c *BinanceClient) FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (types.PriceSeries, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return types.PriceSeries{}, err
	}

	// Binance API uses milliseconds for timestamps; end is inclusive
	startTimeMillis := dateOf(start).UnixMilli()
	endTimeMillis := dateOf(end).AddDate(0, 0, 1).UnixMilli() - 1

	totalDays := int(dateOf(end).Sub(dateOf(start)).Hours()/24) + 1
	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(c.progress),
	)

	points := make([]types.PricePoint, 0, totalDays)
	currentStartTime := startTimeMillis

	for currentStartTime <= endTimeMillis {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(ticker).
			Interval("1d").
			StartTime(currentStartTime).
			EndTime(endTimeMillis).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch klines for %s from binance", ticker)
		}

		for _, k := range klines {
			closePrice, err := strconv.ParseFloat(k.Close, 64)
			if err != nil {
				return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid close %q for %s", k.Close, ticker)
			}

			points = appendPoint(points, dateOf(time.UnixMilli(k.OpenTime).UTC()), closePrice)
		}

		_ = bar.Set(len(points))

		// Last page
		if len(klines) < binanceKlineLimit {
			break
		}

		// Use the close time of the last kline + 1ms to avoid duplicates
		currentStartTime = klines[len(klines)-1].CloseTime + 1
	}

	_ = bar.Finish()

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
