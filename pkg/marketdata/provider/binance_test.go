package provider

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	apperrors "github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockBinanceAPIClient implements BinanceAPIClient for testing.
// Each call to Do returns the next page.
type mockBinanceAPIClient struct {
	klinesPerCall [][]*binance.Kline
	errorsPerCall []error
	callCount     int
	requests      []*mockBinanceKlinesService
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	service := &mockBinanceKlinesService{client: m}
	m.requests = append(m.requests, service)

	return service
}

type mockBinanceKlinesService struct {
	client   *mockBinanceAPIClient
	symbol   string
	interval string
	start    int64
	end      int64
	limit    int
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.symbol = symbol

	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.interval = interval

	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.start = startTime

	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.end = endTime

	return m
}

func (m *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	m.limit = limit

	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	idx := m.client.callCount
	m.client.callCount++

	var err error
	if idx < len(m.client.errorsPerCall) {
		err = m.client.errorsPerCall[idx]
	}

	if idx < len(m.client.klinesPerCall) {
		return m.client.klinesPerCall[idx], err
	}

	return nil, err
}

// dailyKlines builds count consecutive daily klines starting at start.
func dailyKlines(start time.Time, count int, firstClose float64) []*binance.Kline {
	klines := make([]*binance.Kline, count)

	for i := range klines {
		open := start.AddDate(0, 0, i)
		//nolint:exhaustruct // only the fields the client reads
		klines[i] = &binance.Kline{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.AddDate(0, 0, 1).UnixMilli() - 1,
			Close:     strconv.FormatFloat(firstClose+float64(i), 'f', 2, 64),
		}
	}

	return klines
}

type BinanceClientTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.start = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BinanceClientTestSuite) TestNewBinanceClient() {
	client, err := NewBinanceClient("", nil)
	suite.Require().NoError(err)
	suite.NotNil(client.apiClient)
	suite.Equal("binance", client.Name())

	_, ok := client.apiClient.(*binanceClientWrapper)
	suite.True(ok, "apiClient should be a binanceClientWrapper")
}

func (suite *BinanceClientTestSuite) TestFetchPricesSinglePage() {
	api := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{dailyKlines(suite.start, 10, 100)}}
	end := suite.start.AddDate(0, 0, 9)

	series, err := NewBinanceClientWithAPI(api, nil).FetchPrices(context.Background(), "BTCUSDT", suite.start, end)
	suite.Require().NoError(err)

	suite.Equal(10, series.Len())
	suite.Equal(100.0, series.Points[0].Price)
	suite.Equal(suite.start, series.Points[0].Time)
	suite.Equal(109.0, series.Points[9].Price)

	suite.Require().Len(api.requests, 1)
	req := api.requests[0]
	suite.Equal("BTCUSDT", req.symbol)
	suite.Equal("1d", req.interval)
	suite.Equal(binanceKlineLimit, req.limit)
	suite.Equal(suite.start.UnixMilli(), req.start)
	suite.Equal(end.AddDate(0, 0, 1).UnixMilli()-1, req.end)
}

func (suite *BinanceClientTestSuite) TestFetchPricesPaginates() {
	first := dailyKlines(suite.start, binanceKlineLimit, 1)
	second := dailyKlines(suite.start.AddDate(0, 0, binanceKlineLimit), 200, 1+binanceKlineLimit)
	api := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{first, second}}

	end := suite.start.AddDate(0, 0, binanceKlineLimit+199)

	series, err := NewBinanceClientWithAPI(api, nil).FetchPrices(context.Background(), "BTCUSDT", suite.start, end)
	suite.Require().NoError(err)

	suite.Equal(binanceKlineLimit+200, series.Len())
	suite.NoError(series.Validate())
	suite.Require().Len(api.requests, 2)
	suite.Equal(first[len(first)-1].CloseTime+1, api.requests[1].start)
}

func (suite *BinanceClientTestSuite) TestFetchPricesError() {
	api := &mockBinanceAPIClient{errorsPerCall: []error{errors.New("invalid symbol")}}

	_, err := NewBinanceClientWithAPI(api, nil).FetchPrices(context.Background(), "NOPE", suite.start, suite.start.AddDate(0, 1, 0))
	suite.Error(err)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataFetchFailed))
}

func (suite *BinanceClientTestSuite) TestFetchPricesParseError() {
	klines := dailyKlines(suite.start, 2, 100)
	klines[1].Close = "not-a-number"
	api := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{klines}}

	_, err := NewBinanceClientWithAPI(api, nil).FetchPrices(context.Background(), "BTCUSDT", suite.start, suite.start.AddDate(0, 0, 1))
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeMarketDataParseFailed))
}

func (suite *BinanceClientTestSuite) TestFetchPricesEmpty() {
	api := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{{}}}

	_, err := NewBinanceClientWithAPI(api, nil).FetchPrices(context.Background(), "BTCUSDT", suite.start, suite.start.AddDate(0, 0, 5))
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeNoDataFound))
}
