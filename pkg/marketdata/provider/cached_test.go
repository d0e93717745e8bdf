package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rxtech-lab/ema-backtest/mocks"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type CachedProviderTestSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	next  *mocks.MockPriceProvider
	start time.Time
	end   time.Time
}

func TestCachedProviderSuite(t *testing.T) {
	suite.Run(t, new(CachedProviderTestSuite))
}

func (suite *CachedProviderTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.next = mocks.NewMockPriceProvider(suite.ctrl)
	suite.next.EXPECT().Name().Return("mock").AnyTimes()
	suite.start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.end = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
}

func (suite *CachedProviderTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *CachedProviderTestSuite) TestSecondFetchIsServedFromCache() {
	series := mocks.GenerateYear("INFY")
	suite.next.EXPECT().FetchPrices(gomock.Any(), "INFY", suite.start, suite.end).Return(series, nil).Times(1)

	cached := NewCachedProvider(suite.next, time.Minute, nil)
	suite.Equal("mock", cached.Name())

	first, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)

	second, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)

	suite.Equal(series, first)
	suite.Equal(series, second)

	// callers cannot corrupt the cached copy
	second.Points[0].Price = -1

	third, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)
	suite.Equal(series.Points[0].Price, third.Points[0].Price)
}

func (suite *CachedProviderTestSuite) TestDifferentKeysMiss() {
	suite.next.EXPECT().FetchPrices(gomock.Any(), "INFY", gomock.Any(), gomock.Any()).Return(mocks.GenerateYear("INFY"), nil).Times(2)
	suite.next.EXPECT().FetchPrices(gomock.Any(), "TCS", gomock.Any(), gomock.Any()).Return(mocks.GenerateYear("TCS"), nil).Times(1)

	cached := NewCachedProvider(suite.next, time.Minute, nil)

	_, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)
	_, err = cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end.AddDate(0, 0, -1))
	suite.Require().NoError(err)
	_, err = cached.FetchPrices(context.Background(), "TCS", suite.start, suite.end)
	suite.Require().NoError(err)
}

func (suite *CachedProviderTestSuite) TestErrorsAreNotCached() {
	series := mocks.GenerateYear("INFY")

	gomock.InOrder(
		suite.next.EXPECT().FetchPrices(gomock.Any(), "INFY", gomock.Any(), gomock.Any()).Return(series, errors.New("timeout")),
		suite.next.EXPECT().FetchPrices(gomock.Any(), "INFY", gomock.Any(), gomock.Any()).Return(series, nil),
	)

	cached := NewCachedProvider(suite.next, time.Minute, nil)

	_, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Error(err)

	_, err = cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.NoError(err)
}

func (suite *CachedProviderTestSuite) TestFlush() {
	suite.next.EXPECT().FetchPrices(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(mocks.GenerateYear("INFY"), nil).Times(2)

	cached := NewCachedProvider(suite.next, time.Minute, nil)

	_, _ = cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	cached.Flush()
	_, _ = cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
}

type closingProvider struct {
	PriceProvider
	closed int
	err    error
}

func (c *closingProvider) Close() error {
	c.closed++

	return c.err
}

func (suite *CachedProviderTestSuite) TestCloseClosesWrappedProvider() {
	series := mocks.GenerateYear("INFY")
	suite.next.EXPECT().FetchPrices(gomock.Any(), "INFY", suite.start, suite.end).Return(series, nil).Times(2)

	next := &closingProvider{PriceProvider: suite.next}
	cached := NewCachedProvider(next, time.Minute, nil)

	_, err := cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)

	suite.NoError(Close(cached))
	suite.Equal(1, next.closed)

	// the cache is flushed on close
	_, err = cached.FetchPrices(context.Background(), "INFY", suite.start, suite.end)
	suite.Require().NoError(err)
}

func (suite *CachedProviderTestSuite) TestCloseReturnsWrappedError() {
	next := &closingProvider{PriceProvider: suite.next, err: errors.New("database is locked")}

	err := NewCachedProvider(next, time.Minute, nil).Close()
	suite.Error(err)
	suite.Contains(err.Error(), "database is locked")
}

func (suite *CachedProviderTestSuite) TestCloseWithoutCloser() {
	suite.NoError(NewCachedProvider(suite.next, time.Minute, nil).Close())
	suite.NoError(Close(suite.next))
}
