package provider

import (
	"testing"
	"time"

	"github.com/rxtech-lab/ema-backtest/internal/config"
	apperrors "github.com/rxtech-lab/ema-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) providerConfig(name config.ProviderName) config.ProviderConfig {
	return config.ProviderConfig{
		Name:              name,
		Timeout:           time.Second,
		RequestsPerMinute: 60,
	}
}

func (suite *ProviderTestSuite) TestNewByName() {
	yahoo, err := New(suite.providerConfig(config.ProviderYahoo), nil)
	suite.Require().NoError(err)
	suite.IsType(&YahooClient{}, yahoo)

	binanceCfg := suite.providerConfig(config.ProviderBinance)
	binanceProvider, err := New(binanceCfg, nil)
	suite.Require().NoError(err)
	suite.IsType(&BinanceClient{}, binanceProvider)

	polygonCfg := suite.providerConfig(config.ProviderPolygon)
	polygonCfg.APIKey = "key"
	polygonProvider, err := New(polygonCfg, nil)
	suite.Require().NoError(err)
	suite.IsType(&PolygonClient{}, polygonProvider)
}

func (suite *ProviderTestSuite) TestNewWrapsInCache() {
	cfg := suite.providerConfig(config.ProviderYahoo)
	cfg.CacheTTL = time.Minute

	p, err := New(cfg, nil)
	suite.Require().NoError(err)
	suite.IsType(&CachedProvider{}, p)
	suite.Equal("yahoo", p.Name())
}

func (suite *ProviderTestSuite) TestNewErrors() {
	_, err := New(suite.providerConfig("bloomberg"), nil)
	suite.True(apperrors.HasCode(err, apperrors.ErrCodeInvalidProvider))

	_, err = New(suite.providerConfig(config.ProviderPolygon), nil)
	suite.True(apperrors.IsInvalidParameter(err))

	_, err = New(suite.providerConfig(config.ProviderParquet), nil)
	suite.True(apperrors.IsInvalidParameter(err))
}

func (suite *ProviderTestSuite) TestAppendPointSkipsRepeatedDates() {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	points := appendPoint(nil, day, 1)
	points = appendPoint(points, day, 2)
	points = appendPoint(points, day.AddDate(0, 0, -1), 3)
	points = appendPoint(points, day.AddDate(0, 0, 1), 4)

	suite.Len(points, 2)
	suite.Equal(1.0, points[0].Price)
	suite.Equal(4.0, points[1].Price)
}
