package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"go.uber.org/zap"
)

// PolygonAggsIterator is the subset of the polygon iterator the client reads.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the polygon REST client used to list aggregates.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonClientWrapper struct {
	client *polygon.Client
}

func (w *polygonClientWrapper) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return w.client.ListAggs(ctx, params, options...)
}

type PolygonClient struct {
	apiClient PolygonAPIClient
	log       *logger.Logger
}

func NewPolygonClient(apiKey string, log *logger.Logger) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "polygon provider requires an api key")
	}

	return NewPolygonClientWithAPI(&polygonClientWrapper{client: polygon.New(apiKey)}, log), nil
}

// NewPolygonClientWithAPI builds a client around an existing API implementation.
func NewPolygonClientWithAPI(api PolygonAPIClient, log *logger.Logger) *PolygonClient {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PolygonClient{
		apiClient: api,
		log:       log,
	}
}

// Name implements PriceProvider.
func (c *PolygonClient) Name() string {
	return "polygon"
}

// FetchPrices implements PriceProvider using split and dividend adjusted daily aggregates.
func (c *PolygonClient) FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (types.PriceSeries, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return types.PriceSeries{}, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, params)

	points := make([]types.PricePoint, 0, 256)
	for iter.Next() {
		agg := iter.Item()
		points = appendPoint(points, dateOf(time.Time(agg.Timestamp)), agg.Close)
	}

	if err := iter.Err(); err != nil {
		return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch polygon aggregates for %s", ticker)
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
