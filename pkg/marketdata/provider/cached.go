package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"go.uber.org/zap"
)

// CachedProvider memoizes successful fetches of another provider for ttl.
// Failures are never cached.
type CachedProvider struct {
	next  PriceProvider
	cache *cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedProvider(next PriceProvider, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		log:   log,
	}
}

// Name implements PriceProvider.
func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// FetchPrices implements PriceProvider.
func (c *CachedProvider) FetchPrices(ctx context.Context, ticker string, start time.Time, end time.Time) (types.PriceSeries, error) {
	key := cacheKey(c.next.Name(), ticker, start, end)

	if cached, found := c.cache.Get(key); found {
		if series, ok := cached.(types.PriceSeries); ok {
			c.log.Debug("Price cache hit", zap.String("key", key))

			return clone(series), nil
		}
	}

	series, err := c.next.FetchPrices(ctx, ticker, start, end)
	if err != nil {
		return types.PriceSeries{}, err
	}

	c.cache.Set(key, clone(series), c.ttl)

	return series, nil
}

// Flush drops every cached series.
func (c *CachedProvider) Flush() {
	c.cache.Flush()
}

// Close flushes the cache and closes the wrapped provider.
func (c *CachedProvider) Close() error {
	c.cache.Flush()

	return Close(c.next)
}

func cacheKey(provider, ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", provider, ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
}

func clone(series types.PriceSeries) types.PriceSeries {
	points := make([]types.PricePoint, len(series.Points))
	copy(points, series.Points)

	return types.PriceSeries{Symbol: series.Symbol, Points: points}
}
