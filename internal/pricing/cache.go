package pricing

import (
	"context"
	"sync"
	"time"

	"wallet-custody-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 10 * time.Second

// CachedFeed serves a feed price for ttl and falls back to a static price when the feed fails.
// Concurrent misses share one upstream request, which is not tied to any single caller's context.
type CachedFeed struct {
	feed         PriceFeed
	ttl          time.Duration
	fallback     decimal.Decimal
	fetchTimeout time.Duration

	mu        sync.RWMutex
	price     decimal.Decimal
	fetchedAt time.Time
	group     singleflight.Group

	now func() time.Time
}

func NewCachedFeed(feed PriceFeed, ttl time.Duration, fallback decimal.Decimal) *CachedFeed {
	return &CachedFeed{
		feed:         feed,
		ttl:          ttl,
		fallback:     fallback,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
}

func (c *CachedFeed) cached() (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) > c.ttl {
		return decimal.Zero, false
	}
	return c.price, true
}

// Quote returns the price and where it came from. It never fails.
func (c *CachedFeed) Quote(ctx context.Context) (decimal.Decimal, models.PriceSource) {
	if price, ok := c.cached(); ok {
		return price, models.PriceFromCache
	}

	ch := c.group.DoChan("price", func() (any, error) {
		if price, ok := c.cached(); ok {
			return price, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		price, err := c.feed.Price(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.price = price
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return price, nil
	})

	var v any
	var err error
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		zap.L().Warn("Price feed unavailable, using fallback price",
			zap.String("fallback_usd", c.fallback.String()),
			zap.Error(err))
		return c.fallback, models.PriceFromFallback
	}
	return v.(decimal.Decimal), models.PriceFromFeed
}
