package market

import (
	"context"
	"time"

	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// CachedFeed serves prices from the stream cache while they are fresh and
// falls back to REST otherwise.
type CachedFeed struct {
	stream     Provider
	rest       PriceFeed
	staleAfter time.Duration
	now        func() time.Time
}

func NewCachedFeed(stream Provider, rest PriceFeed, staleAfter time.Duration) *CachedFeed {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	return &CachedFeed{stream: stream, rest: rest, staleAfter: staleAfter, now: time.Now}
}

func (f *CachedFeed) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	if f.stream != nil {
		if t := f.stream.GetTicker(pair); t != nil {
			price, at := t.Last()
			if !at.IsZero() && f.now().Sub(at) <= f.staleAfter {
				metrics.PriceFeedRequests.WithLabelValues("stream", "ok").Inc()
				return price, nil
			}
			metrics.PriceFeedRequests.WithLabelValues("stream", "stale").Inc()
		}
	}
	return f.rest.Price(ctx, pair)
}
