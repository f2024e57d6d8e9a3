package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFeed returns the latest price of a trading pair such as ETHUSDC.
type PriceFeed interface {
	Price(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Provider is a streaming ticker cache.
type Provider interface {
	Subscribe(pairs []string)
	GetTicker(pair string) *Ticker
	Start()
	Stop()
}
