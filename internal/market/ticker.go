package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is the in-memory last price of one pair.
type Ticker struct {
	Pair        string
	last        decimal.Decimal
	lastUpdated time.Time
	mu          sync.RWMutex
}

func NewTicker(pair string) *Ticker {
	return &Ticker{Pair: pair}
}

// Update sets the last price. Non-positive or malformed prices are ignored.
func (t *Ticker) Update(priceStr string, at time.Time) error {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = price
	t.lastUpdated = at
	return nil
}

// Last returns the cached price and when it was received. A zero time means
// no price has arrived yet.
func (t *Ticker) Last() (decimal.Decimal, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastUpdated
}
