package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

const DefaultRESTURL = "https://api.binance.com"

// RESTClient reads prices from the exchange's public REST API.
type RESTClient struct {
	baseURL string
	http    *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultRESTURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Price returns the last traded price of pair.
func (c *RESTClient) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(pair))

	var payload tickerPrice
	if err := c.getJSON(ctx, "/api/v3/ticker/price?"+q.Encode(), &payload); err != nil {
		metrics.PriceFeedRequests.WithLabelValues("rest", "error").Inc()
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(payload.Price)
	if err != nil || !price.IsPositive() {
		metrics.PriceFeedRequests.WithLabelValues("rest", "malformed").Inc()
		return decimal.Zero, fmt.Errorf("malformed price %q for %s", payload.Price, pair)
	}
	metrics.PriceFeedRequests.WithLabelValues("rest", "ok").Inc()
	return price, nil
}

// KlineAverage returns the mean of (open+high+low+close)/4 over the last
// limit candles of the given interval (e.g. "1d").
func (c *RESTClient) KlineAverage(ctx context.Context, pair, interval string, limit int) (decimal.Decimal, error) {
	if limit <= 0 {
		limit = 30
	}
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(pair))
	q.Set("interval", interval)
	q.Set("limit", fmt.Sprint(limit))

	var rows [][]json.RawMessage
	if err := c.getJSON(ctx, "/api/v3/klines?"+q.Encode(), &rows); err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, fmt.Errorf("no klines for %s", pair)
	}

	four := decimal.NewFromInt(4)
	sum := decimal.Zero
	for i, row := range rows {
		if len(row) < 5 {
			return decimal.Zero, fmt.Errorf("kline %d: short row", i)
		}
		candle := decimal.Zero
		// open, high, low, close are at indexes 1..4 as strings
		for _, raw := range row[1:5] {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return decimal.Zero, fmt.Errorf("kline %d: %w", i, err)
			}
			v, err := decimal.NewFromString(s)
			if err != nil {
				return decimal.Zero, fmt.Errorf("kline %d: %w", i, err)
			}
			candle = candle.Add(v)
		}
		sum = sum.Add(candle.Div(four))
	}
	return sum.Div(decimal.NewFromInt(int64(len(rows)))), nil
}

func (c *RESTClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode price feed response: %w", err)
	}
	return nil
}
