package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/market"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
)

const (
	DefaultWindowRadius = 200
	DefaultWindowLimit  = 100
)

// TradeRetriever returns the time-ordered trades around the transaction
// whose amount is nearest to the current price of symbol.
type TradeRetriever interface {
	FetchContext(ctx context.Context, symbol string) ([]model.TradeWindowEntry, error)
}

type TradeRepo interface {
	ClosestTrades(ctx context.Context, token string, price float64, radius, limit int) ([]model.TradeWindowEntry, error)
	InsertSwap(ctx context.Context, swap model.Transaction) error
}

// LocalRetriever queries the trade repository directly.
type LocalRetriever struct {
	repo       TradeRepo
	prices     market.PriceFeed
	quoteAsset string
	radius     int
	limit      int
}

func NewLocalRetriever(repo TradeRepo, prices market.PriceFeed, quoteAsset string, radius, limit int) *LocalRetriever {
	if quoteAsset == "" {
		quoteAsset = "USDC"
	}
	if radius < 0 {
		radius = DefaultWindowRadius
	}
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	return &LocalRetriever{repo: repo, prices: prices, quoteAsset: quoteAsset, radius: radius, limit: limit}
}

func (r *LocalRetriever) FetchContext(ctx context.Context, symbol string) ([]model.TradeWindowEntry, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, apperrors.NewInvalidRequest("symbol is required")
	}

	price, err := r.prices.Price(ctx, strings.ToUpper(symbol)+r.quoteAsset)
	if err != nil {
		return nil, apperrors.NewUpstream("price feed unavailable", err)
	}

	entries, err := r.repo.ClosestTrades(ctx, symbol, price.InexactFloat64(), r.radius, r.limit)
	if err != nil {
		return nil, apperrors.NewStore(err.Error(), err)
	}
	if entries == nil {
		entries = []model.TradeWindowEntry{}
	}
	return entries, nil
}

// RemoteRetriever calls a trade store over HTTP.
type RemoteRetriever struct {
	baseURL string
	http    *http.Client
}

func NewRemoteRetriever(baseURL string, timeout time.Duration) *RemoteRetriever {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteRetriever{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (r *RemoteRetriever) FetchContext(ctx context.Context, symbol string) ([]model.TradeWindowEntry, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/fetch_closest_trades?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "build trade store request", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstream("trade store unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.NewUpstream("read trade store response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstream(
			fmt.Sprintf("trade store returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	entries := []model.TradeWindowEntry{}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, apperrors.NewParse("decode trade store response", err)
	}
	return entries, nil
}
