package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// ThresholdStore holds the shared last-known-good thresholds.
type ThresholdStore interface {
	Load(ctx context.Context) (model.AnomalyThresholds, bool, error)
	Save(ctx context.Context, t model.AnomalyThresholds) error
	Reset(ctx context.Context) error
}

// MemoryThresholdStore is the single-process ThresholdStore.
type MemoryThresholdStore struct {
	mu  sync.RWMutex
	val model.AnomalyThresholds
	set bool
}

func NewMemoryThresholdStore() *MemoryThresholdStore {
	return &MemoryThresholdStore{}
}

func (s *MemoryThresholdStore) Load(ctx context.Context) (model.AnomalyThresholds, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.val, s.set, nil
}

func (s *MemoryThresholdStore) Save(ctx context.Context, t model.AnomalyThresholds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = t
	s.set = true
	return nil
}

func (s *MemoryThresholdStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = model.AnomalyThresholds{}
	s.set = false
	return nil
}

// ThresholdService hands each request its own threshold snapshot. When
// dynamic refresh is on, the snapshot comes from the advisory model and, if
// valid, also replaces the shared value (last write wins).
type ThresholdService struct {
	store    ThresholdStore
	advisor  llm.Client
	defaults model.AnomalyThresholds
	dynamic  bool

	reference  ReferencePrices
	quoteAsset string
}

// ReferencePrices reports the mean typical price over recent klines.
// *market.RESTClient satisfies it.
type ReferencePrices interface {
	KlineAverage(ctx context.Context, pair, interval string, limit int) (decimal.Decimal, error)
}

const (
	referenceInterval = "1d"
	referenceDays     = 7
)

func NewThresholdService(store ThresholdStore, advisor llm.Client, defaults model.AnomalyThresholds, dynamic bool) *ThresholdService {
	if store == nil {
		store = NewMemoryThresholdStore()
	}
	if !defaults.Valid() {
		defaults = model.DefaultThresholds()
	}
	return &ThresholdService{store: store, advisor: advisor, defaults: defaults, dynamic: dynamic}
}

// WithReferencePrices adds the 7-day average price of the traded asset to
// the refresh prompt.
func (s *ThresholdService) WithReferencePrices(src ReferencePrices, quoteAsset string) *ThresholdService {
	if quoteAsset == "" {
		quoteAsset = "USDC"
	}
	s.reference = src
	s.quoteAsset = quoteAsset
	return s
}

// referencePrice returns "" when no source is set or the lookup fails.
func (s *ThresholdService) referencePrice(ctx context.Context, asset string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if s.reference == nil || asset == "" {
		return ""
	}
	avg, err := s.reference.KlineAverage(ctx, asset+strings.ToUpper(s.quoteAsset), referenceInterval, referenceDays)
	if err != nil {
		logger.Debug("Reference price unavailable", "asset", asset, "error", err)
		return ""
	}
	return avg.StringFixed(4)
}

// Current returns the shared thresholds, or the defaults if none were stored
// or the store is unreachable.
func (s *ThresholdService) Current(ctx context.Context) model.AnomalyThresholds {
	t, ok, err := s.store.Load(ctx)
	if err != nil {
		logger.Warn("Threshold store unavailable, using defaults", "error", err)
		return s.defaults
	}
	if !ok || !t.Valid() {
		return s.defaults
	}
	return t
}

// Refresh returns the thresholds to classify one request with. Advisory or
// parse failures leave both the snapshot and the shared value unchanged.
func (s *ThresholdService) Refresh(ctx context.Context, trade model.TradeDetails, history model.UserHistory, mkt model.MarketData) model.AnomalyThresholds {
	current := s.Current(ctx)
	if !s.dynamic || s.advisor == nil {
		return current
	}

	text, err := s.advisor.Generate(ctx, thresholdPrompt(trade, history, mkt, current, s.referencePrice(ctx, trade.Asset)))
	if err != nil {
		metrics.LLMCalls.WithLabelValues("thresholds", "error").Inc()
		metrics.ThresholdRefreshes.WithLabelValues("upstream_error").Inc()
		logger.Warn("Threshold advisory call failed, keeping previous thresholds", "error", err)
		return current
	}
	metrics.LLMCalls.WithLabelValues("thresholds", "ok").Inc()

	next, err := ParseThresholds(text)
	if err != nil {
		metrics.ThresholdRefreshes.WithLabelValues("parse_failure").Inc()
		logger.Warn("Rejected advisory thresholds", "error", err, "response", truncate(text, 256))
		return current
	}

	if err := s.store.Save(ctx, next); err != nil {
		logger.Warn("Failed to persist thresholds", "error", err)
	}
	metrics.ThresholdRefreshes.WithLabelValues("updated").Inc()
	return next
}

// Override replaces the shared thresholds.
func (s *ThresholdService) Override(ctx context.Context, t model.AnomalyThresholds) error {
	if !t.Valid() {
		return apperrors.NewInvalidRequest("thresholds must be non-negative")
	}
	if err := s.store.Save(ctx, t); err != nil {
		return apperrors.NewStore("save thresholds", err)
	}
	return nil
}

// Reset drops the shared thresholds so the defaults apply again.
func (s *ThresholdService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return apperrors.NewStore("reset thresholds", err)
	}
	return nil
}

var thresholdKeys = []string{"trade_amount", "price_deviation", "trade_frequency", "volatility_threshold"}

// ParseThresholds decodes an advisory response. It must be a single JSON
// object carrying all four keys as non-negative numbers; anything else is a
// parse failure and nothing is applied.
func ParseThresholds(text string) (model.AnomalyThresholds, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &raw); err != nil {
		return model.AnomalyThresholds{}, apperrors.NewParse("thresholds are not a JSON object", err)
	}

	values := make(map[string]float64, len(thresholdKeys))
	for _, key := range thresholdKeys {
		field, ok := raw[key]
		if !ok {
			return model.AnomalyThresholds{}, apperrors.NewParse(fmt.Sprintf("thresholds missing %q", key), nil)
		}
		var v *float64
		if err := json.Unmarshal(field, &v); err != nil || v == nil {
			return model.AnomalyThresholds{}, apperrors.NewParse(fmt.Sprintf("threshold %q is not a number", key), err)
		}
		if *v < 0 {
			return model.AnomalyThresholds{}, apperrors.NewParse(fmt.Sprintf("threshold %q is negative", key), nil)
		}
		values[key] = *v
	}

	return model.AnomalyThresholds{
		TradeAmount:         values["trade_amount"],
		PriceDeviation:      values["price_deviation"],
		TradeFrequency:      values["trade_frequency"],
		VolatilityThreshold: values["volatility_threshold"],
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
