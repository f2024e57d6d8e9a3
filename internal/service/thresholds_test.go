package service

import (
	"context"
	"errors"
	"testing"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds("```json\n{\"trade_amount\": 5000, \"price_deviation\": 0.1, \"trade_frequency\": 4, \"volatility_threshold\": 0.3, \"note\": \"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, model.AnomalyThresholds{TradeAmount: 5000, PriceDeviation: 0.1, TradeFrequency: 4, VolatilityThreshold: 0.3}, got)

	rejected := []string{
		"",
		"not json",
		`{"trade_amount": 5000, "price_deviation": 0.1, "trade_frequency": 4}`,
		`{"trade_amount": -1, "price_deviation": 0.1, "trade_frequency": 4, "volatility_threshold": 0.3}`,
		`{"trade_amount": "5000", "price_deviation": 0.1, "trade_frequency": 4, "volatility_threshold": 0.3}`,
		`[1, 2, 3, 4]`,
		`{"trade_amount": null, "price_deviation": 0.1, "trade_frequency": 4, "volatility_threshold": 0.3}`,
		`{"trade_amount": null, "price_deviation": null, "trade_frequency": null, "volatility_threshold": null}`,
		`__import__('os').system('id')`,
	}
	for _, text := range rejected {
		_, err := ParseThresholds(text)
		assert.Error(t, err, text)
		assert.True(t, apperrors.IsType(err, apperrors.ErrParse), text)
	}
}

func TestThresholdRefreshKeepsPreviousOnFailure(t *testing.T) {
	ctx := context.Background()
	advisor := newScriptedLLM(
		`{"trade_amount": 7000, "price_deviation": 0.05, "trade_frequency": 2, "volatility_threshold": 0.4}`,
		`{"trade_amount": -5, "price_deviation": 0.05, "trade_frequency": 2, "volatility_threshold": 0.4}`,
		"!error",
	)
	svc := NewThresholdService(NewMemoryThresholdStore(), advisor, model.DefaultThresholds(), true)

	assert.Equal(t, model.DefaultThresholds(), svc.Current(ctx))

	first := svc.Refresh(ctx, model.TradeDetails{Asset: "ETH"}, model.UserHistory{}, model.MarketData{})
	assert.Equal(t, 7000.0, first.TradeAmount)
	assert.Equal(t, first, svc.Current(ctx))

	second := svc.Refresh(ctx, model.TradeDetails{Asset: "ETH"}, model.UserHistory{}, model.MarketData{})
	assert.Equal(t, first, second)

	third := svc.Refresh(ctx, model.TradeDetails{Asset: "ETH"}, model.UserHistory{}, model.MarketData{})
	assert.Equal(t, first, third)
	assert.Equal(t, first, svc.Current(ctx))

	prompts := advisor.Prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[1].User, `"trade_amount":7000`)
}

func TestThresholdRefreshStaticWhenDynamicOff(t *testing.T) {
	advisor := newScriptedLLM(`{"trade_amount": 1, "price_deviation": 1, "trade_frequency": 1, "volatility_threshold": 1}`)
	svc := NewThresholdService(nil, advisor, model.DefaultThresholds(), false)

	got := svc.Refresh(context.Background(), model.TradeDetails{}, model.UserHistory{}, model.MarketData{})
	assert.Equal(t, model.DefaultThresholds(), got)
	assert.Empty(t, advisor.Prompts())
}

func TestThresholdOverrideAndReset(t *testing.T) {
	ctx := context.Background()
	svc := NewThresholdService(nil, nil, model.DefaultThresholds(), true)

	err := svc.Override(ctx, model.AnomalyThresholds{TradeAmount: -1})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))

	custom := model.AnomalyThresholds{TradeAmount: 10, PriceDeviation: 0.01, TradeFrequency: 1, VolatilityThreshold: 0.1}
	require.NoError(t, svc.Override(ctx, custom))
	assert.Equal(t, custom, svc.Current(ctx))

	require.NoError(t, svc.Reset(ctx))
	assert.Equal(t, model.DefaultThresholds(), svc.Current(ctx))
}

type klineStub struct {
	pairs []string
	avg   decimal.Decimal
	err   error
}

func (k *klineStub) KlineAverage(ctx context.Context, pair, interval string, limit int) (decimal.Decimal, error) {
	k.pairs = append(k.pairs, pair+"/"+interval)
	return k.avg, k.err
}

func TestThresholdRefreshIncludesReferencePrice(t *testing.T) {
	reply := `{"trade_amount": 1, "price_deviation": 1, "trade_frequency": 1, "volatility_threshold": 1}`
	advisor := newScriptedLLM(reply)
	ref := &klineStub{avg: dec("2450.125")}
	svc := NewThresholdService(nil, advisor, model.DefaultThresholds(), true).WithReferencePrices(ref, "")

	svc.Refresh(context.Background(), model.TradeDetails{Asset: "eth"}, model.UserHistory{}, model.MarketData{})
	assert.Equal(t, []string{"ETHUSDC/1d"}, ref.pairs)
	assert.Contains(t, advisor.Prompts()[0].User, "7-Day Average Price: 2450.1250")

	ref.err = errors.New("no klines")
	svc.Refresh(context.Background(), model.TradeDetails{Asset: "ETH"}, model.UserHistory{}, model.MarketData{})
	assert.NotContains(t, advisor.Prompts()[1].User, "7-Day Average Price")
}
