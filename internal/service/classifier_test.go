package service

import (
	"testing"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	th := model.DefaultThresholds()
	normal := model.TradeDetails{Asset: "ETH", Amount: dec("1"), MarketPrice: dec("2500"), TradePrice: dec("2510")}
	calm := model.MarketData{Price: dec("2500"), Volatility: dec("0.1")}

	tests := []struct {
		name    string
		trade   model.TradeDetails
		history model.UserHistory
		market  model.MarketData
		want    bool
		rule    Rule
	}{
		{name: "clean", trade: normal, market: calm},
		{
			name:   "oversized amount",
			trade:  model.TradeDetails{Asset: "ETH", Amount: dec("100001"), MarketPrice: dec("2500"), TradePrice: dec("2500")},
			market: calm, want: true, rule: RuleTradeAmount,
		},
		{
			name:   "amount at limit is allowed",
			trade:  model.TradeDetails{Asset: "ETH", Amount: dec("100000"), MarketPrice: dec("2500"), TradePrice: dec("2500")},
			market: calm,
		},
		{
			name:   "price deviation",
			trade:  model.TradeDetails{Asset: "ETH", Amount: dec("1"), MarketPrice: dec("100"), TradePrice: dec("125")},
			market: calm, want: true, rule: RulePriceDeviation,
		},
		{
			name:   "zero market price skips deviation",
			trade:  model.TradeDetails{Asset: "ETH", Amount: dec("1"), MarketPrice: dec("0"), TradePrice: dec("125")},
			market: calm,
		},
		{
			name:    "frequency",
			trade:   normal,
			history: model.UserHistory{TradeFrequency: floatPtr(11)},
			market:  calm, want: true, rule: RuleTradeFrequency,
		},
		{
			name:   "volatility",
			trade:  normal,
			market: model.MarketData{Price: dec("2500"), Volatility: dec("0.51")},
			want:   true, rule: RuleVolatility,
		},
		{
			name:    "first rule wins",
			trade:   model.TradeDetails{Asset: "ETH", Amount: dec("200000"), MarketPrice: dec("100"), TradePrice: dec("300")},
			history: model.UserHistory{TradeFrequency: floatPtr(50)},
			market:  model.MarketData{Volatility: dec("0.9")},
			want:    true, rule: RuleTradeAmount,
		},
	}

	c := NewAnomalyClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := c.Classify(tt.trade, tt.history, tt.market, th)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestClassifyWithFrequencyRuleDisabled(t *testing.T) {
	c := NewAnomalyClassifier([]string{"trade_amount", "price_deviation", "volatility"})
	assert.False(t, c.Enabled(RuleTradeFrequency))

	trade := model.TradeDetails{Asset: "ETH", Amount: dec("1"), MarketPrice: dec("2500"), TradePrice: dec("2500")}
	got, rule := c.Classify(trade, model.UserHistory{TradeFrequency: floatPtr(1000)}, model.MarketData{}, model.DefaultThresholds())
	assert.False(t, got)
	assert.Empty(t, rule)
}

func TestClassifyOrderIgnoresConfigOrder(t *testing.T) {
	c := NewAnomalyClassifier([]string{"volatility", "trade_amount"})
	trade := model.TradeDetails{Asset: "ETH", Amount: dec("500000")}
	_, rule := c.Classify(trade, model.UserHistory{}, model.MarketData{Volatility: dec("0.9")}, model.DefaultThresholds())
	assert.Equal(t, RuleTradeAmount, rule)
}
