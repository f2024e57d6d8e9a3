package service

import (
	"strings"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

type Rule string

const (
	RuleTradeAmount    Rule = "trade_amount"
	RulePriceDeviation Rule = "price_deviation"
	RuleTradeFrequency Rule = "trade_frequency"
	RuleVolatility     Rule = "volatility"
)

// ruleOrder is the evaluation order. It does not depend on configuration.
var ruleOrder = []Rule{RuleTradeAmount, RulePriceDeviation, RuleTradeFrequency, RuleVolatility}

// AnomalyClassifier flags a trade when any enabled rule fires. Rules are
// evaluated in a fixed order and evaluation stops at the first hit.
type AnomalyClassifier struct {
	enabled map[Rule]bool
}

// NewAnomalyClassifier enables the named rules. An empty list enables all.
func NewAnomalyClassifier(rules []string) *AnomalyClassifier {
	enabled := make(map[Rule]bool, len(ruleOrder))
	for _, r := range rules {
		if r = strings.TrimSpace(r); r != "" {
			enabled[Rule(r)] = true
		}
	}
	if len(enabled) == 0 {
		for _, r := range ruleOrder {
			enabled[r] = true
		}
	}
	return &AnomalyClassifier{enabled: enabled}
}

func (c *AnomalyClassifier) Enabled(r Rule) bool {
	return c.enabled[r]
}

// Classify returns whether the trade is anomalous and which rule fired.
func (c *AnomalyClassifier) Classify(trade model.TradeDetails, history model.UserHistory, mkt model.MarketData, th model.AnomalyThresholds) (bool, Rule) {
	for _, rule := range ruleOrder {
		if !c.enabled[rule] {
			continue
		}
		if c.fires(rule, trade, history, mkt, th) {
			metrics.AnomalyRuleHits.WithLabelValues(string(rule)).Inc()
			return true, rule
		}
	}
	return false, ""
}

func (c *AnomalyClassifier) fires(rule Rule, trade model.TradeDetails, history model.UserHistory, mkt model.MarketData, th model.AnomalyThresholds) bool {
	switch rule {
	case RuleTradeAmount:
		return trade.Amount.GreaterThan(decimal.NewFromFloat(th.TradeAmount))
	case RulePriceDeviation:
		// Skipped when the market price is unknown.
		if !trade.MarketPrice.IsPositive() {
			return false
		}
		deviation := trade.TradePrice.Sub(trade.MarketPrice).Abs().Div(trade.MarketPrice)
		return deviation.GreaterThan(decimal.NewFromFloat(th.PriceDeviation))
	case RuleTradeFrequency:
		if history.TradeFrequency == nil {
			return false
		}
		return *history.TradeFrequency > th.TradeFrequency
	case RuleVolatility:
		return mkt.Volatility.GreaterThan(decimal.NewFromFloat(th.VolatilityThreshold))
	default:
		return false
	}
}
