package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/model"
)

const expertSystemPrompt = "You are a helpful assistant. You are a crypto trading expert"

func asJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func thresholdPrompt(trade model.TradeDetails, history model.UserHistory, mkt model.MarketData, current model.AnomalyThresholds, referencePrice string) llm.Prompt {
	extra := ""
	if referencePrice != "" {
		extra = "\n- 7-Day Average Price: " + referencePrice
	}
	user := fmt.Sprintf(`You are a crypto trading expert. Based on the following details, set thresholds for detecting anomalies in trades:

- Trade Details: %s
- User History: %s
- Market Data: %s
- Current Thresholds: %s%s

Provide the thresholds as a JSON object with the following keys:
- "trade_amount": Maximum trade amount before it is considered an anomaly.
- "price_deviation": Maximum allowed price deviation (as a fraction, e.g., 0.2 for 20%%) from the market price.
- "trade_frequency": Maximum number of trades allowed in a day before it is considered an anomaly.
- "volatility_threshold": Maximum asset volatility (as a fraction, e.g., 0.5 for 50%%) before it is considered an anomaly.

All values must be non-negative numbers. Respond with only the JSON object in a single line without backticks.`,
		asJSON(trade), asJSON(history), asJSON(mkt), asJSON(current), extra)
	return llm.Prompt{System: expertSystemPrompt, User: user}
}

func reputationPrompt(reasoning string, trade model.TradeDetails, history model.UserHistory, mkt model.MarketData) llm.Prompt {
	user := fmt.Sprintf(`You are a crypto trading expert. A user has made a trade, and you need to evaluate their reputation score (0-100) based on the following details. GIVE EMPHASIS TO THE TRADE DETAILS:

- Trade Details: %s
- User Reasoning: %s
- User History: %s
- Market Data: %s

Consider the following:
- Is the trade logical based on the user's reasoning and market conditions?
- Does the trade align with the user's historical trading patterns?
- Is the trade risky based on market volatility or price deviation?
- Provide a reputation score between 0 and 100, where 100 is excellent and 0 is very poor.

Respond with only the reputation score as an integer.`,
		asJSON(trade), reasoning, asJSON(history), asJSON(mkt))
	return llm.Prompt{System: expertSystemPrompt, User: user}
}

func suggestionPrompt(persona []string, history []model.TradeWindowEntry, priceFeed json.RawMessage, maxNotional float64) llm.Prompt {
	feed := strings.TrimSpace(string(priceFeed))
	if feed == "" {
		feed = "{}"
	}
	user := fmt.Sprintf(`You are a trading expert. Analyze the following user's persona and past trading history,
then generate a trade suggestion based on the analysis and current market data.

User Persona:
%s

Past Trades:
%s

Current Price Feed:
%s

Instructions:
1. Infer the user's trading persona, including their risk tolerance, preferred trading style, and decision-making approach.
2. Identify the most traded token and protocol from the user's past trades.
3. Estimate current market data for the most traded token, including price, sentiment, and volatility (as a fraction between 0 and 1).
4. Generate trade details, including the asset, amount, market price, and trade price (slightly deviated from market price).
5. Provide reasoning for why the user would make this trade based on their persona, past trades, and market data.

THE PERSONA OF THE USER SHOULD BE THE UTMOST IMPORTANT FACTOR IN DETERMINING THE TRADE SUGGESTION. DO NOT GIVE VERY HIGH TRADES LIKE GREATER THAN %s USD.
Return the results in the following JSON FORMAT WITHOUT BACKTICKS IN A SINGLE LINE:
{"persona_analysis": "string", "most_traded_token": "string", "most_used_protocol": "string", "market_data": {"price": float, "sentiment": "string", "volatility": float}, "trade_details": {"asset": "string", "amount": float, "market_price": float, "trade_price": float}, "user_reasoning": "string"}`,
		asJSON(persona), asJSON(history), feed, formatAmount(maxNotional))
	return llm.Prompt{User: user}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
