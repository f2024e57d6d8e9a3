package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers on every wire this service speaks.
	decimal.MarshalJSONWithoutQuotes = true
}

// TradeProposal is a candidate trade, either submitted for attestation or
// produced by the suggestion generator.
type TradeProposal struct {
	AgentID       string       `json:"agent_id,omitempty"`
	TradeDetails  TradeDetails `json:"trade_details"`
	UserReasoning Reasoning    `json:"user_reasoning"`
	UserHistory   *UserHistory `json:"user_history,omitempty"`
	MarketData    MarketData   `json:"market_data"`
}

type TradeDetails struct {
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	MarketPrice decimal.Decimal `json:"market_price"`
	TradePrice  decimal.Decimal `json:"trade_price"`
}

// Notional is amount times trade price.
func (d TradeDetails) Notional() decimal.Decimal {
	return d.Amount.Mul(d.TradePrice)
}

type MarketData struct {
	Price      decimal.Decimal `json:"price"`
	Sentiment  string          `json:"sentiment,omitempty"`
	Volatility decimal.Decimal `json:"volatility"`
}

// UserHistory is the trader's recent activity. TradeFrequency is trades per
// history window; nil means unknown and lets the service derive it.
type UserHistory struct {
	TradeFrequency *float64           `json:"trade_frequency,omitempty"`
	Trades         []TradeWindowEntry `json:"trades,omitempty"`
}

// Reasoning accepts either a plain string or an object with a "reason" key.
type Reasoning string

func (r *Reasoning) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Reasoning(s)
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if reason, ok := obj["reason"]; ok {
			var s string
			if err := json.Unmarshal(reason, &s); err == nil {
				*r = Reasoning(s)
				return nil
			}
		}
		*r = Reasoning(raw)
		return nil
	}
	return fmt.Errorf("user_reasoning must be a string or an object")
}

// PersonaRequest is the body of POST /trade. The web client nests the
// fields under "body".
type PersonaRequest struct {
	Body struct {
		Answers   Persona         `json:"answers"`
		PriceFeed json.RawMessage `json:"price_feed"`
	} `json:"body"`
}

// Persona holds questionnaire answers. The web client sends them either as
// a JSON array or as a string containing a JSON-encoded array.
type Persona []string

func (p *Persona) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = list
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("answers must be a list of strings")
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		*p = nil
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err == nil {
		*p = list
		return nil
	}
	*p = Persona{encoded}
	return nil
}

// Suggestion is the raw structured answer of the suggestion prompt.
type Suggestion struct {
	PersonaAnalysis  string       `json:"persona_analysis"`
	MostTradedToken  string       `json:"most_traded_token"`
	MostUsedProtocol string       `json:"most_used_protocol"`
	MarketData       MarketData   `json:"market_data"`
	TradeDetails     TradeDetails `json:"trade_details"`
	UserReasoning    Reasoning    `json:"user_reasoning"`
}
