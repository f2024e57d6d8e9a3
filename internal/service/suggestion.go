package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

const (
	DefaultSuggestionAgent = "emulated_agent_1"
	DefaultHistorySymbol   = "ETH"
	DefaultMaxNotional     = 1500
)

type SuggesterOptions struct {
	AgentID       string
	HistorySymbol string
	MaxNotional   float64
}

// TradeSuggester turns a questionnaire persona and the user's trade history
// into one synthetic trade proposal.
type TradeSuggester struct {
	advisor   llm.Client
	retriever TradeRetriever
	opts      SuggesterOptions
}

func NewTradeSuggester(advisor llm.Client, retriever TradeRetriever, opts SuggesterOptions) *TradeSuggester {
	if opts.AgentID == "" {
		opts.AgentID = DefaultSuggestionAgent
	}
	if opts.HistorySymbol == "" {
		opts.HistorySymbol = DefaultHistorySymbol
	}
	if opts.MaxNotional <= 0 {
		opts.MaxNotional = DefaultMaxNotional
	}
	return &TradeSuggester{advisor: advisor, retriever: retriever, opts: opts}
}

func (s *TradeSuggester) Suggest(ctx context.Context, persona []string, priceFeed json.RawMessage) (*model.TradeProposal, error) {
	if s.advisor == nil {
		return nil, apperrors.NewUpstream("no advisory model configured", nil)
	}

	history := []model.TradeWindowEntry{}
	if s.retriever != nil {
		trades, err := s.retriever.FetchContext(ctx, s.opts.HistorySymbol)
		if err != nil {
			return nil, err
		}
		history = trades
	}

	text, err := s.advisor.Generate(ctx, suggestionPrompt(persona, history, priceFeed, s.opts.MaxNotional))
	if err != nil {
		metrics.LLMCalls.WithLabelValues("suggestion", "error").Inc()
		return nil, apperrors.NewUpstream("trade suggestion unavailable", err)
	}
	metrics.LLMCalls.WithLabelValues("suggestion", "ok").Inc()

	suggestion, err := ParseSuggestion(text)
	if err != nil {
		logger.Warn("Unparseable trade suggestion", "error", err, "response", truncate(text, 256))
		return nil, err
	}

	notional := suggestion.TradeDetails.Notional()
	if notional.GreaterThan(decimal.NewFromFloat(s.opts.MaxNotional)) {
		metrics.OversizedSuggestions.Inc()
		logger.Warn("Suggested trade exceeds notional cap",
			"asset", suggestion.TradeDetails.Asset,
			"notional", notional.String(),
			"cap", s.opts.MaxNotional)
	}

	logger.Info("Trade suggested",
		"agent_id", s.opts.AgentID,
		"asset", suggestion.TradeDetails.Asset,
		"token", suggestion.MostTradedToken,
		"protocol", suggestion.MostUsedProtocol)

	return &model.TradeProposal{
		AgentID:       s.opts.AgentID,
		TradeDetails:  suggestion.TradeDetails,
		UserReasoning: suggestion.UserReasoning,
		MarketData:    suggestion.MarketData,
	}, nil
}

// ParseSuggestion decodes the model answer as a single JSON object.
func ParseSuggestion(text string) (*model.Suggestion, error) {
	var s model.Suggestion
	dec := json.NewDecoder(strings.NewReader(llm.StripFences(text)))
	if err := dec.Decode(&s); err != nil {
		return nil, apperrors.NewParse("trade suggestion is not valid JSON", err)
	}
	if dec.More() {
		return nil, apperrors.NewParse("trade suggestion has trailing data", nil)
	}
	if strings.TrimSpace(s.TradeDetails.Asset) == "" {
		return nil, apperrors.NewParse("trade suggestion has no asset", nil)
	}
	return &s, nil
}
