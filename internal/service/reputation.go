package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
)

const (
	FallbackScore = 50
	MinScore      = 0
	MaxScore      = 100
)

type ReputationScorer struct {
	advisor llm.Client
}

func NewReputationScorer(advisor llm.Client) *ReputationScorer {
	return &ReputationScorer{advisor: advisor}
}

// Score asks the advisory model for a 0-100 score. Any failure yields
// FallbackScore; out-of-range answers are clamped.
func (s *ReputationScorer) Score(ctx context.Context, reasoning string, trade model.TradeDetails, history model.UserHistory, mkt model.MarketData) int {
	if s.advisor == nil {
		return FallbackScore
	}
	text, err := s.advisor.Generate(ctx, reputationPrompt(reasoning, trade, history, mkt))
	if err != nil {
		metrics.LLMCalls.WithLabelValues("reputation", "error").Inc()
		logger.Warn("Reputation advisory call failed, using fallback score", "error", err)
		return FallbackScore
	}
	metrics.LLMCalls.WithLabelValues("reputation", "ok").Inc()

	score, ok := ParseScore(text)
	if !ok {
		logger.Warn("Unparseable reputation score, using fallback", "response", truncate(text, 128))
	}
	return score
}

// ParseScore parses a base-10 integer answer and clamps it to [0,100]. ok is
// false when the text is not an integer; the fallback score is returned then.
func ParseScore(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		// Atoi saturates on overflow, so the clamp below still applies.
		if !errors.Is(err, strconv.ErrRange) {
			return FallbackScore, false
		}
	}
	return ClampScore(n), true
}

func ClampScore(n int) int {
	if n < MinScore {
		return MinScore
	}
	if n > MaxScore {
		return MaxScore
	}
	return n
}
