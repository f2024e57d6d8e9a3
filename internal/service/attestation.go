package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
)

const defaultHistoryWindow = 24 * time.Hour

type AttestationOptions struct {
	// HistoryWindow is the span used to derive trade frequency from a
	// retrieved trade window.
	HistoryWindow time.Duration
	// DeriveFrequency counts store trades within HistoryWindow as the
	// trade frequency of a proposal that carries no history. The store
	// holds every agent's trades for the token, so this is off by default.
	DeriveFrequency bool
}

// AttestationService runs the attest flow: resolve history, refresh
// thresholds, classify, score and publish.
type AttestationService struct {
	thresholds *ThresholdService
	classifier *AnomalyClassifier
	scorer     *ReputationScorer
	publisher  Publisher
	retriever  TradeRetriever
	window     time.Duration
	derive     bool
}

func NewAttestationService(
	thresholds *ThresholdService,
	classifier *AnomalyClassifier,
	scorer *ReputationScorer,
	publisher Publisher,
	retriever TradeRetriever,
	opts AttestationOptions,
) *AttestationService {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	return &AttestationService{
		thresholds: thresholds,
		classifier: classifier,
		scorer:     scorer,
		publisher:  publisher,
		retriever:  retriever,
		window:     opts.HistoryWindow,
		derive:     opts.DeriveFrequency,
	}
}

// Attest evaluates a single proposal and publishes the verdict.
func (s *AttestationService) Attest(ctx context.Context, p model.TradeProposal) (*model.AttestationResult, error) {
	if err := validateProposal(p.AgentID, p); err != nil {
		return nil, err
	}

	result := s.evaluate(ctx, p)
	result.Published = s.publish(ctx, model.AttestationPayload{
		AgentID:    result.AgentID,
		Reputation: result.ReputationScore,
		Outlier:    result.IsAnomaly,
	})
	s.record(result.IsAnomaly)
	return result, nil
}

// AttestBatch evaluates every trade for one agent and publishes a single
// verdict: the rounded mean score, outlier if any trade is anomalous.
func (s *AttestationService) AttestBatch(ctx context.Context, req model.BatchAttestationRequest) (*model.BatchAttestationResult, error) {
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		return nil, apperrors.NewInvalidRequest("agent_id is required")
	}
	if len(req.Trades) == 0 {
		return nil, apperrors.NewInvalidRequest("trades must not be empty")
	}
	for _, t := range req.Trades {
		if err := validateProposal(agentID, t); err != nil {
			return nil, err
		}
	}

	out := &model.BatchAttestationResult{
		AgentID: agentID,
		Results: make([]model.AttestationResult, 0, len(req.Trades)),
	}
	total := 0
	for _, t := range req.Trades {
		t.AgentID = agentID
		r := s.evaluate(ctx, t)
		total += r.ReputationScore
		out.Outlier = out.Outlier || r.IsAnomaly
		out.Results = append(out.Results, *r)
	}
	out.AverageScore = float64(total) / float64(len(req.Trades))

	out.Published = s.publish(ctx, model.AttestationPayload{
		AgentID:    agentID,
		Reputation: ClampScore(int(math.Round(out.AverageScore))),
		Outlier:    out.Outlier,
	})
	s.record(out.Outlier)
	return out, nil
}

// Thresholds exposes the current shared thresholds.
func (s *AttestationService) Thresholds(ctx context.Context) model.AnomalyThresholds {
	return s.thresholds.Current(ctx)
}

func (s *AttestationService) evaluate(ctx context.Context, p model.TradeProposal) *model.AttestationResult {
	history := s.resolveHistory(ctx, p)
	th := s.thresholds.Refresh(ctx, p.TradeDetails, history, p.MarketData)

	anomalous, rule := s.classifier.Classify(p.TradeDetails, history, p.MarketData, th)
	score := s.scorer.Score(ctx, string(p.UserReasoning), p.TradeDetails, history, p.MarketData)
	metrics.ReputationScores.Observe(float64(score))

	logger.Debug("Trade evaluated",
		"agent_id", p.AgentID,
		"asset", p.TradeDetails.Asset,
		"is_anomaly", anomalous,
		"rule", string(rule),
		"reputation", score)

	return &model.AttestationResult{
		AgentID:         strings.TrimSpace(p.AgentID),
		ReputationScore: score,
		IsAnomaly:       anomalous,
		TriggeredRule:   string(rule),
	}
}

// resolveHistory returns the caller's history, or the token's trade window
// from the store as context when the request carries none. Frequency stays
// unset unless derivation is enabled. Store failures degrade to an empty
// history.
func (s *AttestationService) resolveHistory(ctx context.Context, p model.TradeProposal) model.UserHistory {
	if p.UserHistory != nil {
		return *p.UserHistory
	}
	if s.retriever == nil {
		return model.UserHistory{}
	}
	trades, err := s.retriever.FetchContext(ctx, p.TradeDetails.Asset)
	if err != nil {
		logger.Warn("Trade history unavailable, attesting without it",
			"asset", p.TradeDetails.Asset, "error", err)
		return model.UserHistory{}
	}
	history := model.UserHistory{Trades: trades}
	if s.derive {
		freq := TradeFrequency(trades, s.window)
		history.TradeFrequency = &freq
	}
	return history
}

func (s *AttestationService) publish(ctx context.Context, payload model.AttestationPayload) bool {
	if s.publisher == nil {
		return false
	}
	return s.publisher.Publish(ctx, payload)
}

func (s *AttestationService) record(outlier bool) {
	outcome := "clean"
	if outlier {
		outcome = "anomalous"
	}
	metrics.AttestationsTotal.WithLabelValues(outcome).Inc()
}

// TradeFrequency counts the trades that fall within window of the most
// recent one.
func TradeFrequency(trades []model.TradeWindowEntry, window time.Duration) float64 {
	if len(trades) == 0 {
		return 0
	}
	latest := trades[0].Timestamp
	for _, t := range trades[1:] {
		if t.Timestamp.After(latest) {
			latest = t.Timestamp
		}
	}
	cutoff := latest.Add(-window)
	n := 0
	for _, t := range trades {
		if !t.Timestamp.Before(cutoff) {
			n++
		}
	}
	return float64(n)
}

func validateProposal(agentID string, p model.TradeProposal) error {
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewInvalidRequest("agent_id is required")
	}
	if strings.TrimSpace(p.TradeDetails.Asset) == "" {
		return apperrors.NewInvalidRequest("trade_details.asset is required")
	}
	if p.TradeDetails.Amount.IsNegative() {
		return apperrors.NewInvalidRequest("trade_details.amount must not be negative")
	}
	return nil
}
