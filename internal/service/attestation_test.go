package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttestation(advisor *scriptedLLM, pub Publisher, retriever TradeRetriever, rules []string) *AttestationService {
	return newTestAttestationWith(advisor, pub, retriever, rules, AttestationOptions{HistoryWindow: 24 * time.Hour})
}

func newTestAttestationWith(advisor *scriptedLLM, pub Publisher, retriever TradeRetriever, rules []string, opts AttestationOptions) *AttestationService {
	return NewAttestationService(
		NewThresholdService(nil, advisor, model.DefaultThresholds(), false),
		NewAnomalyClassifier(rules),
		NewReputationScorer(advisor),
		pub,
		retriever,
		opts,
	)
}

func proposal(agent string, amount string) model.TradeProposal {
	return model.TradeProposal{
		AgentID:       agent,
		TradeDetails:  model.TradeDetails{Asset: "ETH", Amount: dec(amount), MarketPrice: dec("2500"), TradePrice: dec("2505")},
		UserReasoning: "rebalancing",
		UserHistory:   &model.UserHistory{TradeFrequency: floatPtr(2)},
		MarketData:    model.MarketData{Price: dec("2500"), Sentiment: "neutral", Volatility: dec("0.1")},
	}
}

func TestAttestPublishesVerdict(t *testing.T) {
	pub := &recordingPublisher{accept: true}
	svc := newTestAttestation(newScriptedLLM("91"), pub, nil, nil)

	res, err := svc.Attest(context.Background(), proposal("agent-7", "2"))
	require.NoError(t, err)
	assert.Equal(t, &model.AttestationResult{AgentID: "agent-7", ReputationScore: 91, IsAnomaly: false, Published: true}, res)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, model.AttestationPayload{AgentID: "agent-7", Reputation: 91, Outlier: false}, pub.payloads[0])
}

func TestAttestAnomalyAndFallbackScore(t *testing.T) {
	pub := &recordingPublisher{accept: false}
	svc := newTestAttestation(newScriptedLLM("not a number"), pub, nil, nil)

	res, err := svc.Attest(context.Background(), proposal("agent-7", "250000"))
	require.NoError(t, err)
	assert.True(t, res.IsAnomaly)
	assert.Equal(t, string(RuleTradeAmount), res.TriggeredRule)
	assert.Equal(t, FallbackScore, res.ReputationScore)
	assert.False(t, res.Published)
}

func TestAttestRequiresAgentAndAsset(t *testing.T) {
	svc := newTestAttestation(newScriptedLLM("50"), &recordingPublisher{}, nil, nil)

	_, err := svc.Attest(context.Background(), proposal("", "1"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))

	p := proposal("a", "1")
	p.TradeDetails.Asset = ""
	_, err = svc.Attest(context.Background(), p)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestAttestDerivesHistoryFromStore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var trades []model.TradeWindowEntry
	for i := 0; i < 12; i++ {
		trades = append(trades, model.TradeWindowEntry{Transaction: model.Transaction{
			TransactionID: string(rune('a' + i)),
			Timestamp:     now.Add(-time.Duration(i) * time.Hour),
			Token:         "ETH",
		}})
	}
	// One trade outside the 24h window.
	trades = append(trades, model.TradeWindowEntry{Transaction: model.Transaction{
		TransactionID: "old", Timestamp: now.Add(-48 * time.Hour), Token: "ETH",
	}})

	retriever := &stubRetriever{trades: trades}
	svc := newTestAttestationWith(newScriptedLLM("70"), &recordingPublisher{accept: true}, retriever, nil,
		AttestationOptions{HistoryWindow: 24 * time.Hour, DeriveFrequency: true})

	p := proposal("agent-1", "1")
	p.UserHistory = nil
	res, err := svc.Attest(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH"}, retriever.calls)
	assert.True(t, res.IsAnomaly)
	assert.Equal(t, string(RuleTradeFrequency), res.TriggeredRule)
}

func TestAttestBusyStoreDoesNotFlagCleanTrade(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryTradeRepo()
	var rows []model.Transaction
	for i := 0; i < 12; i++ {
		rows = append(rows, model.Transaction{
			TransactionID: fmt.Sprintf("t%02d", i),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Token:         "ETH",
			Amount:        100 + float64(i),
		})
	}
	require.NoError(t, repo.InsertTransactions(context.Background(), rows))
	retriever := NewLocalRetriever(repo, staticPrices{"ETHUSDC": dec("100")}, "USDC", 200, 100)

	p := proposal("agent-1", "1")
	p.UserHistory = nil
	p.TradeDetails.MarketPrice = dec("100")
	p.TradeDetails.TradePrice = dec("110")

	res, err := newTestAttestation(newScriptedLLM("70"), &recordingPublisher{accept: true}, retriever, nil).
		Attest(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.IsAnomaly)
	assert.Empty(t, res.TriggeredRule)
}

func TestAttestDegradesWhenStoreFails(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("store down")}
	svc := newTestAttestation(newScriptedLLM("70"), &recordingPublisher{accept: true}, retriever, nil)

	p := proposal("agent-1", "1")
	p.UserHistory = nil
	res, err := svc.Attest(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.IsAnomaly)
}

func TestAttestBatch(t *testing.T) {
	pub := &recordingPublisher{accept: true}
	svc := newTestAttestation(newScriptedLLM("80", "61"), pub, nil, nil)

	res, err := svc.AttestBatch(context.Background(), model.BatchAttestationRequest{
		AgentID: "agent-9",
		Trades:  []model.TradeProposal{proposal("", "1"), proposal("", "500000")},
	})
	require.NoError(t, err)
	assert.InDelta(t, 70.5, res.AverageScore, 1e-9)
	assert.True(t, res.Outlier)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "agent-9", res.Results[1].AgentID)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, model.AttestationPayload{AgentID: "agent-9", Reputation: 71, Outlier: true}, pub.payloads[0])

	_, err = svc.AttestBatch(context.Background(), model.BatchAttestationRequest{AgentID: "agent-9"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestTradeFrequency(t *testing.T) {
	assert.Equal(t, 0.0, TradeFrequency(nil, time.Hour))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.TradeWindowEntry{
		{Transaction: model.Transaction{Timestamp: base}},
		{Transaction: model.Transaction{Timestamp: base.Add(30 * time.Minute)}},
		{Transaction: model.Transaction{Timestamp: base.Add(2 * time.Hour)}},
	}
	assert.Equal(t, 2.0, TradeFrequency(trades, 90*time.Minute))
}
