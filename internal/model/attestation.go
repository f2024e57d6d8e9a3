package model

import "time"

// AnomalyThresholds are the numeric limits used by the anomaly rules.
type AnomalyThresholds struct {
	TradeAmount         float64 `json:"trade_amount"`
	PriceDeviation      float64 `json:"price_deviation"`
	TradeFrequency      float64 `json:"trade_frequency"`
	VolatilityThreshold float64 `json:"volatility_threshold"`
}

func DefaultThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		TradeAmount:         100000,
		PriceDeviation:      0.2,
		TradeFrequency:      10,
		VolatilityThreshold: 0.5,
	}
}

// Valid reports whether every threshold is non-negative.
func (t AnomalyThresholds) Valid() bool {
	return t.TradeAmount >= 0 && t.PriceDeviation >= 0 &&
		t.TradeFrequency >= 0 && t.VolatilityThreshold >= 0
}

type AttestationResult struct {
	AgentID         string `json:"agent_id"`
	ReputationScore int    `json:"reputation_score"`
	IsAnomaly       bool   `json:"is_anomaly"`
	TriggeredRule   string `json:"triggered_rule,omitempty"`
	Published       bool   `json:"published"`
}

type BatchAttestationRequest struct {
	AgentID string          `json:"agent_id"`
	Trades  []TradeProposal `json:"trades"`
}

type BatchAttestationResult struct {
	AgentID      string              `json:"agent_id"`
	AverageScore float64             `json:"average_score"`
	Outlier      bool                `json:"outlier"`
	Published    bool                `json:"published"`
	Results      []AttestationResult `json:"results"`
}

// AttestationPayload is what the publisher sends to the sink.
type AttestationPayload struct {
	AgentID    string `json:"agent_id"`
	Reputation int    `json:"reputation"`
	Outlier    bool   `json:"outlier"`
}

// Attestation is a record created by the sink.
type Attestation struct {
	UID         string    `json:"attestationUID"`
	Mode        string    `json:"mode"`
	AgentID     string    `json:"agent_id"`
	Reputation  uint8     `json:"reputation"`
	Outlier     bool      `json:"outlier"`
	EncodedData string    `json:"encoded_data"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Attester    string    `json:"attester"`
	Signature   string    `json:"signature,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
