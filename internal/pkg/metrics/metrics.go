package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attestgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AnomalyRuleHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_anomaly_rule_hits_total",
		Help: "Anomaly classifications by the rule that fired",
	}, []string{"rule"})

	AttestationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_attestations_total",
		Help: "Processed attestation requests",
	}, []string{"outcome"})

	ReputationScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attestgate_reputation_score",
		Help:    "Distribution of reputation scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_llm_calls_total",
		Help: "Advisory model calls by purpose and status",
	}, []string{"purpose", "status"})

	ThresholdRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_threshold_refreshes_total",
		Help: "Threshold refresh attempts by outcome",
	}, []string{"outcome"})

	PublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_publish_total",
		Help: "Attestation publish attempts by outcome",
	}, []string{"outcome"})

	PriceFeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_price_feed_requests_total",
		Help: "Price lookups by source and status",
	}, []string{"source", "status"})

	SwapsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_swaps_stored_total",
		Help: "Swap insert attempts by status",
	}, []string{"status"})

	OversizedSuggestions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attestgate_oversized_suggestions_total",
		Help: "Trade suggestions whose notional exceeded the prompt cap",
	})

	SinkAttestations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestgate_sink_attestations_total",
		Help: "Attestations recorded by the sink by mode and status",
	}, []string{"mode", "status"})
)
