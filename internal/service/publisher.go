package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, payload model.AttestationPayload) bool
}

// AttestationPublisher posts verdicts to the attestation sink. It never
// retries and never fails the caller; the result only says whether the sink
// accepted the payload.
type AttestationPublisher struct {
	endpoint string
	http     *http.Client
}

func NewAttestationPublisher(endpoint string, timeout time.Duration) *AttestationPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AttestationPublisher{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: timeout},
	}
}

func (p *AttestationPublisher) Publish(ctx context.Context, payload model.AttestationPayload) bool {
	if p.endpoint == "" {
		metrics.PublishTotal.WithLabelValues("disabled").Inc()
		return false
	}
	body, err := json.Marshal(payload)
	if err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to encode attestation", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to build attestation request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		metrics.PublishTotal.WithLabelValues("unreachable").Inc()
		logger.Error("Failed to attest trade", "agent_id", payload.AgentID, "error", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.PublishTotal.WithLabelValues("rejected").Inc()
		logger.Warn("Failed to attest trade",
			"agent_id", payload.AgentID,
			"status", resp.StatusCode,
			"response", strings.TrimSpace(string(respBody)))
		return false
	}

	metrics.PublishTotal.WithLabelValues("ok").Inc()
	logger.Info("Trade attested", "agent_id", payload.AgentID, "response", strings.TrimSpace(string(respBody)))
	return true
}
