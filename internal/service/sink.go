package service

import (
	"context"
	"sync"

	"github.com/GoPolymarket/attestgate/internal/eas"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
)

const defaultSinkHistory = 500

// SinkService records verdicts through an EAS attester and keeps the most
// recent ones for listing.
type SinkService struct {
	attester eas.Attester

	mu     sync.RWMutex
	recent []*model.Attestation
	max    int
}

func NewSinkService(attester eas.Attester, keep int) *SinkService {
	if keep <= 0 {
		keep = defaultSinkHistory
	}
	return &SinkService{attester: attester, max: keep}
}

func (s *SinkService) Mode() string {
	return s.attester.Mode()
}

func (s *SinkService) Create(ctx context.Context, payload model.AttestationPayload) (*model.Attestation, error) {
	if payload.Reputation < 0 || payload.Reputation > 255 {
		return nil, apperrors.NewInvalidRequest("Invalid input data")
	}
	att, err := s.attester.Attest(ctx, payload.AgentID, uint8(payload.Reputation), payload.Outlier)
	if err != nil {
		metrics.SinkAttestations.WithLabelValues(s.attester.Mode(), "error").Inc()
		logger.Error("Failed to create attestation", "agent_id", payload.AgentID, "error", err)
		return nil, apperrors.New(apperrors.ErrInternal, "Failed to create attestation", err)
	}
	metrics.SinkAttestations.WithLabelValues(att.Mode, "ok").Inc()
	logger.Info("Attestation created", "uid", att.UID, "mode", att.Mode, "agent_id", att.AgentID)

	s.mu.Lock()
	s.recent = append(s.recent, att)
	if len(s.recent) > s.max {
		s.recent = append([]*model.Attestation(nil), s.recent[len(s.recent)-s.max:]...)
	}
	s.mu.Unlock()
	return att, nil
}

// Recent returns up to limit attestations, newest first, optionally for one
// agent.
func (s *SinkService) Recent(agentID string, limit int) []*model.Attestation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > s.max {
		limit = s.max
	}
	out := make([]*model.Attestation, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		if agentID != "" && s.recent[i].AgentID != agentID {
			continue
		}
		out = append(out, s.recent[i])
	}
	return out
}
