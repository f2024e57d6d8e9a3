package handler

import (
	"encoding/json"
	"net/http"

	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type AttestHandler struct {
	svc *service.AttestationService
}

func NewAttestHandler(svc *service.AttestationService) *AttestHandler {
	return &AttestHandler{svc: svc}
}

// Attest serves POST /attest. A body with a "trades" array is attested as a
// batch for one agent.
func (h *AttestHandler) Attest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("unable to read request body"))
		return
	}
	var shape struct {
		Trades json.RawMessage `json:"trades"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid JSON body: " + err.Error()))
		return
	}

	if len(shape.Trades) > 0 {
		h.attestBatch(c, body)
		return
	}

	var req model.TradeProposal
	if err := json.Unmarshal(body, &req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid trade proposal: " + err.Error()))
		return
	}
	res, err := h.svc.Attest(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "agent_id", res.AgentID)
	middleware.AddAuditContext(c, "is_anomaly", res.IsAnomaly)
	middleware.AddAuditContext(c, "triggered_rule", res.TriggeredRule)
	middleware.AddAuditContext(c, "reputation_score", res.ReputationScore)
	c.JSON(http.StatusOK, res)
}

func (h *AttestHandler) attestBatch(c *gin.Context, body []byte) {
	var req model.BatchAttestationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid batch request: " + err.Error()))
		return
	}
	res, err := h.svc.AttestBatch(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "agent_id", res.AgentID)
	middleware.AddAuditContext(c, "is_anomaly", res.Outlier)
	middleware.AddAuditContext(c, "batch_size", len(res.Results))
	c.JSON(http.StatusOK, res)
}
