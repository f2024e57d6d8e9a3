package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type SinkHandler struct {
	svc *service.SinkService
}

func NewSinkHandler(svc *service.SinkService) *SinkHandler {
	return &SinkHandler{svc: svc}
}

// Create serves POST /attest on the sink.
func (h *SinkHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data"})
		return
	}
	payload, ok := parseSinkPayload(body)
	if !ok {
		metrics.SinkAttestations.WithLabelValues(h.svc.Mode(), "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data"})
		return
	}

	att, err := h.svc.Create(c.Request.Context(), payload)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "uid", att.UID)
	middleware.AddAuditContext(c, "mode", att.Mode)
	c.JSON(http.StatusOK, att)
}

// List serves GET /attestations?agent_id=&limit=.
func (h *SinkHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	c.JSON(http.StatusOK, h.svc.Recent(c.Query("agent_id"), limit))
}

// parseSinkPayload requires agent_id to be a string, reputation an integer
// in [0,255] and outlier a bool. Values of other JSON types are rejected.
func parseSinkPayload(body []byte) (model.AttestationPayload, bool) {
	var raw struct {
		AgentID    json.RawMessage `json:"agent_id"`
		Reputation json.RawMessage `json:"reputation"`
		Outlier    json.RawMessage `json:"outlier"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.AttestationPayload{}, false
	}
	if isNull(raw.AgentID) || isNull(raw.Reputation) || isNull(raw.Outlier) {
		return model.AttestationPayload{}, false
	}

	var (
		agentID    string
		reputation float64
		outlier    bool
	)
	if json.Unmarshal(raw.AgentID, &agentID) != nil ||
		json.Unmarshal(raw.Reputation, &reputation) != nil ||
		json.Unmarshal(raw.Outlier, &outlier) != nil {
		return model.AttestationPayload{}, false
	}
	if reputation < 0 || reputation > 255 || reputation != math.Trunc(reputation) {
		return model.AttestationPayload{}, false
	}
	return model.AttestationPayload{AgentID: agentID, Reputation: int(reputation), Outlier: outlier}, true
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
