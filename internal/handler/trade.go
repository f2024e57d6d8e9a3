package handler

import (
	"net/http"

	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type TradeHandler struct {
	svc *service.TradeSuggester
}

func NewTradeHandler(svc *service.TradeSuggester) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// Suggest serves POST /trade.
func (h *TradeHandler) Suggest(c *gin.Context) {
	var req model.PersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid request body: " + err.Error()))
		return
	}

	proposal, err := h.svc.Suggest(c.Request.Context(), req.Body.Answers, req.Body.PriceFeed)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "asset", proposal.TradeDetails.Asset)
	middleware.AddAuditContext(c, "notional", proposal.TradeDetails.Notional().String())
	c.JSON(http.StatusOK, proposal)
}
