package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List serves GET /admin/audit?service=&limit=&from=&to=.
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	fromPtr, err := queryTime(c, "from")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	toPtr, err := queryTime(c, "to")
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	records, err := h.svc.List(c.Request.Context(), c.Query("service"), limit, fromPtr, toPtr)
	if err != nil {
		c.Error(apperrors.NewStore(err.Error(), err))
		return
	}
	if records == nil {
		records = []*model.AuditLog{}
	}
	c.JSON(http.StatusOK, records)
}
