package handler

import (
	"net/http"

	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type ThresholdHandler struct {
	svc *service.ThresholdService
}

func NewThresholdHandler(svc *service.ThresholdService) *ThresholdHandler {
	return &ThresholdHandler{svc: svc}
}

func (h *ThresholdHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Current(c.Request.Context()))
}

// Override replaces the shared thresholds. The body follows the same rules
// as an advisory response: all four keys, non-negative numbers.
func (h *ThresholdHandler) Override(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("unable to read request body"))
		return
	}
	th, err := service.ParseThresholds(string(body))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(apperrors.Wrap(err).Message))
		return
	}
	if err := h.svc.Override(c.Request.Context(), th); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, th)
}

func (h *ThresholdHandler) Reset(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Current(c.Request.Context()))
}
