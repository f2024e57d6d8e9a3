package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/metrics"
	"github.com/GoPolymarket/attestgate/internal/repository"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
)

type StoreHandler struct {
	retriever service.TradeRetriever
	repo      service.TradeRepo
}

func NewStoreHandler(retriever service.TradeRetriever, repo service.TradeRepo) *StoreHandler {
	return &StoreHandler{retriever: retriever, repo: repo}
}

// FetchClosestTrades serves GET /fetch_closest_trades?symbol=SYM.
func (h *StoreHandler) FetchClosestTrades(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter: symbol"})
		return
	}

	entries, err := h.retriever.FetchContext(c.Request.Context(), symbol)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		abortWithError(c, err)
		return
	}

	middleware.AddAuditContext(c, "symbol", symbol)
	middleware.AddAuditContext(c, "rows", len(entries))
	c.JSON(http.StatusOK, entries)
}

// StoreSwap serves POST /store_swap.
func (h *StoreHandler) StoreSwap(c *gin.Context) {
	var req model.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SwapsStored.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body: " + err.Error()})
		return
	}
	if missing := req.MissingField(); missing != "" {
		metrics.SwapsStored.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing field: " + missing})
		return
	}

	swap := req.Transaction()
	if err := h.repo.InsertSwap(c.Request.Context(), swap); err != nil {
		metrics.SwapsStored.WithLabelValues("error").Inc()
		middleware.AddAuditContext(c, "error", err.Error())
		if errors.Is(err, repository.ErrDuplicateSwap) {
			abortWithError(c, apperrors.NewStore("swap already stored: "+swap.TransactionID, err))
			return
		}
		abortWithError(c, apperrors.NewStore(err.Error(), err))
		return
	}

	metrics.SwapsStored.WithLabelValues("ok").Inc()
	middleware.AddAuditContext(c, "transaction_id", swap.TransactionID)
	c.JSON(http.StatusCreated, gin.H{"message": "Swap details stored successfully"})
}
