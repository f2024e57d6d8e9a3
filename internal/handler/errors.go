package handler

import (
	"github.com/GoPolymarket/attestgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// abortWithError writes the plain {"error": "..."} shape used by the store
// and sink endpoints, whose clients predate the structured error body.
func abortWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	if appErr.HTTPStatus >= 500 {
		logger.LogError(c.Request.Context(), appErr, "Request failed", "path", c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
}
