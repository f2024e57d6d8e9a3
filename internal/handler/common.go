package handler

import (
	"fmt"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/gin-gonic/gin"
)

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := model.ParseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &t, nil
}
