package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/logger"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	pinger  Pinger
	timeout time.Duration
	logger  *logger.Logger
}

// NewHealth builds the health handler. A nil pinger always reports up.
func NewHealth(pinger Pinger, timeout time.Duration, logger *logger.Logger) *Health {
	return &Health{pinger: pinger, timeout: timeout, logger: logger}
}

func (h *Health) Check(c *gin.Context) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("Health check: database unreachable",
				"error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "up"})
}
