package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// Health reports liveness and the breaker's view of upstream health.
func (h *Handlers) Health(c *gin.Context) {
	h.metrics.UpdateUptime()

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"upstream":       h.client.Breaker().State().String(),
	})
}
