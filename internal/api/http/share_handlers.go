package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/share"
)

// CreateShare persists a grid layout and returns its short id.
func (h *Handlers) CreateShare(c *gin.Context) {
	var state map[string]interface{}
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	if len(state) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Share state must not be empty",
		})
		return
	}

	id, err := h.shares.Create(state)
	if err != nil {
		h.log.Error("share create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to store share",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
	})
}

// GetShare loads a stored grid layout by id. Reads refresh the entry's
// inactivity clock.
func (h *Handlers) GetShare(c *gin.Context) {
	id := c.Param("id")

	state, err := h.shares.Get(id)
	if err != nil {
		if errors.Is(err, share.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Share not found or expired",
			})
			return
		}
		h.log.Error("share get failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load share",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   state,
	})
}
