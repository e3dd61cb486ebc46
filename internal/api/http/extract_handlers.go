package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/extract"
	"github.com/gridstream/multiview/backend/internal/fetch"
)

// Extract resolves a source page into a playable embed target.
// Stream families answer with a single ranked URL; server families
// answer with the mirrored option list.
func (h *Handlers) Extract(c *gin.Context) {
	family := c.Param("family")
	sourceURL := c.Query("url")
	if sourceURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Missing 'url' query parameter",
		})
		return
	}

	start := time.Now()
	resolution, err := h.extractor.Extract(c.Request.Context(), family, sourceURL)
	if err != nil {
		h.extractError(c, family, sourceURL, err)
		return
	}

	h.metrics.RecordExtraction(family, "ok")
	h.metrics.ExtractionScore.Observe(float64(resolution.Score))
	h.log.Info("extraction resolved",
		zap.String("family", family),
		zap.String("url", sourceURL),
		zap.String("embed_url", resolution.URL),
		zap.Duration("duration", time.Since(start)),
	)

	if len(resolution.Servers) > 0 {
		def := resolution.DefaultServer()
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"servers":           resolution.Servers,
			"defaultServerUrl":  def.URL,
			"defaultServerName": def.Name,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"embedUrl":   resolution.URL,
		"streamType": resolution.Kind.String(),
	})
}

func (h *Handlers) extractError(c *gin.Context, family, sourceURL string, err error) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedSource):
		h.metrics.RecordExtraction(family, "unsupported")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "URL does not belong to the requested extraction family",
		})
	case errors.Is(err, extract.ErrNoCandidate):
		h.metrics.RecordExtraction(family, "no_candidate")
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "No playable stream found on the source page",
		})
	case errors.Is(err, fetch.ErrTimeout):
		h.metrics.RecordExtraction(family, "timeout")
		c.JSON(http.StatusRequestTimeout, gin.H{
			"success": false,
			"error":   "Source site did not respond in time",
		})
	default:
		var upstream *fetch.UpstreamError
		if errors.As(err, &upstream) {
			h.metrics.RecordExtraction(family, "upstream_error")
			c.JSON(upstream.Status, gin.H{
				"success": false,
				"error":   "Source site returned an error",
			})
			return
		}

		h.log.Error("extraction failed",
			zap.String("family", family),
			zap.String("url", sourceURL),
			zap.Error(err),
		)
		h.metrics.RecordExtraction(family, "error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Extraction failed",
		})
	}
}
