package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/fetch"
	"github.com/gridstream/multiview/backend/internal/transform"
)

// permissiveCSP replaces the upstream policy so the mutated page can run
// inside a frame and load its assets cross-origin. Plugin objects stay
// disallowed.
const permissiveCSP = "default-src * 'unsafe-inline' 'unsafe-eval' data: blob:; " +
	"script-src * 'unsafe-inline' 'unsafe-eval'; " +
	"style-src * 'unsafe-inline'; " +
	"img-src * data: blob:; " +
	"media-src * data: blob:; " +
	"frame-src *; " +
	"connect-src *; " +
	"worker-src * blob:; " +
	"frame-ancestors *; " +
	"object-src 'none'"

// Proxy fetches the target page, strips its anti-embedding defenses and
// returns the mutated body under frame-friendly headers.
func (h *Handlers) Proxy(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing 'url' query parameter",
		})
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() || target.Hostname() == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Parameter 'url' must be an absolute http(s) URL",
		})
		return
	}

	start := time.Now()
	page, err := h.client.Fetch(c.Request.Context(), rawURL)
	if err != nil {
		h.proxyError(c, rawURL, err)
		return
	}
	h.metrics.RecordUpstream("ok", time.Since(start))

	body := page.Body
	if isHTML(page.ContentType) {
		base, parseErr := url.Parse(page.FinalURL)
		if parseErr != nil {
			base = target
		}
		body = transform.Transform(body, base)
		h.metrics.TransformBytes.Observe(float64(len(body)))
	}

	setEmbedHeaders(c)
	contentType := page.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(body))
}

// ProxyPreflight answers CORS preflight for the proxy endpoint.
func (h *Handlers) ProxyPreflight(c *gin.Context) {
	setEmbedHeaders(c)
	c.Status(http.StatusOK)
}

func (h *Handlers) proxyError(c *gin.Context, rawURL string, err error) {
	switch {
	case errors.Is(err, fetch.ErrTimeout):
		h.metrics.RecordUpstream("timeout", 0)
		c.JSON(http.StatusRequestTimeout, gin.H{
			"error": "Upstream site did not respond in time",
		})
	default:
		var upstream *fetch.UpstreamError
		if errors.As(err, &upstream) {
			h.metrics.RecordUpstream("upstream_error", 0)
			resp := gin.H{
				"error": "Upstream site returned an error",
			}
			if upstream.Status == http.StatusForbidden {
				resp["details"] = "The site refused the request; it may be blocking server IP ranges"
			}
			c.JSON(upstream.Status, resp)
			return
		}

		h.log.Error("proxy fetch failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		h.metrics.RecordUpstream("error", 0)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch upstream site",
			"details": err.Error(),
		})
	}
}

// setEmbedHeaders applies the frame-friendly header set. Upstream
// X-Frame-Options and CSP never reach the response; the synthesized
// policy takes their place.
func setEmbedHeaders(c *gin.Context) {
	header := c.Writer.Header()
	header.Del("X-Frame-Options")
	header.Del("X-Content-Security-Policy")
	header.Set("Content-Security-Policy", permissiveCSP)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type, Range")
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(contentType, "text/html") ||
		strings.HasPrefix(contentType, "application/xhtml")
}
