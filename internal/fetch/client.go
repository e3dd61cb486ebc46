// Package fetch performs upstream page retrieval for the proxy and the
// extractor. One client is shared process-wide; every request is scoped
// to its caller's context and is never retried.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
	"github.com/gridstream/multiview/backend/internal/infrastructure/resilience"
)

// ErrTimeout reports that the upstream fetch exceeded its deadline.
var ErrTimeout = errors.New("upstream fetch timed out")

// UpstreamError reports a non-2xx upstream response.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
}

// Page holds a fetched upstream document.
type Page struct {
	Body        string // decoded to UTF-8
	Status      int
	ContentType string
	FinalURL    string // after redirects
}

// Client wraps resty with a circuit breaker and a browser-like identity.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	cfg     config.UpstreamConfig
	log     *logging.Logger
}

// NewClient creates the shared upstream client.
func NewClient(cfg config.UpstreamConfig, log *logging.Logger) *Client {
	// retryablehttp only supplies the transport; retries stay off because
	// retry policy belongs to the caller, not the proxy.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetHeader("User-Agent", cfg.UserAgent)

	breaker := resilience.New("upstream", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// Target sites vary wildly in reliability; only trip on a
			// sustained systemic failure pattern.
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	})

	return &Client{
		resty:   restyClient,
		breaker: breaker,
		cfg:     cfg,
		log:     log.Named("fetch"),
	}
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Fetch retrieves targetURL with a realistic browser header set. Non-2xx
// responses come back as *UpstreamError; deadline overruns as ErrTimeout.
func (c *Client) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid target url %q", targetURL)
	}

	var resp *resty.Response
	start := time.Now()
	err = c.breaker.Do(func() error {
		var reqErr error
		resp, reqErr = c.resty.R().
			SetContext(ctx).
			SetHeaders(browserHeaders(parsed)).
			Get(targetURL)
		return reqErr
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			c.log.Warn("upstream fetch timed out",
				zap.String("url", targetURL),
				zap.Duration("elapsed", elapsed),
			)
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, &UpstreamError{Status: status, URL: targetURL}
	}

	raw := resp.Body()
	body, contentType := DecodeBody(raw, resp.Header().Get("Content-Type"))

	finalURL := targetURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	c.log.Debug("upstream fetch completed",
		zap.String("url", targetURL),
		zap.Int("status", status),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", elapsed),
	)

	return &Page{
		Body:        body,
		Status:      status,
		ContentType: contentType,
		FinalURL:    finalURL,
	}, nil
}

// browserHeaders builds the header set target sites expect from a real
// browser. Referer is the target's own origin.
func browserHeaders(target *url.URL) map[string]string {
	origin := target.Scheme + "://" + target.Host
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Referer":                   origin + "/",
		"Upgrade-Insecure-Requests": "1",
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
