package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
)

func testClient(timeout time.Duration) *Client {
	cfg := config.Default().Upstream
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewClient(cfg, logging.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer upstream.Close()

	page, err := testClient(0).Fetch(context.Background(), upstream.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.Status)
	assert.Contains(t, page.Body, "hello")
	assert.Contains(t, page.ContentType, "text/html")

	// Browser-like identity headers
	assert.Contains(t, gotHeaders.Get("User-Agent"), "Mozilla/5.0")
	assert.Contains(t, gotHeaders.Get("Accept"), "text/html")
	assert.Contains(t, gotHeaders.Get("Referer"), "http://")
	assert.Equal(t, "no-cache", gotHeaders.Get("Cache-Control"))
}

func TestFetchNon2xxReturnsUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	_, err := testClient(0).Fetch(context.Background(), upstream.URL)
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusForbidden, upstreamErr.Status)
}

func TestFetchTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer upstream.Close()

	start := time.Now()
	_, err := testClient(100 * time.Millisecond).Fetch(context.Background(), upstream.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchContextCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := testClient(0).Fetch(ctx, upstream.URL)
	require.Error(t, err)
}

func TestFetchInvalidURL(t *testing.T) {
	c := testClient(0)

	_, err := c.Fetch(context.Background(), "not a url")
	assert.Error(t, err)

	_, err = c.Fetch(context.Background(), "/relative/only")
	assert.Error(t, err)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})

	page, err := testClient(0).Fetch(context.Background(), upstream.URL+"/start")
	require.NoError(t, err)
	assert.Contains(t, page.Body, "landed")
	assert.Contains(t, page.FinalURL, "/final")
}

func TestDecodeBody(t *testing.T) {
	t.Run("utf8 passthrough", func(t *testing.T) {
		body, contentType := DecodeBody([]byte("héllo"), "text/html; charset=utf-8")
		assert.Equal(t, "héllo", body)
		assert.Equal(t, "text/html; charset=utf-8", contentType)
	})

	t.Run("declared latin-1", func(t *testing.T) {
		// "café" in ISO-8859-1
		raw := []byte{'c', 'a', 'f', 0xe9}
		body, contentType := DecodeBody(raw, "text/html; charset=iso-8859-1")
		assert.Equal(t, "café", body)
		// Transcoded bytes must not keep the original declaration.
		assert.NotContains(t, contentType, "iso-8859-1")
		assert.Contains(t, contentType, "charset=utf-8")
	})

	t.Run("missing content type is detected", func(t *testing.T) {
		_, contentType := DecodeBody([]byte("<html><body>x</body></html>"), "")
		assert.Contains(t, contentType, "text/html")
	})
}

func TestFetchRelabelsTranscodedBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer upstream.Close()

	page, err := testClient(0).Fetch(context.Background(), upstream.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", page.Body)
	assert.Contains(t, page.ContentType, "charset=utf-8")
	assert.NotContains(t, page.ContentType, "iso-8859-1")
}
