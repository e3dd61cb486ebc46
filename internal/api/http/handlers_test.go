package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstream/multiview/backend/internal/extract"
	"github.com/gridstream/multiview/backend/internal/fetch"
	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
	"github.com/gridstream/multiview/backend/internal/infrastructure/monitoring"
	"github.com/gridstream/multiview/backend/internal/share"
)

// Prometheus collectors register globally, so the whole package shares
// one instance.
var testMetrics = monitoring.NewMetrics()

func newTestRouter(t *testing.T, timeout time.Duration, familyHosts ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewNop()
	client := fetch.NewClient(config.UpstreamConfig{
		Timeout:      timeout,
		MaxRedirects: 5,
		UserAgent:    "test-agent",
	}, log)

	registry := extract.NewRegistry()
	if len(familyHosts) > 0 {
		registry.ApplyOverrides(&config.FamilyOverrides{
			Families: []config.FamilyOverride{
				{Name: "stream", Hosts: familyHosts},
				{Name: "servers", Hosts: familyHosts},
			},
		})
	}
	extractor := extract.New(client, registry, 0, log)

	shares, err := share.NewStore(config.ShareConfig{
		Dir:           t.TempDir(),
		MaxAge:        time.Hour,
		MaxInactive:   time.Hour,
		SweepInterval: time.Hour,
	}, log, nil)
	require.NoError(t, err)

	handlers := NewHandlers(client, extractor, shares, testMetrics, log)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.GET("/proxy", handlers.Proxy)
	router.OPTIONS("/proxy", handlers.ProxyPreflight)
	router.GET("/extract/:family", handlers.Extract)
	router.POST("/share", handlers.CreateShare)
	router.GET("/share/:id", handlers.GetShare)
	return router
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func hostOf(t *testing.T, upstream *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	return u.Hostname()
}

func TestProxyEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		fmt.Fprint(w, `<html><head><title>Match</title></head><body><p>stream page</p></body></html>`)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second)
	rec := doRequest(router, "GET", "/proxy?url="+url.QueryEscape(upstream.URL+"/page"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Equal(t, 1, strings.Count(body, "<base href="), "exactly one base tag")
	assert.Contains(t, body, `<base href="`+upstream.URL+`/">`)
	assert.Contains(t, body, "data-multiview-runtime")
	assert.Contains(t, body, "stream page")

	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "frame-ancestors *")
	assert.Contains(t, csp, "object-src 'none'")
	assert.NotContains(t, csp, "frame-ancestors 'none'")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestProxyMissingURL(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "GET", "/proxy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestProxyInvalidURL(t *testing.T) {
	router := newTestRouter(t, time.Second)

	for _, raw := range []string{"not-a-url", "/relative/path", "://bad"} {
		rec := doRequest(router, "GET", "/proxy?url="+url.QueryEscape(raw), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}

func TestProxyUpstreamForbidden(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second)
	rec := doRequest(router, "GET", "/proxy?url="+url.QueryEscape(upstream.URL), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
	assert.Contains(t, resp["details"], "blocking")
}

func TestProxyTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 50*time.Millisecond)
	rec := doRequest(router, "GET", "/proxy?url="+url.QueryEscape(upstream.URL), "")

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
}

func TestProxyPreflight(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "OPTIONS", "/proxy", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestProxyNonHTMLPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"streams":[]}`)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second)
	rec := doRequest(router, "GET", "/proxy?url="+url.QueryEscape(upstream.URL), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"streams":[]}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "<base")
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestExtractStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<iframe src="/embed/player1" allowfullscreen width="100%" height="100%"></iframe>
		</body></html>`)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second, hostOf(t, upstream))
	rec := doRequest(router, "GET", "/extract/stream?url="+url.QueryEscape(upstream.URL+"/watch"), "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, upstream.URL+"/embed/player1", resp["embedUrl"])
	assert.Equal(t, "iframe", resp["streamType"])
}

func TestExtractServers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<button class="server-option" data-url="/stream/alpha">Alpha</button>
			<button class="server-option active" data-url="/stream/beta">Beta</button>
		</body></html>`)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second, hostOf(t, upstream))
	rec := doRequest(router, "GET", "/extract/servers?url="+url.QueryEscape(upstream.URL+"/event"), "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success           bool                   `json:"success"`
		Servers           []extract.ServerOption `json:"servers"`
		DefaultServerURL  string                 `json:"defaultServerUrl"`
		DefaultServerName string                 `json:"defaultServerName"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Servers, 2)
	assert.Equal(t, upstream.URL+"/stream/beta", resp.DefaultServerURL)
	assert.Equal(t, "Beta", resp.DefaultServerName)
}

func TestExtractUnknownFamily(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "GET", "/extract/nonsense?url=https%3A%2F%2Fexample.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractMissingURL(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "GET", "/extract/stream", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractWrongHost(t *testing.T) {
	router := newTestRouter(t, time.Second, "allowed.example.com")

	rec := doRequest(router, "GET", "/extract/stream?url="+url.QueryEscape("https://other.example.com/watch"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractNoCandidate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing to play here</p></body></html>`)
	}))
	defer upstream.Close()

	router := newTestRouter(t, 5*time.Second, hostOf(t, upstream))
	rec := doRequest(router, "GET", "/extract/stream?url="+url.QueryEscape(upstream.URL+"/watch"), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestShareRoundTrip(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "POST", "/share", `{"layout":"2x2","slots":[{"url":"https://example.com/a"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.Len(t, created.ID, 8)

	rec = doRequest(router, "GET", "/share/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var loaded struct {
		Success bool                   `json:"success"`
		State   map[string]interface{} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.True(t, loaded.Success)
	assert.Equal(t, "2x2", loaded.State["layout"])
}

func TestShareRejectsEmptyAndMalformed(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "POST", "/share", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/share", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareNotFound(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "GET", "/share/deadbeef", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, time.Second)

	rec := doRequest(router, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "closed", resp["upstream"])
}
