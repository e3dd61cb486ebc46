package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/fetch"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
)

// Extractor fetches a source page and resolves it to an embed target.
// Stateless between calls; one blocking fetch per call, no retries.
type Extractor struct {
	client   *fetch.Client
	registry *Registry
	timeout  time.Duration
	log      *logging.Logger
}

// New creates an Extractor sharing the process-wide fetch client.
// timeout bounds a whole extraction, tighter than the fetch client's
// own deadline; zero disables it.
func New(client *fetch.Client, registry *Registry, timeout time.Duration, log *logging.Logger) *Extractor {
	return &Extractor{
		client:   client,
		registry: registry,
		timeout:  timeout,
		log:      log.Named("extract"),
	}
}

// Registry exposes the family registry for handlers.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract resolves sourceURL for the named family. The source hostname
// must belong to the family's allowlist; everything else fails fast
// with ErrUnsupportedSource.
func (e *Extractor) Extract(ctx context.Context, familyName, sourceURL string) (*Resolution, error) {
	family := e.registry.Lookup(familyName)
	if family == nil {
		return nil, fmt.Errorf("%w: unknown family %q", ErrUnsupportedSource, familyName)
	}
	if !family.Matches(sourceURL) {
		return nil, fmt.Errorf("%w: %s is not a %s source", ErrUnsupportedSource, sourceURL, familyName)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	page, err := e.client.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(sourceURL)
	}

	switch family.Kind {
	case FamilyServers:
		return e.resolveServers(page.Body, base, sourceURL)
	default:
		return e.resolveStream(page.Body, base, sourceURL)
	}
}

// resolveStream runs the layered heuristics in order: authoritative
// script list, iframe scan, then (only if no iframes matched) direct
// manifest scan.
func (e *Extractor) resolveStream(body string, base *url.URL, sourceURL string) (*Resolution, error) {
	if authoritative := scanAuthoritative(body, base); authoritative != nil {
		e.log.Debug("authoritative stream list found",
			zap.String("source", sourceURL),
			zap.String("target", authoritative.URL),
		)
		return &Resolution{
			URL:   authoritative.URL,
			Kind:  authoritative.Kind,
			Score: authoritative.Score,
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	candidates := e.scanIframes(doc, base)
	if len(candidates) == 0 {
		candidates = e.scanManifests(body)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidate
	}

	top := rank(candidates)[0]
	e.log.Debug("stream candidate selected",
		zap.String("source", sourceURL),
		zap.String("target", top.URL),
		zap.String("origin", top.OriginTag),
		zap.Int("score", top.Score),
		zap.Int("candidates", len(candidates)),
	)

	return &Resolution{
		URL:   top.URL,
		Kind:  top.Kind,
		Score: top.Score,
	}, nil
}

// resolveServers scans mirror-button markup. An empty server list is an
// extraction failure, not an empty success.
func (e *Extractor) resolveServers(body string, base *url.URL, sourceURL string) (*Resolution, error) {
	root, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	servers := scanServers(root, base)
	if len(servers) == 0 {
		return nil, ErrNoCandidate
	}

	e.log.Debug("server list extracted",
		zap.String("source", sourceURL),
		zap.Int("servers", len(servers)),
	)

	return &Resolution{Servers: servers}, nil
}
