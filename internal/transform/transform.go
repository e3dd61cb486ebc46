// Package transform mutates fetched HTML so anti-embedding pages render
// inside an iframe. The pipeline is a fixed sequence of pure
// (html, context) -> html steps; later steps assume earlier ones ran.
// Transformation is total: for any input it returns a usable document,
// in the worst case the input itself plus the injected runtime block.
package transform

import (
	"net/url"
	"strings"
)

// Context carries the per-document inputs the steps need.
type Context struct {
	// Target is the proxied page's own URL; rewriting resolves against
	// its origin and the base step points at its directory.
	Target *url.URL
}

// Step is one pure transformation applied to the whole document.
type Step func(html string, ctx *Context) string

// pipeline lists the steps in their required order.
var pipeline = []Step{
	stripFrameDetectionScripts,
	stripEmbedBanners,
	absolutizeAssets,
	ensureBase,
	injectRuntime,
}

// Transform runs the full pipeline. A panicking step degrades to the
// unmodified input with the runtime block appended.
func Transform(html string, target *url.URL) (out string) {
	ctx := &Context{Target: target}

	defer func() {
		if r := recover(); r != nil {
			out = injectRuntime(html, ctx)
		}
	}()

	out = html
	for _, step := range pipeline {
		out = step(out, ctx)
	}
	return out
}

// origin returns scheme://host for the target, or "" without a target.
func (c *Context) origin() string {
	if c.Target == nil || c.Target.Host == "" {
		return ""
	}
	return c.Target.Scheme + "://" + c.Target.Host
}

// baseHref returns the target page's directory URL, trailing-slash
// normalized, with query and fragment stripped.
func (c *Context) baseHref() string {
	if c.Target == nil || c.Target.Host == "" {
		return ""
	}
	dir := c.Target.Path
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i+1]
	} else {
		dir = "/"
	}
	if dir == "" {
		dir = "/"
	}
	return c.origin() + dir
}
