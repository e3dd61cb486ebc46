package transform

import (
	"regexp"
	"strings"
)

// scriptBlockRe matches whole inline script blocks.
var scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)

// frameDetectionRe recognizes the iframe-detection idioms sites use to
// break out of embedding.
var frameDetectionRe = regexp.MustCompile(
	`(?i)(self\s*[!=]==?\s*(?:window\s*\.\s*)?top|top\s*[!=]==?\s*(?:window\s*\.\s*)?self|window\s*\.\s*top\s*[!=]==?|frameElement|top\s*\.\s*location\s*(?:=|\.replace)|parent\s*\.\s*location\s*=)`)

// scriptRemovedMarker replaces stripped scripts so document structure
// and length expectations hold for later regex steps.
const scriptRemovedMarker = "<!-- blocked frame-detection script -->"

// stripFrameDetectionScripts removes inline scripts that compare the
// window against top or touch frameElement.
func stripFrameDetectionScripts(html string, _ *Context) string {
	return scriptBlockRe.ReplaceAllStringFunc(html, func(block string) string {
		// The injected runtime spoofs the same idioms it neutralizes;
		// never strip our own bundle on a re-run.
		if strings.Contains(block, runtimeMarker) {
			return block
		}
		if frameDetectionRe.MatchString(block) {
			return scriptRemovedMarker
		}
		return block
	})
}

// bannerRe matches small DOM fragments carrying known "you cannot embed
// this page" phrasing.
var bannerRe = regexp.MustCompile(
	`(?is)<(div|h[1-6]|p)\b[^>]*>[^<]{0,300}?(cannot\s+be\s+embedded|may\s+not\s+be\s+embedded|not\s+allowed\s+to\s+embed|embedding\s+(?:is\s+)?(?:disabled|not\s+(?:allowed|supported))|watch\s+on\s+the\s+official)[^<]{0,300}?</\s*(?:div|h[1-6]|p)\s*>`)

func stripEmbedBanners(html string, _ *Context) string {
	return bannerRe.ReplaceAllString(html, "<!-- removed embed banner -->")
}

// Root-relative attribute values on resource tags. The value must start
// with a single slash; protocol-relative (//) and absolute URLs pass
// through untouched.
var (
	assetAttrDoubleRe = regexp.MustCompile(`(?i)(<(?:script|link|img)\b[^>]*?\s(?:src|href)=")(/[^/"][^"]*)"`)
	assetAttrSingleRe = regexp.MustCompile(`(?i)(<(?:script|link|img)\b[^>]*?\s(?:src|href)=')(/[^/'][^']*)'`)
	assetStringRe     = regexp.MustCompile(`"(/[^/"][^"]*\.(?:js|css|png|jpe?g|gif|svg|webp|ico|woff2?|ttf|json|mp4|webm))"`)
)

// absolutizeAssets rewrites root-relative resource URLs against the
// target origin.
func absolutizeAssets(html string, ctx *Context) string {
	origin := ctx.origin()
	if origin == "" {
		return html
	}

	html = assetAttrDoubleRe.ReplaceAllString(html, `${1}`+origin+`${2}"`)
	html = assetAttrSingleRe.ReplaceAllString(html, `${1}`+origin+`${2}'`)
	html = assetStringRe.ReplaceAllString(html, `"`+origin+`${1}"`)
	return html
}

var (
	existingBaseRe = regexp.MustCompile(`(?i)<base\b`)
	headOpenRe     = regexp.MustCompile(`(?i)<head\b[^>]*>`)
	htmlOpenRe     = regexp.MustCompile(`(?i)<html\b[^>]*>`)
)

// ensureBase inserts a <base href> pointing at the target page's
// directory. Documents that already declare a base are left alone,
// which keeps the whole pipeline idempotent.
func ensureBase(html string, ctx *Context) string {
	href := ctx.baseHref()
	if href == "" || existingBaseRe.MatchString(html) {
		return html
	}

	baseTag := `<base href="` + href + `">`
	return insertAfterOpening(html, baseTag)
}

// insertAfterOpening places fragment as the first child of <head>,
// falling back to <html>, falling back to plain prepending.
func insertAfterOpening(html, fragment string) string {
	if loc := headOpenRe.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + fragment + html[loc[1]:]
	}
	if loc := htmlOpenRe.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + fragment + html[loc[1]:]
	}
	return fragment + html
}

// injectRuntime adds the runtime mutation bundle right after the base
// insertion point. The bundle marker makes the step idempotent.
func injectRuntime(html string, ctx *Context) string {
	if strings.Contains(html, runtimeMarker) {
		return html
	}

	bundle := RuntimeBundle()
	if loc := headOpenRe.FindStringIndex(html); loc != nil {
		// Keep the bundle after an inserted <base> so relative URLs
		// inside it resolve the same way as page content.
		insertAt := loc[1]
		if baseLoc := existingBaseRe.FindStringIndex(html[insertAt:]); baseLoc != nil {
			if end := strings.Index(html[insertAt+baseLoc[0]:], ">"); end >= 0 {
				insertAt = insertAt + baseLoc[0] + end + 1
			}
		}
		return html[:insertAt] + bundle + html[insertAt:]
	}
	if loc := htmlOpenRe.FindStringIndex(html); loc != nil {
		return html[:loc[1]] + bundle + html[loc[1]:]
	}
	return html + bundle
}
