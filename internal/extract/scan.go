package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// manifestRe finds absolute HLS manifest URLs in raw markup.
var manifestRe = regexp.MustCompile(`https?://[^\s"'<>\\]+\.m3u8[^\s"'<>\\]*`)

// scanIframes collects iframe src/data-src candidates from the page,
// resolves them against base, filters the blocklist, and scores each.
func (e *Extractor) scanIframes(doc *goquery.Document, base *url.URL) []Candidate {
	var candidates []Candidate

	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, ok = sel.Attr("data-src")
		}
		if !ok || strings.TrimSpace(src) == "" {
			return
		}

		resolved := absolutize(src, base)
		if resolved == "" {
			return
		}
		if e.registry.Blocked(resolved) {
			return
		}

		fragment, err := goquery.OuterHtml(sel)
		if err != nil {
			fragment = ""
		}

		candidates = append(candidates, Candidate{
			URL:       resolved,
			Kind:      kindForURL(resolved),
			Score:     Score(fragment, resolved, e.registry.providerHosts),
			OriginTag: "iframe",
		})
	})

	return candidates
}

// scanManifests finds direct HLS manifest URLs. Only consulted when the
// iframe scan came up empty; every hit gets a flat low score.
func (e *Extractor) scanManifests(html string) []Candidate {
	seen := make(map[string]bool)
	var candidates []Candidate

	for _, match := range manifestRe.FindAllString(html, -1) {
		if seen[match] {
			continue
		}
		seen[match] = true
		if e.registry.Blocked(match) {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:       match,
			Kind:      KindHLS,
			Score:     1,
			OriginTag: "manifest",
		})
	}

	return candidates
}

// rank sorts candidates by score descending. The sort is stable so
// discovery order breaks ties.
func rank(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
