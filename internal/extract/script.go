package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// streamListRe locates an embedded array-literal assignment carrying
// stream descriptors, e.g. `var sources = [{"file": "..."}]`.
var streamListRe = regexp.MustCompile(
	`(?is)(?:var|let|const|window\s*\.)\s*(?:sources|streams|channels|playlist)\s*=\s*(\[.*?\])\s*(?:;|<)`)

// urlFields are the descriptor keys checked, in order, for a playable URL.
var urlFields = []string{"url", "file", "src", "embed", "link"}

// scanAuthoritative parses a script-declared stream list. The list is
// authoritative: its first usable entry is returned with the sentinel
// score and stops all further heuristics. Malformed data is a soft miss,
// never an error.
func scanAuthoritative(html string, base *url.URL) *Candidate {
	match := streamListRe.FindStringSubmatch(html)
	if match == nil {
		return nil
	}

	var entries []interface{}
	if err := sonic.Unmarshal([]byte(match[1]), &entries); err != nil {
		return nil
	}

	for _, entry := range entries {
		if candidateURL := descriptorURL(entry, base); candidateURL != "" {
			return &Candidate{
				URL:       candidateURL,
				Kind:      kindForURL(candidateURL),
				Score:     ScoreAuthoritative,
				OriginTag: "script",
			}
		}
	}
	return nil
}

// descriptorURL pulls an absolute URL out of one list entry. Entries may
// be bare strings or objects; absent fields are soft misses.
func descriptorURL(entry interface{}, base *url.URL) string {
	switch v := entry.(type) {
	case string:
		return absolutize(v, base)
	case map[string]interface{}:
		for _, field := range urlFields {
			raw, ok := v[field].(string)
			if !ok {
				continue
			}
			if resolved := absolutize(raw, base); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// absolutize resolves raw against base and returns it only when the
// result is absolute and scheme-qualified.
func absolutize(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	return resolved.String()
}

func kindForURL(candidateURL string) StreamKind {
	trimmed := candidateURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if strings.HasSuffix(strings.ToLower(trimmed), ".m3u8") {
		return KindHLS
	}
	return KindIframe
}
