package extract

import (
	"net/url"
	"strings"
)

// ScoreAuthoritative is assigned to candidates taken from a structured
// stream list embedded in the page itself. It sits far above any sum
// the heuristic rules can produce, so an authoritative candidate always
// wins ties against scanned markup.
const ScoreAuthoritative = 1000

// keywordTiers holds URL keywords in priority order. Each tier
// contributes its points at most once, regardless of how many of its
// words match or how often.
var keywordTiers = []struct {
	words  []string
	points int
}{
	{[]string{"embed"}, 5},
	{[]string{"player"}, 4},
	{[]string{"stream"}, 3},
	{[]string{"live"}, 2},
	{[]string{"watch", "iframe", "video"}, 1},
}

// defaultProviderHosts lists known video providers whose hosts earn a
// bonus point. Matched as substrings of the candidate URL's host.
var defaultProviderHosts = []string{
	"youtube",
	"youtu.be",
	"dailymotion",
	"twitch",
	"vimeo",
	"ok.ru",
	"rutube",
}

// Score rates a markup fragment as a stream candidate. Additive,
// deterministic, and order-independent; never negative.
func Score(fragment, resolvedURL string, providerHosts []string) int {
	lowerURL := strings.ToLower(resolvedURL)
	lowerFragment := strings.ToLower(fragment)

	score := 0
	for _, tier := range keywordTiers {
		for _, word := range tier.words {
			if strings.Contains(lowerURL, word) {
				score += tier.points
				break
			}
		}
	}

	if strings.Contains(lowerFragment, "allowfullscreen") ||
		strings.Contains(lowerFragment, `allow="fullscreen`) ||
		strings.Contains(lowerFragment, "allow='fullscreen") {
		score++
	}

	if hasFullSizing(lowerFragment) {
		score++
	}

	if hostMatchesProvider(resolvedURL, providerHosts) {
		score++
	}

	return score
}

func hasFullSizing(lowerFragment string) bool {
	for _, marker := range []string{
		`width="100%"`,
		`width='100%'`,
		`height="100%"`,
		`height='100%'`,
		"width:100%",
		"width: 100%",
		"height:100%",
		"height: 100%",
	} {
		if strings.Contains(lowerFragment, marker) {
			return true
		}
	}
	return false
}

func hostMatchesProvider(resolvedURL string, providerHosts []string) bool {
	if len(providerHosts) == 0 {
		providerHosts = defaultProviderHosts
	}
	parsed, err := url.Parse(resolvedURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Host)
	for _, provider := range providerHosts {
		if strings.Contains(host, provider) {
			return true
		}
	}
	return false
}
