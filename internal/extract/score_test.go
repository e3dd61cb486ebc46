package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreKeywordPriority(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"no keywords", "https://example.com/page", 0},
		{"embed only", "https://example.com/embed/1", 5},
		{"player only", "https://example.com/player/1", 4},
		{"stream only", "https://example.com/x?kind=stream", 3},
		{"live only", "https://example.com/live/1", 2},
		{"watch only", "https://example.com/watch?v=1", 1},
		{"iframe tie group", "https://example.com/iframe/1", 1},
		{"video tie group", "https://example.com/video/1", 1},
		{"embed and player stack", "https://example.com/embed/player", 9},
		{"all tiers", "https://example.com/embed/player/stream/live/watch", 15},
		{"duplicate keyword counts once", "https://example.com/embed/embed/embed", 5},
		{"tie group counts once", "https://example.com/watch/video/iframe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score("", tt.url, nil))
		})
	}
}

func TestScoreMonotonicInKeywords(t *testing.T) {
	// Adding priority keywords never lowers the score.
	base := "https://example.com/x"
	prev := Score("", base, nil)
	for _, addition := range []string{"/watch", "/live", "/stream", "/player", "/embed"} {
		base += addition
		next := Score("", base, nil)
		assert.GreaterOrEqual(t, next, prev, "score decreased after adding %q", addition)
		prev = next
	}
}

func TestScoreFragmentBonuses(t *testing.T) {
	url := "https://example.com/page"

	assert.Equal(t, 1, Score(`<iframe allowfullscreen src="x">`, url, nil))
	assert.Equal(t, 1, Score(`<iframe width="100%" src="x">`, url, nil))
	assert.Equal(t, 1, Score(`<iframe style="height:100%" src="x">`, url, nil))
	assert.Equal(t, 2, Score(`<iframe allowfullscreen width="100%">`, url, nil))
}

func TestScoreProviderAllowlist(t *testing.T) {
	assert.Equal(t, 1, Score("", "https://www.youtube.com/xyz", nil))
	assert.Equal(t, 0, Score("", "https://example.com/xyz", nil))

	// Custom provider list replaces the default
	assert.Equal(t, 1, Score("", "https://cdn.example.net/a", []string{"example.net"}))
	assert.Equal(t, 0, Score("", "https://www.youtube.com/xyz", []string{"example.net"}))
}

func TestScoreNeverNegative(t *testing.T) {
	assert.GreaterOrEqual(t, Score("", "", nil), 0)
	assert.GreaterOrEqual(t, Score("garbage", "::not-a-url::", nil), 0)
}

func TestScoreAuthoritativeBeatsAnyHeuristic(t *testing.T) {
	best := Score(
		`<iframe allowfullscreen width="100%" height="100%">`,
		"https://www.youtube.com/embed/player/stream/live/watch",
		nil,
	)
	assert.Greater(t, ScoreAuthoritative, best)
}
