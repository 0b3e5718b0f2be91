package fetch

import (
	"net/url"
	"strings"

	"github.com/poiesic/quarry/core"
)

// authorityDomains are checked in order; the first match raises the score.
var authorityDomains = []struct {
	pattern string
	score   float64
}{
	{".org", 0.9},
	{".edu", 0.85},
	{".gov", 0.9},
}

var redFlagSuffixes = []string{".xyz", ".club", ".biz", ".click", ".tk", ".ga", ".cf", ".top", ".info"}

var redFlagSubstrings = []string{"free-", "-free", "win-", "bonus", "prize"}

const redFlagPenalty = 0.7

// Reliability scores how trustworthy a source is from its host name alone.
// Unknown hosts score core.DefaultReliability. Authority domains raise the
// score, and every red flag multiplies it by 0.7, as does a host with more
// than three dots.
func Reliability(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return core.DefaultReliability
	}
	host := strings.ToLower(u.Host)

	score := core.DefaultReliability
	for _, d := range authorityDomains {
		if strings.Contains(host, d.pattern) {
			score = max(score, d.score)
			break
		}
	}

	for _, suffix := range redFlagSuffixes {
		if strings.HasSuffix(host, suffix) {
			score *= redFlagPenalty
		}
	}
	for _, s := range redFlagSubstrings {
		if strings.Contains(host, s) {
			score *= redFlagPenalty
		}
	}

	if strings.Count(host, ".") > 3 {
		score *= redFlagPenalty
	}
	return score
}
