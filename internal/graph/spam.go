package graph

import (
	"regexp"
	"strings"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

// spamFlagThreshold is the combined score at which a backlink is flagged.
const spamFlagThreshold = 0.8

var commercialAnchorRe = regexp.MustCompile(`(?i)(buy|cheap|discount|sale)`)

// spamHostTokens mark link-farm style source hosts.
var spamHostTokens = []string{"link", "seo", "directory"}

// SpamScore sums the spam signals for one backlink.
func SpamScore(bl types.Backlink) float64 {
	var score float64

	if len(strings.Fields(bl.AnchorText)) > 5 {
		score += 0.2
	}
	if commercialAnchorRe.MatchString(bl.AnchorText) {
		score += 0.3
	}

	host := types.Host(bl.SourceURL)
	for _, token := range spamHostTokens {
		if strings.Contains(host, token) {
			score += 0.4
			break
		}
	}

	if len(bl.Context) < 50 {
		score += 0.2
	}
	return score
}

// IsSpam reports whether the backlink crosses the flag threshold.
func IsSpam(bl types.Backlink) bool {
	return SpamScore(bl) >= spamFlagThreshold
}

// FilterSpam splits backlinks into clean and flagged sets.
func FilterSpam(links []types.Backlink) (clean, flagged []types.Backlink) {
	for _, bl := range links {
		if IsSpam(bl) {
			flagged = append(flagged, bl)
		} else {
			clean = append(clean, bl)
		}
	}
	return clean, flagged
}
