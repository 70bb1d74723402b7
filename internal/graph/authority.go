package graph

import (
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// DomainAuthority scores every target host in the backlink set on a 0-100
// scale. Breadth of linking domains dominates; per-link quality (followable,
// non-empty anchor, non-empty context) tops it up.
func DomainAuthority(links []types.Backlink) map[string]float64 {
	type domainStats struct {
		sourceDomains map[string]struct{}
		quality       float64
		total         int
	}

	byDomain := make(map[string]*domainStats)
	for _, bl := range links {
		target := types.Host(bl.TargetURL)
		if target == "" {
			continue
		}
		st := byDomain[target]
		if st == nil {
			st = &domainStats{sourceDomains: make(map[string]struct{})}
			byDomain[target] = st
		}

		if src := types.Host(bl.SourceURL); src != "" {
			st.sourceDomains[src] = struct{}{}
		}
		st.total++

		if !bl.IsNofollow {
			st.quality += 1.0
		}
		if bl.AnchorText != "" {
			st.quality += 0.5
		}
		if bl.Context != "" {
			st.quality += 0.5
		}
	}

	scores := make(map[string]float64, len(byDomain))
	for domain, st := range byDomain {
		var perLink float64
		if st.total > 0 {
			perLink = st.quality / float64(st.total)
		}
		score := 2*float64(len(st.sourceDomains)) + 50*perLink
		if score > 100 {
			score = 100
		}
		scores[domain] = score
	}
	return scores
}
