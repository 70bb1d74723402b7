package graph

import (
	"sort"
	"strings"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

// AnchorCount is one entry of the anchor-text distribution.
type AnchorCount struct {
	Anchor string
	Count  int
}

// Report summarizes the backlink profile of one target domain.
type Report struct {
	Domain          string
	TotalBacklinks  int
	UniqueSources   int
	NofollowCount   int
	FlaggedSpam     int
	Authority       float64
	TopAnchors      []AnchorCount
	TopSourceHosts  []AnchorCount
}

// anchorLimit caps the distribution lists in a report.
const anchorLimit = 20

// BuildReport aggregates the backlinks pointing at one domain. Links whose
// target host differs from domain are ignored.
func BuildReport(domain string, links []types.Backlink) *Report {
	r := &Report{Domain: domain}

	anchors := make(map[string]int)
	hosts := make(map[string]int)
	sources := make(map[string]struct{})
	var matched []types.Backlink

	for _, bl := range links {
		if types.Host(bl.TargetURL) != domain {
			continue
		}
		matched = append(matched, bl)
		r.TotalBacklinks++
		if bl.IsNofollow {
			r.NofollowCount++
		}
		if IsSpam(bl) {
			r.FlaggedSpam++
		}
		if a := strings.TrimSpace(bl.AnchorText); a != "" {
			anchors[a]++
		}
		if h := types.Host(bl.SourceURL); h != "" {
			hosts[h]++
			sources[bl.SourceURL] = struct{}{}
		}
	}

	r.UniqueSources = len(sources)
	r.Authority = DomainAuthority(matched)[domain]
	r.TopAnchors = topCounts(anchors, anchorLimit)
	r.TopSourceHosts = topCounts(hosts, anchorLimit)
	return r
}

// topCounts sorts a frequency map by count descending, name ascending on ties.
func topCounts(m map[string]int, limit int) []AnchorCount {
	out := make([]AnchorCount, 0, len(m))
	for k, v := range m {
		out = append(out, AnchorCount{Anchor: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Anchor < out[j].Anchor
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
