// Package graph builds the directed weighted backlink graph and derives the
// ranking metrics from it: PageRank, per-domain authority, and spam flags.
package graph

import (
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// Edge weights. A nofollow link still carries a sliver of signal.
const (
	followWeight   = 1.0
	nofollowWeight = 0.1
)

// Graph is a directed weighted link graph over interned URL nodes.
// Multi-edges between the same pair collapse to the max weight.
type Graph struct {
	urls  []string       // node id -> URL
	index map[string]int // URL -> node id
	out   []map[int]float64
	inDeg []int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// FromBacklinks builds the graph from a backlink set.
func FromBacklinks(links []types.Backlink) *Graph {
	g := NewGraph()
	for _, bl := range links {
		weight := followWeight
		if bl.IsNofollow {
			weight = nofollowWeight
		}
		g.AddEdge(bl.SourceURL, bl.TargetURL, weight)
	}
	return g
}

// node interns a URL and returns its id.
func (g *Graph) node(url string) int {
	if id, ok := g.index[url]; ok {
		return id
	}
	id := len(g.urls)
	g.index[url] = id
	g.urls = append(g.urls, url)
	g.out = append(g.out, nil)
	g.inDeg = append(g.inDeg, 0)
	return id
}

// AddEdge adds a directed edge, keeping the max weight on duplicates.
func (g *Graph) AddEdge(from, to string, weight float64) {
	if from == "" || to == "" || from == to {
		return
	}
	src, dst := g.node(from), g.node(to)
	if g.out[src] == nil {
		g.out[src] = make(map[int]float64)
	}
	if old, ok := g.out[src][dst]; ok {
		if weight > old {
			g.out[src][dst] = weight
		}
		return
	}
	g.out[src][dst] = weight
	g.inDeg[dst]++
}

// NodeCount returns the number of interned URLs.
func (g *Graph) NodeCount() int { return len(g.urls) }

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.out {
		n += len(targets)
	}
	return n
}

// URLs returns the interned node URLs in insertion order.
func (g *Graph) URLs() []string { return g.urls }

// InDegree returns the distinct-edge in-degree of a URL, 0 if unknown.
func (g *Graph) InDegree(url string) int {
	id, ok := g.index[url]
	if !ok {
		return 0
	}
	return g.inDeg[id]
}
