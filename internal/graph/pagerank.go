package graph

import "math"

// PageRank iteration parameters.
const (
	damping       = 0.85
	maxIterations = 100
	tolerance     = 1e-6
)

// PageRank runs weighted power iteration over the graph. Dangling mass is
// redistributed uniformly. Converges when the max per-node delta drops below
// tolerance, or after maxIterations. Scores sum to 1 and are keyed by URL.
func (g *Graph) PageRank() map[string]float64 {
	n := len(g.urls)
	if n == 0 {
		return map[string]float64{}
	}

	// Out-weight totals, for splitting a node's rank across its edges.
	outWeight := make([]float64, n)
	for src, targets := range g.out {
		for _, w := range targets {
			outWeight[src] += w
		}
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	uniform := 1.0 / float64(n)
	for i := range rank {
		rank[i] = uniform
	}

	for iter := 0; iter < maxIterations; iter++ {
		var dangling float64
		for i := 0; i < n; i++ {
			next[i] = 0
			if outWeight[i] == 0 {
				dangling += rank[i]
			}
		}

		for src, targets := range g.out {
			if outWeight[src] == 0 {
				continue
			}
			share := rank[src] / outWeight[src]
			for dst, w := range targets {
				next[dst] += share * w
			}
		}

		base := (1-damping)*uniform + damping*dangling*uniform
		var maxDelta float64
		for i := 0; i < n; i++ {
			next[i] = base + damping*next[i]
			if d := math.Abs(next[i] - rank[i]); d > maxDelta {
				maxDelta = d
			}
		}
		rank, next = next, rank

		if maxDelta < tolerance {
			break
		}
	}

	scores := make(map[string]float64, n)
	for i, u := range g.urls {
		scores[u] = rank[i]
	}
	return scores
}
