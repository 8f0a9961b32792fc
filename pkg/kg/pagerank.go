package kg

import (
	"math"
)

const (
	pagerankDamping   = 0.85
	pagerankMaxIter   = 100
	pagerankTolerance = 1e-6
)

// weightedEdge is one undirected edge of the importance projection.
type weightedEdge struct {
	A, B   string
	Weight float64
}

// PageRank runs weighted PageRank over an undirected graph and returns
// a score per node. Nodes without edges receive the teleport mass only.
// Returns nil when there are no nodes.
func PageRank(nodes []string, edges []weightedEdge) map[string]float64 {
	if len(nodes) == 0 {
		return nil
	}

	adjacency := make(map[string]map[string]float64, len(nodes))
	for _, n := range nodes {
		adjacency[n] = make(map[string]float64)
	}
	for _, e := range edges {
		if _, ok := adjacency[e.A]; !ok {
			continue
		}
		if _, ok := adjacency[e.B]; !ok {
			continue
		}
		if e.A == e.B {
			continue
		}
		adjacency[e.A][e.B] += e.Weight
		adjacency[e.B][e.A] += e.Weight
	}

	outWeight := make(map[string]float64, len(nodes))
	for node, neighbors := range adjacency {
		for _, w := range neighbors {
			outWeight[node] += w
		}
	}

	n := float64(len(nodes))
	ranks := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		ranks[node] = 1.0 / n
	}

	for iter := 0; iter < pagerankMaxIter; iter++ {
		next := make(map[string]float64, len(nodes))

		// Mass from nodes with no outgoing weight is spread uniformly.
		var danglingMass float64
		for _, node := range nodes {
			if outWeight[node] == 0 {
				danglingMass += ranks[node]
			}
		}

		base := (1-pagerankDamping)/n + pagerankDamping*danglingMass/n
		for _, node := range nodes {
			next[node] = base
		}

		for node, neighbors := range adjacency {
			if outWeight[node] == 0 {
				continue
			}
			share := pagerankDamping * ranks[node] / outWeight[node]
			for neighbor, w := range neighbors {
				next[neighbor] += share * w
			}
		}

		var delta float64
		for _, node := range nodes {
			delta += math.Abs(next[node] - ranks[node])
		}
		ranks = next
		if delta < pagerankTolerance {
			break
		}
	}

	return ranks
}

// NormalizedPageRank divides every score by the maximum so the top node
// scores exactly 1.0. A graph with zero total edge weight yields 0 for
// every node.
func NormalizedPageRank(nodes []string, edges []weightedEdge) map[string]float64 {
	if len(nodes) == 0 {
		return nil
	}

	var totalWeight float64
	for _, e := range edges {
		totalWeight += e.Weight
	}
	if totalWeight == 0 {
		scores := make(map[string]float64, len(nodes))
		for _, n := range nodes {
			scores[n] = 0
		}
		return scores
	}

	ranks := PageRank(nodes, edges)
	var maxRank float64
	for _, r := range ranks {
		if r > maxRank {
			maxRank = r
		}
	}
	if maxRank == 0 {
		return ranks
	}

	for node, r := range ranks {
		ranks[node] = r / maxRank
	}
	return ranks
}
