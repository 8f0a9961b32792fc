package kg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedPageRankTopScoresOne(t *testing.T) {
	nodes := []string{"a", "b", "c", "d"}
	edges := []weightedEdge{
		{A: "a", B: "b", Weight: 1.0},
		{A: "a", B: "c", Weight: 1.0},
		{A: "a", B: "d", Weight: 1.0},
		{A: "b", B: "c", Weight: 0.5},
	}

	scores := NormalizedPageRank(nodes, edges)
	require.Len(t, scores, 4)

	// The hub node is most central and defines the scale.
	assert.InDelta(t, 1.0, scores["a"], 1e-9)
	for _, n := range nodes {
		assert.GreaterOrEqual(t, scores[n], 0.0)
		assert.LessOrEqual(t, scores[n], 1.0)
	}
	assert.Less(t, scores["d"], scores["a"])
}

func TestNormalizedPageRankZeroEdges(t *testing.T) {
	scores := NormalizedPageRank([]string{"a", "b"}, nil)
	require.Len(t, scores, 2)
	assert.Zero(t, scores["a"])
	assert.Zero(t, scores["b"])
}

func TestNormalizedPageRankSymmetricGraph(t *testing.T) {
	nodes := []string{"a", "b", "c"}
	edges := []weightedEdge{
		{A: "a", B: "b", Weight: 1.0},
		{A: "b", B: "c", Weight: 1.0},
		{A: "c", B: "a", Weight: 1.0},
	}

	scores := NormalizedPageRank(nodes, edges)
	assert.InDelta(t, 1.0, scores["a"], 1e-6)
	assert.InDelta(t, 1.0, scores["b"], 1e-6)
	assert.InDelta(t, 1.0, scores["c"], 1e-6)
}

func TestNormalizedPageRankEmpty(t *testing.T) {
	assert.Nil(t, NormalizedPageRank(nil, nil))
}

func TestPageRankIgnoresUnknownAndSelfEdges(t *testing.T) {
	nodes := []string{"a", "b"}
	edges := []weightedEdge{
		{A: "a", B: "b", Weight: 1.0},
		{A: "a", B: "a", Weight: 5.0},
		{A: "a", B: "ghost", Weight: 5.0},
	}

	scores := PageRank(nodes, edges)
	require.Len(t, scores, 2)
	assert.InDelta(t, scores["a"], scores["b"], 1e-6)
}
