package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph/pkg/types"
)

func TestRRFuseOrdersByCombinedRank(t *testing.T) {
	listA := []*types.ScoredChunk{
		scored("d1", "m1", 0, 0.9),
		scored("d2", "m1", 1, 0.8),
		scored("d3", "m1", 2, 0.7),
	}
	listB := []*types.ScoredChunk{
		scored("d2", "m1", 1, 12.0),
		scored("d3", "m1", 2, 11.0),
		scored("d4", "m1", 3, 10.0),
	}

	fused := RRFuse([][]*types.ScoredChunk{listA, listB}, DefaultRRFK, 0)
	require.Len(t, fused, 4)

	// d2 and d3 appear in both lists and outrank the singletons.
	assert.Equal(t, "d2", fused[0].ChunkID)
	assert.Equal(t, "d3", fused[1].ChunkID)
	assert.Equal(t, "d1", fused[2].ChunkID)
	assert.Equal(t, "d4", fused[3].ChunkID)

	assert.InDelta(t, 1.0/61+1.0/62, fused[0].RRFScore, 1e-12)
	assert.Equal(t, fused[0].RRFScore, fused[0].Score)
	assert.Greater(t, fused[2].RRFScore, fused[3].RRFScore)
}

func TestRRFuseTieBreaksByFirstAppearance(t *testing.T) {
	listA := []*types.ScoredChunk{scored("a", "m1", 0, 1.0)}
	listB := []*types.ScoredChunk{scored("b", "m1", 1, 1.0)}

	fused := RRFuse([][]*types.ScoredChunk{listA, listB}, DefaultRRFK, 0)
	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].RRFScore, fused[1].RRFScore)
	assert.Equal(t, "a", fused[0].ChunkID)
	assert.Equal(t, "b", fused[1].ChunkID)
}

func TestRRFuseKeepsFirstRecordForDuplicates(t *testing.T) {
	enriched := scored("d1", "m1", 0, 0.9)
	enriched.MentionedConcepts = []string{"Photosynthesis"}
	listA := []*types.ScoredChunk{enriched}
	listB := []*types.ScoredChunk{scored("d1", "m1", 0, 5.0)}

	fused := RRFuse([][]*types.ScoredChunk{listA, listB}, DefaultRRFK, 0)
	require.Len(t, fused, 1)
	assert.Equal(t, []string{"Photosynthesis"}, fused[0].MentionedConcepts)
}

func TestRRFuseTruncatesToTopK(t *testing.T) {
	list := []*types.ScoredChunk{
		scored("d1", "m1", 0, 3),
		scored("d2", "m1", 1, 2),
		scored("d3", "m1", 2, 1),
	}
	fused := RRFuse([][]*types.ScoredChunk{list}, 0, 2)
	require.Len(t, fused, 2)
	assert.Equal(t, "d1", fused[0].ChunkID)
}

func TestRRFuseEmpty(t *testing.T) {
	assert.Empty(t, RRFuse(nil, DefaultRRFK, 10))
}
