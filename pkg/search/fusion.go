package search

import (
	"sort"

	"github.com/soundprediction/studygraph/pkg/types"
)

// DefaultRRFK is the standard rank constant for reciprocal rank fusion.
const DefaultRRFK = 60

// RRFuse merges ranked result lists with reciprocal rank fusion. Each
// chunk contributes 1/(k+rank) per list it appears in, with rank
// starting at 1. Chunks are identified by ID; the record from the
// first list a chunk appears in is kept. Ties break by first
// appearance scanning the lists in order.
func RRFuse(lists [][]*types.ScoredChunk, k, topK int) []*types.ScoredChunk {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64)
	first := make(map[string]*types.ScoredChunk)
	order := make(map[string]int)
	var seen int

	for _, list := range lists {
		for rank, chunk := range list {
			if chunk == nil {
				continue
			}
			scores[chunk.ChunkID] += 1.0 / float64(k+rank+1)
			if _, ok := first[chunk.ChunkID]; !ok {
				first[chunk.ChunkID] = chunk
				order[chunk.ChunkID] = seen
				seen++
			}
		}
	}

	fused := make([]*types.ScoredChunk, 0, len(first))
	for id, chunk := range first {
		merged := *chunk
		merged.RRFScore = scores[id]
		merged.Score = scores[id]
		fused = append(fused, &merged)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return order[fused[i].ChunkID] < order[fused[j].ChunkID]
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
