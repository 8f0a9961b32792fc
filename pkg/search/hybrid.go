package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/studygraph/pkg/embedder"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/types"
	"github.com/soundprediction/studygraph/pkg/utils"
)

// HybridRetriever runs lexical and vector search against the document
// index and fuses the two ranked lists with RRF. With hybrid mode off
// only the vector arm runs.
type HybridRetriever struct {
	store    index.Store
	embedder embedder.Client
	rrfK     int
	hybrid   bool
}

// HybridOptions configures a HybridRetriever.
type HybridOptions struct {
	// RRFK is the rank fusion constant. Zero means DefaultRRFK.
	RRFK int
	// DisableHybrid skips the lexical arm and returns vector results
	// directly.
	DisableHybrid bool
}

func NewHybridRetriever(store index.Store, embedClient embedder.Client, opts HybridOptions) *HybridRetriever {
	rrfK := opts.RRFK
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &HybridRetriever{
		store:    store,
		embedder: embedClient,
		rrfK:     rrfK,
		hybrid:   !opts.DisableHybrid,
	}
}

// Search retrieves topK chunks for the query. Both arms are issued
// concurrently; a single failing arm degrades to the surviving one,
// and only a total failure is an error.
func (r *HybridRetriever) Search(ctx context.Context, query string, topK int, filter *index.Filter) ([]*types.ScoredChunk, error) {
	if topK <= 0 {
		topK = 10
	}

	vector, embedErr := r.embedder.EmbedSingle(ctx, query)
	if embedErr != nil && !r.hybrid {
		return nil, fmt.Errorf("embedding query: %w", embedErr)
	}

	arms := make([]func() ([]index.Hit, error), 0, 2)
	if embedErr == nil {
		arms = append(arms, func() ([]index.Hit, error) {
			return r.store.VectorSearch(ctx, vector, topK, filter)
		})
	} else {
		slog.Warn("query embedding failed, degrading to lexical only", "error", embedErr)
	}
	if r.hybrid {
		arms = append(arms, func() ([]index.Hit, error) {
			return r.store.LexicalSearch(ctx, query, topK, filter)
		})
	}

	results, errs := utils.ExecuteWithResults(ctx, len(arms), arms...)

	lists := make([][]*types.ScoredChunk, 0, len(results))
	var lastErr error
	for i, hits := range results {
		if errs[i] != nil {
			slog.Warn("retrieval arm failed", "error", errs[i])
			lastErr = errs[i]
			continue
		}
		lists = append(lists, hitsToChunks(hits))
	}
	if len(lists) == 0 {
		if lastErr == nil {
			lastErr = embedErr
		}
		return nil, fmt.Errorf("all retrieval arms failed: %w", lastErr)
	}

	if len(lists) == 1 {
		chunks := lists[0]
		if len(chunks) > topK {
			chunks = chunks[:topK]
		}
		return chunks, nil
	}
	return RRFuse(lists, r.rrfK, topK), nil
}

func hitsToChunks(hits []index.Hit) []*types.ScoredChunk {
	chunks := make([]*types.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, &types.ScoredChunk{
			ChunkID:     hit.Document.ID,
			Text:        hit.Document.Text,
			Score:       hit.Score,
			ModuleID:    hit.Document.ModuleID,
			ModuleTitle: hit.Document.ModuleTitle,
			Section:     hit.Document.Section,
			ChunkIndex:  hit.Document.ChunkIndex,
		})
	}
	return chunks
}
