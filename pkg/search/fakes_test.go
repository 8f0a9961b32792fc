package search

import (
	"context"
	"errors"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/types"
)

var errBackendDown = errors.New("backend down")

type fakeIndex struct {
	lexical []index.Hit
	vector  []index.Hit
	lexErr  error
	vecErr  error
}

func (f *fakeIndex) BulkUpsert(ctx context.Context, docs []index.Document) error { return nil }

func (f *fakeIndex) LexicalSearch(ctx context.Context, query string, topK int, filter *index.Filter) ([]index.Hit, error) {
	return f.lexical, f.lexErr
}

func (f *fakeIndex) VectorSearch(ctx context.Context, vector []float32, topK int, filter *index.Filter) ([]index.Hit, error) {
	return f.vector, f.vecErr
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) {
	return len(f.lexical), nil
}

func (f *fakeIndex) Close() error { return nil }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) Close() error { return nil }

// fakeTraverser serves canned neighbor lists and chunk windows.
type fakeTraverser struct {
	neighbors map[string][]driver.ConceptNeighbor
	windows   map[string][]*types.ChunkNode
	failFor   map[string]error
}

func (f *fakeTraverser) TraverseNeighbors(ctx context.Context, conceptName string, relTypes []types.RelationType, maxHops, limit int) ([]driver.ConceptNeighbor, error) {
	if err, ok := f.failFor[conceptName]; ok {
		return nil, err
	}
	return f.neighbors[conceptName], nil
}

func (f *fakeTraverser) GetSequentialWindow(ctx context.Context, chunkID string, before, after int) ([]*types.ChunkNode, error) {
	if err, ok := f.failFor[chunkID]; ok {
		return nil, err
	}
	return f.windows[chunkID], nil
}

func (f *fakeTraverser) ConceptNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.neighbors))
	for name := range f.neighbors {
		names = append(names, name)
	}
	return names, nil
}

type fakeGraphSearcher struct {
	chunks []*types.ScoredChunk
	err    error
}

func (f *fakeGraphSearcher) VectorSearch(ctx context.Context, indexName string, vector []float32, topK int) ([]*types.ScoredChunk, error) {
	return f.chunks, f.err
}

func (f *fakeGraphSearcher) FulltextSearch(ctx context.Context, indexName, query string, topK int) ([]driver.ConceptHit, error) {
	return nil, f.err
}

func (f *fakeGraphSearcher) GraphVectorSearch(ctx context.Context, indexName string, vector []float32, topK, conceptHops int) ([]*types.ScoredChunk, error) {
	return f.chunks, f.err
}

func hit(id, moduleID string, chunkIndex int, score float64) index.Hit {
	return index.Hit{
		Document: index.Document{
			ID:         id,
			Text:       "text of " + id,
			ModuleID:   moduleID,
			ChunkIndex: chunkIndex,
		},
		Score: score,
	}
}

func scored(id, moduleID string, chunkIndex int, score float64) *types.ScoredChunk {
	return &types.ScoredChunk{
		ChunkID:    id,
		Text:       "text of " + id,
		Score:      score,
		ModuleID:   moduleID,
		ChunkIndex: chunkIndex,
	}
}
