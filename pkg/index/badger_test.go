package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedDocs(t *testing.T, store *BadgerStore) {
	t.Helper()
	err := store.BulkUpsert(context.Background(), []Document{
		{
			ID:          "m1_c0",
			Text:        "Photosynthesis converts light energy into chemical energy in chloroplasts.",
			ModuleID:    "m1",
			ModuleTitle: "Cell Biology",
			Section:     "Photosynthesis",
			ChunkIndex:  0,
			Embedding:   []float32{1, 0, 0},
		},
		{
			ID:          "m1_c1",
			Text:        "The Calvin cycle fixes carbon dioxide using ATP and NADPH.",
			ModuleID:    "m1",
			ModuleTitle: "Cell Biology",
			Section:     "Photosynthesis",
			ChunkIndex:  1,
			Embedding:   []float32{0.9, 0.1, 0},
		},
		{
			ID:          "m2_c0",
			Text:        "Mitosis divides a cell nucleus into two identical nuclei.",
			ModuleID:    "m2",
			ModuleTitle: "Cell Division",
			Section:     "Mitosis",
			ChunkIndex:  0,
			Embedding:   []float32{0, 1, 0},
		},
	})
	require.NoError(t, err)
}

func TestBadgerLexicalSearchRanksByRelevance(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	hits, err := store.LexicalSearch(context.Background(), "photosynthesis light energy", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "m1_c0", hits[0].Document.ID)

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestBadgerLexicalSearchFilter(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	hits, err := store.LexicalSearch(context.Background(), "cell", 10, &Filter{ModuleID: "m2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m2_c0", hits[0].Document.ID)
}

func TestBadgerVectorSearch(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	hits, err := store.VectorSearch(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "m1_c0", hits[0].Document.ID)
	assert.Equal(t, "m1_c1", hits[1].Document.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestBadgerUpsertReplacesDocument(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	err := store.BulkUpsert(context.Background(), []Document{{
		ID:       "m1_c0",
		Text:     "Completely different content about osmosis.",
		ModuleID: "m1",
	}})
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := store.LexicalSearch(context.Background(), "photosynthesis", 10, nil)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "m1_c0", hit.Document.ID)
	}

	hits, err = store.LexicalSearch(context.Background(), "osmosis", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1_c0", hits[0].Document.ID)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	seedDocs(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := reopened.LexicalSearch(context.Background(), "mitosis", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "m2_c0", hits[0].Document.ID)
}

func TestBadgerEmptyQueryReturnsNothing(t *testing.T) {
	store := newTestStore(t)
	seedDocs(t, store)

	hits, err := store.LexicalSearch(context.Background(), "   ", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
