package index

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSearchLexicalSearchRequestShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chunks/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{
				"hits": []map[string]any{
					{
						"_id":    "m1_c0",
						"_score": 4.2,
						"_source": map[string]any{
							"id":       "m1_c0",
							"text":     "photosynthesis",
							"moduleId": "m1",
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	store, err := NewOpenSearchStore(OpenSearchConfig{BaseURL: server.URL, IndexName: "chunks"})
	require.NoError(t, err)

	hits, err := store.LexicalSearch(context.Background(), "photosynthesis", 5, &Filter{ModuleID: "m1"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1_c0", hits[0].Document.ID)
	assert.InDelta(t, 4.2, hits[0].Score, 1e-9)

	// The query is wrapped in a bool filter and boosts text over title.
	boolQuery := captured["query"].(map[string]any)["bool"].(map[string]any)
	multiMatch := boolQuery["must"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "photosynthesis", multiMatch["query"])
	assert.Contains(t, multiMatch["fields"], "text^3")
	assert.Equal(t, "AUTO", multiMatch["fuzziness"])
	require.Len(t, boolQuery["filter"], 1)
}

func TestOpenSearchVectorSearchRequestShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": []any{}}})
	}))
	defer server.Close()

	store, err := NewOpenSearchStore(OpenSearchConfig{BaseURL: server.URL, IndexName: "chunks"})
	require.NoError(t, err)

	_, err = store.VectorSearch(context.Background(), []float32{0.1, 0.2}, 7, nil)
	require.NoError(t, err)

	knn := captured["query"].(map[string]any)["knn"].(map[string]any)["embedding"].(map[string]any)
	assert.EqualValues(t, 7, knn["k"])
	assert.EqualValues(t, 7, captured["size"])
}

func TestOpenSearchBulkUpsertNDJSON(t *testing.T) {
	var lines []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)
		require.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		for _, line := range splitLines(body) {
			lines = append(lines, line)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": false})
	}))
	defer server.Close()

	store, err := NewOpenSearchStore(OpenSearchConfig{BaseURL: server.URL, IndexName: "chunks"})
	require.NoError(t, err)

	err = store.BulkUpsert(context.Background(), []Document{
		{ID: "a", Text: "one"},
		{ID: "b", Text: "two"},
	})
	require.NoError(t, err)

	// Two documents mean two action lines and two source lines.
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"_id":"a"`)
	assert.Contains(t, lines[2], `"_id":"b"`)
}

func TestOpenSearchUpstreamFailure(t *testing.T) {
	store, err := NewOpenSearchStore(OpenSearchConfig{BaseURL: "http://127.0.0.1:1", IndexName: "chunks"})
	require.NoError(t, err)

	_, err = store.LexicalSearch(context.Background(), "anything", 5, nil)
	require.Error(t, err)
}

func splitLines(body []byte) []string {
	var out []string
	start := 0
	for i, b := range body {
		if b == '\n' {
			if i > start {
				out = append(out, string(body[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(body) {
		out = append(out, string(body[start:]))
	}
	return out
}
