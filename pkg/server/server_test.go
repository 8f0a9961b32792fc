package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/config"
	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/search"
	"github.com/soundprediction/studygraph/pkg/types"
)

// fakeEngine serves canned results.
type fakeEngine struct {
	retrieveErr error
	statsErr    error
	chunks      []*types.ScoredChunk
	blocks      []types.ContextBlock
	concepts    []driver.ConceptHit
	buildResult *studygraph.BuildResult
	lastOpts    *studygraph.RetrieveOptions
}

func (f *fakeEngine) Retrieve(ctx context.Context, query string, opts *studygraph.RetrieveOptions) (*search.Result, error) {
	f.lastOpts = opts
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return &search.Result{Chunks: f.chunks, Mode: types.BackendLexicalVector}, nil
}

func (f *fakeEngine) RetrieveMerged(ctx context.Context, query string, opts *studygraph.RetrieveOptions) ([]types.ContextBlock, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.blocks, nil
}

func (f *fakeEngine) SearchConcepts(ctx context.Context, query string, limit int) ([]driver.ConceptHit, error) {
	return f.concepts, nil
}

func (f *fakeEngine) BuildCorpus(ctx context.Context, corpusPath string, opts *studygraph.BuildOptions) (*studygraph.BuildResult, error) {
	if f.buildResult == nil {
		return nil, types.ErrMalformedRecord
	}
	return f.buildResult, nil
}

func (f *fakeEngine) Stats(ctx context.Context) (map[string]int64, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return map[string]int64{"nodes": 42}, nil
}

func (f *fakeEngine) Close(ctx context.Context) error { return nil }

// fakeResolver maps corpus IDs to engines.
type fakeResolver struct {
	engines map[string]studygraph.Engine
}

func (r *fakeResolver) Get(ctx context.Context, corpusID string) (studygraph.Engine, error) {
	engine, ok := r.engines[corpusID]
	if !ok {
		return nil, fmt.Errorf("no engine registered for corpus %q", corpusID)
	}
	return engine, nil
}

func newTestServer(engine *fakeEngine) *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 0, Mode: "test"},
	}
	resolver := &fakeResolver{engines: map[string]studygraph.Engine{"biology": engine}}
	srv := New(cfg, resolver, "biology")
	srv.Setup()
	return srv
}

func doRequest(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&fakeEngine{})

	resp := doRequest(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(srv, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReadinessFailsWhenGraphDown(t *testing.T) {
	srv := newTestServer(&fakeEngine{statsErr: types.ErrUpstreamUnavailable})
	resp := doRequest(srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRetrieveHappyPath(t *testing.T) {
	engine := &fakeEngine{
		chunks: []*types.ScoredChunk{
			{ChunkID: "m1_c0", Text: "Photosynthesis stores energy.", ModuleID: "m1", Score: 0.9},
		},
	}
	srv := newTestServer(engine)

	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "photosynthesis"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Chunks []*types.ScoredChunk `json:"chunks"`
		Total  int                  `json:"total"`
		Mode   string               `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Chunks, 1)
	assert.Equal(t, "m1_c0", body.Chunks[0].ChunkID)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "lexical_vector", body.Mode)
}

func TestRetrieveMerged(t *testing.T) {
	engine := &fakeEngine{
		blocks: []types.ContextBlock{
			{ModuleID: "m1", Text: "joined text", ChunkCount: 3, OriginalHitCount: 1},
		},
	}
	srv := newTestServer(engine)

	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "photosynthesis", "merged": true})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Blocks []types.ContextBlock `json:"blocks"`
		Total  int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Blocks, 1)
	assert.Equal(t, "joined text", body.Blocks[0].Text)
}

func TestRetrieveValidation(t *testing.T) {
	srv := newTestServer(&fakeEngine{})

	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "x", "mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "x", "window_size": -1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRetrieveForwardsWindowSize(t *testing.T) {
	engine := &fakeEngine{
		chunks: []*types.ScoredChunk{{ChunkID: "m1_c0", ModuleID: "m1", Score: 0.9}},
	}
	srv := newTestServer(engine)

	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "photosynthesis", "expand_window": true, "window_size": 3})
	require.Equal(t, http.StatusOK, resp.Code)

	require.NotNil(t, engine.lastOpts)
	assert.Equal(t, 3, engine.lastOpts.WindowSize)
}

func TestRetrieveNoContentIs404(t *testing.T) {
	srv := newTestServer(&fakeEngine{retrieveErr: fmt.Errorf("empty: %w", types.ErrNoContent)})
	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "nothing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRetrieveUpstreamFailureIs503(t *testing.T) {
	srv := newTestServer(&fakeEngine{retrieveErr: fmt.Errorf("neo4j: %w", types.ErrUpstreamUnavailable)})
	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRetrieveUnknownCorpusIs404(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	resp := doRequest(srv, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "x", "corpus_id": "chemistry"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSearchConcepts(t *testing.T) {
	engine := &fakeEngine{
		concepts: []driver.ConceptHit{{Name: "Photosynthesis", Score: 2.5}},
	}
	srv := newTestServer(engine)

	resp := doRequest(srv, http.MethodGet, "/api/v1/concepts?q=photo", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Concepts []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"concepts"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Concepts, 1)
	assert.Equal(t, "Photosynthesis", body.Concepts[0].Name)
}

func TestSearchConceptsRequiresQuery(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	resp := doRequest(srv, http.MethodGet, "/api/v1/concepts", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBuildEndpoint(t *testing.T) {
	engine := &fakeEngine{
		buildResult: &studygraph.BuildResult{Modules: 2, Concepts: 10, Chunks: 6, Relationships: 14, IndexedDocs: 6},
	}
	srv := newTestServer(engine)

	resp := doRequest(srv, http.MethodPost, "/api/v1/corpus/build",
		map[string]any{"corpus_path": "/data/corpus.jsonl"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Modules     int `json:"modules"`
		IndexedDocs int `json:"indexed_docs"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Modules)
	assert.Equal(t, 6, body.IndexedDocs)
}

func TestBuildValidation(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	resp := doRequest(srv, http.MethodPost, "/api/v1/corpus/build", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	resp := doRequest(srv, http.MethodGet, "/api/v1/corpus/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Counts map[string]int64 `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.Counts["nodes"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/retrieve", nil)
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEcho(t *testing.T) {
	srv := newTestServer(&fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	assert.Equal(t, "req-123", recorder.Header().Get("X-Request-ID"))

	recorder = httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}
