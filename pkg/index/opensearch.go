package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundprediction/studygraph/pkg/types"
)

// OpenSearchStore implements Store against an OpenSearch-compatible
// HTTP API using BM25 multi_match for the lexical arm and kNN for the
// vector arm.
type OpenSearchStore struct {
	baseURL    string
	indexName  string
	httpClient *http.Client
}

// OpenSearchConfig holds connection settings for NewOpenSearchStore.
type OpenSearchConfig struct {
	BaseURL   string
	IndexName string
	Timeout   time.Duration
}

// NewOpenSearchStore creates a store for the given index. The index is
// expected to exist; CreateIndex sets one up with the right mappings.
func NewOpenSearchStore(cfg OpenSearchConfig) (*OpenSearchStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("opensearch base URL is required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("opensearch index name is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenSearchStore{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		indexName:  cfg.IndexName,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CreateIndex creates the index with kNN enabled and an embedding field
// of the given dimensionality. Existing indices are left alone.
func (s *OpenSearchStore) CreateIndex(ctx context.Context, dimensions int) error {
	body := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"text":        map[string]any{"type": "text"},
				"moduleTitle": map[string]any{"type": "text"},
				"section":     map[string]any{"type": "text"},
				"moduleId":    map[string]any{"type": "keyword"},
				"chunkIndex":  map[string]any{"type": "integer"},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dimensions,
				},
			},
		},
	}

	status, _, err := s.do(ctx, http.MethodPut, "/"+url.PathEscape(s.indexName), body)
	if err != nil {
		return err
	}
	// 400 with resource_already_exists is fine for an idempotent setup path.
	if status >= 300 && status != http.StatusBadRequest {
		return fmt.Errorf("failed to create index %q: status %d", s.indexName, status)
	}
	return nil
}

// BulkUpsert indexes documents through the _bulk API.
func (s *OpenSearchStore) BulkUpsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{
			"index": map[string]any{"_index": s.indexName, "_id": doc.ID},
		}
		if err := encoder.Encode(action); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode document %q: %w", doc.ID, err)
		}
	}

	status, respBody, err := s.doRaw(ctx, http.MethodPost, "/_bulk", buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("bulk upsert failed: status %d", status)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &bulkResp); err == nil && bulkResp.Errors {
		return fmt.Errorf("bulk upsert reported per-item errors")
	}
	return nil
}

// LexicalSearch runs a BM25 multi_match query weighting chunk text over
// module title over section. Fuzzy matching tolerates typos in the
// query terms.
func (s *OpenSearchStore) LexicalSearch(ctx context.Context, query string, topK int, filter *Filter) ([]Hit, error) {
	match := map[string]any{
		"multi_match": map[string]any{
			"query":     query,
			"fields":    []string{"text^3", "moduleTitle^2", "section"},
			"fuzziness": "AUTO",
		},
	}
	return s.search(ctx, map[string]any{
		"size":  topK,
		"query": wrapFilter(match, filter),
	})
}

// VectorSearch runs a kNN query over the embedding field.
func (s *OpenSearchStore) VectorSearch(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	knn := map[string]any{
		"knn": map[string]any{
			"embedding": map[string]any{
				"vector": vector,
				"k":      topK,
			},
		},
	}
	return s.search(ctx, map[string]any{
		"size":  topK,
		"query": wrapFilter(knn, filter),
	})
}

// Count returns the number of documents in the index.
func (s *OpenSearchStore) Count(ctx context.Context) (int, error) {
	status, body, err := s.do(ctx, http.MethodGet, "/"+url.PathEscape(s.indexName)+"/_count", nil)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("count failed: status %d", status)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return resp.Count, nil
}

// Close is a no-op; the store holds no persistent connections.
func (s *OpenSearchStore) Close() error { return nil }

func (s *OpenSearchStore) search(ctx context.Context, body map[string]any) ([]Hit, error) {
	status, respBody, err := s.do(ctx, http.MethodPost, "/"+url.PathEscape(s.indexName)+"/_search", body)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("search failed: status %d", status)
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		doc := h.Source
		if doc.ID == "" {
			doc.ID = h.ID
		}
		hits = append(hits, Hit{Document: doc, Score: h.Score})
	}
	return hits, nil
}

// wrapFilter wraps a query clause in a bool filter when a corpus slice
// is requested.
func wrapFilter(clause map[string]any, filter *Filter) map[string]any {
	if filter == nil || (filter.ModuleID == "" && filter.Section == "") {
		return clause
	}

	var terms []map[string]any
	if filter.ModuleID != "" {
		terms = append(terms, map[string]any{"term": map[string]any{"moduleId": filter.ModuleID}})
	}
	if filter.Section != "" {
		terms = append(terms, map[string]any{"term": map[string]any{"section.keyword": filter.Section}})
	}

	return map[string]any{
		"bool": map[string]any{
			"must":   clause,
			"filter": terms,
		},
	}
}

func (s *OpenSearchStore) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return s.doRaw(ctx, method, path, payload, "application/json")
}

func (s *OpenSearchStore) doRaw(ctx context.Context, method, path string, payload []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: opensearch request failed: %v", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
