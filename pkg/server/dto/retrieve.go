// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/studygraph/pkg/types"
)

// MaxQueryLength bounds accepted query strings.
const MaxQueryLength = 2048

// ErrQueryTooLong is returned when a query exceeds MaxQueryLength.
var ErrQueryTooLong = errors.New("query exceeds maximum length")

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query    string `json:"query" binding:"required"`
	CorpusID string `json:"corpus_id,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
	// Mode selects the retrieval backend: lexical_vector, graph_native,
	// or both. Empty uses the server default.
	Mode     string `json:"mode,omitempty"`
	ModuleID string `json:"module_id,omitempty"`
	Section  string `json:"section,omitempty"`

	ExpandQuery  *bool `json:"expand_query,omitempty"`
	ExpandWindow *bool `json:"expand_window,omitempty"`

	// WindowSize sets how many chunks are pulled on each side during
	// window expansion. Zero uses the server default.
	WindowSize int `json:"window_size,omitempty"`

	// Merged returns per-module context blocks instead of individual
	// chunks.
	Merged bool `json:"merged,omitempty"`
}

func (r *RetrieveRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	switch types.BackendMode(r.Mode) {
	case "", types.BackendLexicalVector, types.BackendGraphNative, types.BackendBoth:
	default:
		return errors.New("mode must be lexical_vector, graph_native, or both")
	}
	if r.TopK < 0 {
		return errors.New("top_k cannot be negative")
	}
	if r.WindowSize < 0 {
		return errors.New("window_size cannot be negative")
	}
	return nil
}

// RetrieveResponse is the body of a successful retrieval.
type RetrieveResponse struct {
	Query     string               `json:"query"`
	CorpusID  string               `json:"corpus_id,omitempty"`
	Mode      string               `json:"mode"`
	Chunks    []*types.ScoredChunk `json:"chunks,omitempty"`
	Blocks    []types.ContextBlock `json:"blocks,omitempty"`
	Expansion *types.Expansion     `json:"expansion,omitempty"`
	Total     int                  `json:"total"`
}

// ConceptHit is one concept search result.
type ConceptHit struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ConceptSearchResponse is the body of GET /api/v1/concepts.
type ConceptSearchResponse struct {
	Query    string       `json:"query"`
	Concepts []ConceptHit `json:"concepts"`
	Total    int          `json:"total"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
