package dto

import (
	"errors"
	"strings"
)

// BuildRequest is the body of POST /api/v1/corpus/build.
type BuildRequest struct {
	// CorpusPath is a server-local path to a JSONL corpus file.
	CorpusPath string `json:"corpus_path" binding:"required"`
	CorpusID   string `json:"corpus_id,omitempty"`
	// SkipIndex builds only the concept graph.
	SkipIndex bool `json:"skip_index,omitempty"`
}

func (r *BuildRequest) Validate() error {
	if strings.TrimSpace(r.CorpusPath) == "" {
		return errors.New("corpus_path cannot be empty")
	}
	return nil
}

// BuildResponse is the body of a successful build.
type BuildResponse struct {
	CorpusID      string `json:"corpus_id,omitempty"`
	Modules       int    `json:"modules"`
	Concepts      int    `json:"concepts"`
	Chunks        int    `json:"chunks"`
	Relationships int    `json:"relationships"`
	IndexedDocs   int    `json:"indexed_docs"`
}

// StatsResponse is the body of GET /api/v1/corpus/stats.
type StatsResponse struct {
	CorpusID string           `json:"corpus_id,omitempty"`
	Counts   map[string]int64 `json:"counts"`
}
