package index

import (
	"context"
)

// Document is one indexed chunk. ID is the stable identity used as the
// fusion key across lexical and vector result lists.
type Document struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	ModuleID    string    `json:"moduleId"`
	ModuleTitle string    `json:"moduleTitle"`
	Section     string    `json:"section"`
	ChunkIndex  int       `json:"chunkIndex"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Hit is one search result with its backend-native score.
type Hit struct {
	Document Document
	Score    float64
}

// Filter restricts a search to a slice of the corpus.
type Filter struct {
	ModuleID string
	Section  string
}

// Store indexes chunk documents and serves the two retrieval arms.
type Store interface {
	// BulkUpsert indexes documents, replacing any existing documents with
	// the same ID.
	BulkUpsert(ctx context.Context, docs []Document) error

	// LexicalSearch runs keyword relevance search over text, title, and
	// section fields.
	LexicalSearch(ctx context.Context, query string, topK int, filter *Filter) ([]Hit, error)

	// VectorSearch runs nearest-neighbor search over document embeddings.
	VectorSearch(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	Close() error
}

func (f *Filter) matches(doc Document) bool {
	if f == nil {
		return true
	}
	if f.ModuleID != "" && doc.ModuleID != f.ModuleID {
		return false
	}
	if f.Section != "" && doc.Section != f.Section {
		return false
	}
	return true
}
