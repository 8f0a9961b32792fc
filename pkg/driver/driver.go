package driver

import (
	"context"

	"github.com/soundprediction/studygraph/pkg/types"
)

// Edge describes a relationship upsert between two keyed nodes.
// Labels identify the endpoint node kinds so the store can match on
// the right key property.
type Edge struct {
	Type        types.RelationType
	SourceLabel string
	SourceKey   string
	TargetLabel string
	TargetKey   string
	Props       map[string]any
}

// ConceptNeighbor is a concept reached by traversing RELATED or PREREQ
// edges from a starting concept.
type ConceptNeighbor struct {
	Name            string
	ImportanceScore float64
	IsKeyTerm       bool
	Distance        int
}

// ConceptHit is a fulltext search result over concept names.
type ConceptHit struct {
	Name  string
	Score float64
}

// GraphWriter provides node and edge persistence.
type GraphWriter interface {
	// UpsertNode creates or updates a node identified by the label's key
	// property. Props are merged onto the node.
	UpsertNode(ctx context.Context, label, key string, props map[string]any) error

	// UpsertEdge creates or updates a relationship between two existing
	// nodes. Props are merged onto the relationship.
	UpsertEdge(ctx context.Context, edge Edge) error
}

// GraphTraverser navigates the concept neighborhood.
type GraphTraverser interface {
	// TraverseNeighbors returns concepts reachable from the named concept
	// over the given relationship types within maxHops, ordered by
	// importance descending. At most limit neighbors are returned. Empty
	// relTypes traverses every relationship type.
	TraverseNeighbors(ctx context.Context, conceptName string, relTypes []types.RelationType, maxHops, limit int) ([]ConceptNeighbor, error)

	// GetSequentialWindow returns the chunk chain around the given chunk,
	// up to before predecessors and after successors, ordered by chunk
	// index ascending. The anchor chunk is included; a zero side pulls
	// no neighbors from that side.
	GetSequentialWindow(ctx context.Context, chunkID string, before, after int) ([]*types.ChunkNode, error)

	// ConceptNames returns every concept name in the namespace.
	ConceptNames(ctx context.Context) ([]string, error)
}

// GraphSearcher provides retrieval over stored chunks and concepts.
type GraphSearcher interface {
	// VectorSearch runs approximate nearest-neighbor search against the
	// named chunk embedding index.
	VectorSearch(ctx context.Context, indexName string, vector []float32, topK int) ([]*types.ScoredChunk, error)

	// FulltextSearch queries the named fulltext index over concept names.
	FulltextSearch(ctx context.Context, indexName, query string, topK int) ([]ConceptHit, error)

	// GraphVectorSearch runs vector search and enriches each hit with its
	// sequential neighbors, mentioned concepts, and concepts reachable
	// within conceptHops, in a single round trip.
	GraphVectorSearch(ctx context.Context, indexName string, vector []float32, topK, conceptHops int) ([]*types.ScoredChunk, error)
}

// GraphAdmin provides schema and lifecycle management.
type GraphAdmin interface {
	// CreateIndices creates uniqueness constraints, the chunk vector
	// index with the given embedding dimensionality, and the concept
	// fulltext index for this namespace.
	CreateIndices(ctx context.Context, dimensions int) error

	// Stats returns node and relationship counts for the namespace.
	Stats(ctx context.Context) (map[string]int64, error)

	Close(ctx context.Context) error
}

// GraphStore is the full storage contract the builder and retriever
// depend on. Consumers that only need a slice of it should depend on
// the focused interface instead.
type GraphStore interface {
	GraphWriter
	GraphTraverser
	GraphSearcher
	GraphAdmin
}
