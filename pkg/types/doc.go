// Package types defines the core data structures shared across the
// studygraph project.
//
// It contains the knowledge-graph model (concepts, modules, chunks and the
// typed relationships between them), the retrieval-time result records
// (ScoredChunk, ConceptMatch), and the error taxonomy used by the engine.
//
// The KnowledgeGraph aggregate is the sole mutation surface during graph
// construction: builders create and merge nodes and relationships through it
// before anything is persisted to a graph store.
package types
