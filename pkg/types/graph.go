package types

import (
	"sort"
	"strings"
)

// RelationType names a typed edge in the knowledge graph.
type RelationType string

const (
	// RelPrereq is a directed prerequisite edge: source is prerequisite of target.
	RelPrereq RelationType = "PREREQ"
	// RelRelated is an undirected association, stored once in canonical order.
	RelRelated RelationType = "RELATED"
	// RelCovers links a module to a concept it covers.
	RelCovers RelationType = "COVERS"
	// RelMentions links a chunk to a concept it mentions.
	RelMentions RelationType = "MENTIONS"
	// RelNext links a chunk to the following chunk in its module.
	RelNext RelationType = "NEXT"
	// RelFirstChunk links a module to its first chunk.
	RelFirstChunk RelationType = "FIRST_CHUNK"
)

// Relationship is a typed, weighted edge between two graph nodes.
type Relationship struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Type       RelationType `json:"type"`
	Weight     float64      `json:"weight"`
	Confidence float64      `json:"confidence"`
	// Evidence is a bounded text snippet supporting the edge, when mined from text.
	Evidence string `json:"evidence,omitempty"`
}

// RelKey identifies a relationship. At most one edge exists per key.
type RelKey struct {
	Source string
	Target string
	Type   RelationType
}

// KnowledgeGraph is the in-memory aggregate built from a corpus before
// persistence. All node and relationship mutation goes through it.
type KnowledgeGraph struct {
	Concepts map[string]*ConceptNode
	Modules  map[string]*ModuleNode
	Chunks   map[string]*ChunkNode

	relationships map[RelKey]*Relationship
}

// NewKnowledgeGraph creates an empty knowledge graph.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		Concepts:      make(map[string]*ConceptNode),
		Modules:       make(map[string]*ModuleNode),
		Chunks:        make(map[string]*ChunkNode),
		relationships: make(map[RelKey]*Relationship),
	}
}

// AddConcept inserts a concept or merges it into an existing node with the
// same name: frequencies sum, source-module sets union, key-term flag sticks.
func (kg *KnowledgeGraph) AddConcept(concept *ConceptNode) {
	existing, ok := kg.Concepts[concept.Name]
	if !ok {
		if concept.SourceModules == nil {
			concept.SourceModules = make(map[string]struct{})
		}
		kg.Concepts[concept.Name] = concept
		return
	}
	existing.Frequency += concept.Frequency
	existing.IsKeyTerm = existing.IsKeyTerm || concept.IsKeyTerm
	for m := range concept.SourceModules {
		existing.SourceModules[m] = struct{}{}
	}
}

// AddModule inserts or replaces a module node.
func (kg *KnowledgeGraph) AddModule(module *ModuleNode) {
	kg.Modules[module.ModuleID] = module
}

// AddChunk inserts or replaces a chunk node.
func (kg *KnowledgeGraph) AddChunk(chunk *ChunkNode) {
	kg.Chunks[chunk.ChunkID] = chunk
}

// AddRelationship inserts an edge, merging with any existing edge for the
// same (source, target, type) by keeping the maximum weight. RELATED edges
// are stored once in canonical (sorted endpoint) order regardless of the
// order the caller passes them in.
func (kg *KnowledgeGraph) AddRelationship(rel Relationship) {
	if rel.Type == RelRelated && strings.Compare(rel.Source, rel.Target) > 0 {
		rel.Source, rel.Target = rel.Target, rel.Source
	}

	key := RelKey{Source: rel.Source, Target: rel.Target, Type: rel.Type}
	if existing, ok := kg.relationships[key]; ok {
		if rel.Weight > existing.Weight {
			existing.Weight = rel.Weight
		}
		if rel.Confidence > existing.Confidence {
			existing.Confidence = rel.Confidence
		}
		if existing.Evidence == "" {
			existing.Evidence = rel.Evidence
		}
		return
	}
	stored := rel
	kg.relationships[key] = &stored
}

// Relationships returns all edges in deterministic (source, target, type) order.
func (kg *KnowledgeGraph) Relationships() []*Relationship {
	rels := make([]*Relationship, 0, len(kg.relationships))
	for _, r := range kg.relationships {
		rels = append(rels, r)
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Source != rels[j].Source {
			return rels[i].Source < rels[j].Source
		}
		if rels[i].Target != rels[j].Target {
			return rels[i].Target < rels[j].Target
		}
		return rels[i].Type < rels[j].Type
	})
	return rels
}

// RelationshipCount returns the number of distinct edges.
func (kg *KnowledgeGraph) RelationshipCount() int {
	return len(kg.relationships)
}

// ConceptNeighbors returns the distinct concepts adjacent to the named
// concept, optionally filtered by relationship type. RELATED edges are
// treated as undirected; PREREQ edges are followed in both directions.
func (kg *KnowledgeGraph) ConceptNeighbors(name string, relTypes ...RelationType) []string {
	filter := make(map[RelationType]struct{}, len(relTypes))
	for _, t := range relTypes {
		filter[t] = struct{}{}
	}

	seen := make(map[string]struct{})
	for key, rel := range kg.relationships {
		if len(filter) > 0 {
			if _, ok := filter[rel.Type]; !ok {
				continue
			}
		}
		switch {
		case key.Source == name:
			seen[key.Target] = struct{}{}
		case key.Target == name:
			seen[key.Source] = struct{}{}
		}
	}

	neighbors := make([]string, 0, len(seen))
	for n := range seen {
		neighbors = append(neighbors, n)
	}
	sort.Strings(neighbors)
	return neighbors
}

// Stats summarizes the graph for logging.
func (kg *KnowledgeGraph) Stats() map[string]int {
	stats := map[string]int{
		"concepts":      len(kg.Concepts),
		"modules":       len(kg.Modules),
		"chunks":        len(kg.Chunks),
		"relationships": len(kg.relationships),
	}
	for _, rel := range kg.relationships {
		stats[string(rel.Type)]++
	}
	return stats
}
