package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph/pkg/types"
)

func TestAddConceptMergesOnNameCollision(t *testing.T) {
	kg := types.NewKnowledgeGraph()

	kg.AddConcept(types.NewConceptNode("Photosynthesis", 3, "m1"))
	kg.AddConcept(types.NewConceptNode("Photosynthesis", 2, "m2", "m1"))

	require.Len(t, kg.Concepts, 1)
	c := kg.Concepts["Photosynthesis"]
	assert.Equal(t, 5, c.Frequency)
	assert.Len(t, c.SourceModules, 2)
	assert.Contains(t, c.SourceModules, "m1")
	assert.Contains(t, c.SourceModules, "m2")
}

func TestAddConceptKeyTermFlagSticks(t *testing.T) {
	kg := types.NewKnowledgeGraph()

	first := types.NewConceptNode("Mitosis", 1, "m1")
	first.IsKeyTerm = true
	kg.AddConcept(first)
	kg.AddConcept(types.NewConceptNode("Mitosis", 1, "m2"))

	assert.True(t, kg.Concepts["Mitosis"].IsKeyTerm)
}

func TestAddRelationshipMergesByMaxWeight(t *testing.T) {
	kg := types.NewKnowledgeGraph()

	kg.AddRelationship(types.Relationship{
		Source: "A", Target: "B", Type: types.RelRelated, Weight: 0.3, Confidence: 0.7,
	})
	kg.AddRelationship(types.Relationship{
		Source: "A", Target: "B", Type: types.RelRelated, Weight: 0.9, Confidence: 0.5,
	})

	rels := kg.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, 0.9, rels[0].Weight)
	assert.Equal(t, 0.7, rels[0].Confidence)
}

func TestAddRelationshipRelatedCanonicalOrder(t *testing.T) {
	kg := types.NewKnowledgeGraph()

	// Same undirected edge inserted in both endpoint orders.
	kg.AddRelationship(types.Relationship{
		Source: "Cell", Target: "Atom", Type: types.RelRelated, Weight: 0.4,
	})
	kg.AddRelationship(types.Relationship{
		Source: "Atom", Target: "Cell", Type: types.RelRelated, Weight: 0.6,
	})

	rels := kg.Relationships()
	require.Len(t, rels, 1)
	assert.Equal(t, "Atom", rels[0].Source)
	assert.Equal(t, "Cell", rels[0].Target)
	assert.Equal(t, 0.6, rels[0].Weight)
}

func TestAddRelationshipDistinctTypesKept(t *testing.T) {
	kg := types.NewKnowledgeGraph()

	kg.AddRelationship(types.Relationship{Source: "A", Target: "B", Type: types.RelPrereq, Weight: 0.8})
	kg.AddRelationship(types.Relationship{Source: "A", Target: "B", Type: types.RelRelated, Weight: 0.5})

	assert.Equal(t, 2, kg.RelationshipCount())
}

func TestConceptNeighbors(t *testing.T) {
	kg := types.NewKnowledgeGraph()
	kg.AddRelationship(types.Relationship{Source: "A", Target: "B", Type: types.RelRelated, Weight: 0.5})
	kg.AddRelationship(types.Relationship{Source: "C", Target: "A", Type: types.RelPrereq, Weight: 0.8})
	kg.AddRelationship(types.Relationship{Source: "B", Target: "D", Type: types.RelRelated, Weight: 0.5})

	assert.Equal(t, []string{"B", "C"}, kg.ConceptNeighbors("A"))
	assert.Equal(t, []string{"B"}, kg.ConceptNeighbors("A", types.RelRelated))
	assert.Empty(t, kg.ConceptNeighbors("E"))
}

func TestRelationshipsDeterministicOrder(t *testing.T) {
	kg := types.NewKnowledgeGraph()
	kg.AddRelationship(types.Relationship{Source: "B", Target: "C", Type: types.RelRelated, Weight: 0.2})
	kg.AddRelationship(types.Relationship{Source: "A", Target: "C", Type: types.RelPrereq, Weight: 0.8})
	kg.AddRelationship(types.Relationship{Source: "A", Target: "B", Type: types.RelRelated, Weight: 0.4})

	rels := kg.Relationships()
	require.Len(t, rels, 3)
	assert.Equal(t, "A", rels[0].Source)
	assert.Equal(t, "B", rels[0].Target)
	assert.Equal(t, "A", rels[1].Source)
	assert.Equal(t, "C", rels[1].Target)
	assert.Equal(t, "B", rels[2].Source)
}

func TestStats(t *testing.T) {
	kg := types.NewKnowledgeGraph()
	kg.AddModule(&types.ModuleNode{ModuleID: "m1", Title: "Intro"})
	kg.AddConcept(types.NewConceptNode("Cell", 1, "m1"))
	kg.AddRelationship(types.Relationship{Source: "m1", Target: "Cell", Type: types.RelCovers, Weight: 1})

	stats := kg.Stats()
	assert.Equal(t, 1, stats["concepts"])
	assert.Equal(t, 1, stats["modules"])
	assert.Equal(t, 1, stats["relationships"])
	assert.Equal(t, 1, stats["COVERS"])
}
