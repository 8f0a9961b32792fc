package kg

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph/pkg/types"
)

func TestDeduplicateConcepts(t *testing.T) {
	result := DeduplicateConcepts([]string{"United", "United States", "Cell"})
	assert.ElementsMatch(t, []string{"United States", "Cell"}, result)
}

func TestDeduplicateConceptsCaseInsensitive(t *testing.T) {
	result := DeduplicateConcepts([]string{"cell", "Cell Membrane"})
	assert.ElementsMatch(t, []string{"Cell Membrane"}, result)
}

func TestDeduplicateConceptsKeepsUnrelated(t *testing.T) {
	input := []string{"Photosynthesis", "Mitosis", "Osmosis"}
	assert.ElementsMatch(t, input, DeduplicateConcepts(input))
}

func buildRecords() []types.CorpusRecord {
	keyTerms := []string{"Photosynthesis", "Calvin Cycle"}
	records := make([]types.CorpusRecord, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, types.CorpusRecord{
			ModuleID:    "m1",
			ModuleTitle: "Energy in Cells",
			Section:     fmt.Sprintf("Section %d", i),
			Text: "Photosynthesis is the process by which plants store energy. " +
				"The calvin cycle is a stage of photosynthesis.",
			KeyTerms: keyTerms,
		})
	}
	return records
}

func TestBuildCreatesModulesAndConcepts(t *testing.T) {
	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), buildRecords())
	require.NoError(t, err)

	require.Contains(t, kg.Modules, "m1")
	assert.Equal(t, "Energy in Cells", kg.Modules["m1"].Title)

	require.Contains(t, kg.Concepts, "Photosynthesis")
	require.Contains(t, kg.Concepts, "Calvin Cycle")
	assert.True(t, kg.Concepts["Photosynthesis"].IsKeyTerm)
	assert.Contains(t, kg.Concepts["Photosynthesis"].SourceModules, "m1")
}

func TestBuildMinesRelatedFromCooccurrence(t *testing.T) {
	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), buildRecords())
	require.NoError(t, err)

	var related *types.Relationship
	for _, rel := range kg.Relationships() {
		if rel.Type == types.RelRelated &&
			rel.Source == "Calvin Cycle" && rel.Target == "Photosynthesis" {
			related = rel
		}
	}
	// Both concepts share 6 text units, past the default threshold of 5,
	// and the edge is stored in canonical endpoint order.
	require.NotNil(t, related)
	assert.InDelta(t, 0.6, related.Weight, 1e-9)
	assert.InDelta(t, 0.7, related.Confidence, 1e-9)
}

func TestBuildMinesPrereqFromPatterns(t *testing.T) {
	records := buildRecords()
	records = append(records, types.CorpusRecord{
		ModuleID:    "m1",
		ModuleTitle: "Energy in Cells",
		Section:     "Prerequisites",
		Text:        "The calvin cycle builds on photosynthesis. Review it first.",
		KeyTerms:    []string{"Photosynthesis", "Calvin Cycle"},
	})

	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), records)
	require.NoError(t, err)

	var prereq *types.Relationship
	for _, rel := range kg.Relationships() {
		if rel.Type == types.RelPrereq {
			prereq = rel
		}
	}
	require.NotNil(t, prereq)
	assert.Equal(t, "Calvin Cycle", prereq.Source)
	assert.Equal(t, "Photosynthesis", prereq.Target)
	assert.InDelta(t, 0.8, prereq.Weight, 1e-9)
	assert.InDelta(t, 0.6, prereq.Confidence, 1e-9)
	assert.Contains(t, prereq.Evidence, "builds on photosynthesis")
	assert.NotEqual(t, prereq.Source, prereq.Target)
}

func TestBuildChunkChainConsistency(t *testing.T) {
	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), buildRecords())
	require.NoError(t, err)

	require.Len(t, kg.Chunks, 6)
	for id, chunk := range kg.Chunks {
		if chunk.PrevChunkID != "" {
			prev := kg.Chunks[chunk.PrevChunkID]
			require.NotNil(t, prev, "dangling prev pointer on %s", id)
			assert.Equal(t, id, prev.NextChunkID)
		}
		if chunk.NextChunkID != "" {
			next := kg.Chunks[chunk.NextChunkID]
			require.NotNil(t, next, "dangling next pointer on %s", id)
			assert.Equal(t, id, next.PrevChunkID)
		}
	}

	first := kg.Chunks["m1_c0"]
	require.NotNil(t, first)
	assert.Empty(t, first.PrevChunkID)

	var firstChunkEdges, nextEdges, mentions int
	for _, rel := range kg.Relationships() {
		switch rel.Type {
		case types.RelFirstChunk:
			firstChunkEdges++
			assert.Equal(t, "m1", rel.Source)
			assert.Equal(t, "m1_c0", rel.Target)
		case types.RelNext:
			nextEdges++
		case types.RelMentions:
			mentions++
		}
	}
	assert.Equal(t, 1, firstChunkEdges)
	assert.Equal(t, 5, nextEdges)
	assert.Greater(t, mentions, 0)
}

func TestBuildSkipsMalformedRecords(t *testing.T) {
	records := buildRecords()
	records = append(records,
		types.CorpusRecord{ModuleID: "", Text: "orphan text"},
		types.CorpusRecord{ModuleID: "m2", Text: "   "},
	)

	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), records)
	require.NoError(t, err)

	assert.NotContains(t, kg.Modules, "m2")
	assert.Len(t, kg.Chunks, 6)
}

func TestBuildEmptyCorpus(t *testing.T) {
	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, kg.Concepts)
	assert.Empty(t, kg.Modules)
}

func TestBuildImportanceNormalization(t *testing.T) {
	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), buildRecords())
	require.NoError(t, err)

	var maxImportance float64
	for _, concept := range kg.Concepts {
		assert.GreaterOrEqual(t, concept.ImportanceScore, 0.0)
		assert.LessOrEqual(t, concept.ImportanceScore, 1.0)
		if concept.ImportanceScore > maxImportance {
			maxImportance = concept.ImportanceScore
		}
	}
	// The graph has RELATED edges, so the top concept scores exactly 1.0.
	assert.InDelta(t, 1.0, maxImportance, 1e-9)
}

func TestStopConceptsFiltered(t *testing.T) {
	records := []types.CorpusRecord{{
		ModuleID:    "m1",
		ModuleTitle: "Module One",
		Text:        "Summary of photosynthesis and the glossary of terms.",
		KeyTerms:    []string{"Summary", "Glossary", "Photosynthesis"},
	}}

	builder := NewBuilder(BuilderOptions{})
	kg, err := builder.Build(context.Background(), records)
	require.NoError(t, err)

	assert.NotContains(t, kg.Concepts, "Summary")
	assert.NotContains(t, kg.Concepts, "Glossary")
	assert.Contains(t, kg.Concepts, "Photosynthesis")
}
