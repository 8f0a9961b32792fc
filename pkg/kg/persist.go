package kg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/types"
)

// Persist writes the in-memory graph into a graph store: all nodes
// first, then all edges, in deterministic order. Upserts make repeated
// persistence of the same corpus idempotent.
func Persist(ctx context.Context, store driver.GraphStore, kg *types.KnowledgeGraph) error {
	moduleIDs := sortedKeys(kg.Modules)
	for _, id := range moduleIDs {
		module := kg.Modules[id]
		err := store.UpsertNode(ctx, driver.LabelModule, module.ModuleID, map[string]any{
			"moduleId": module.ModuleID,
			"title":    module.Title,
			"keyTerms": module.KeyTerms,
		})
		if err != nil {
			return fmt.Errorf("failed to persist module %q: %w", module.ModuleID, err)
		}
	}

	for _, name := range sortedKeys(kg.Concepts) {
		concept := kg.Concepts[name]
		sourceModules := make([]string, 0, len(concept.SourceModules))
		for m := range concept.SourceModules {
			sourceModules = append(sourceModules, m)
		}
		sort.Strings(sourceModules)

		err := store.UpsertNode(ctx, driver.LabelConcept, concept.Name, map[string]any{
			"name":            concept.Name,
			"frequency":       concept.Frequency,
			"importanceScore": concept.ImportanceScore,
			"isKeyTerm":       concept.IsKeyTerm,
			"sourceModules":   sourceModules,
		})
		if err != nil {
			return fmt.Errorf("failed to persist concept %q: %w", concept.Name, err)
		}
	}

	for _, id := range sortedKeys(kg.Chunks) {
		chunk := kg.Chunks[id]
		props := map[string]any{
			"chunkId":     chunk.ChunkID,
			"text":        chunk.Text,
			"moduleId":    chunk.ModuleID,
			"section":     chunk.Section,
			"chunkIndex":  chunk.ChunkIndex,
			"prevChunkId": chunk.PrevChunkID,
			"nextChunkId": chunk.NextChunkID,
		}
		if module, ok := kg.Modules[chunk.ModuleID]; ok {
			props["moduleTitle"] = module.Title
		}
		if len(chunk.Embedding) > 0 {
			embedding := make([]float64, len(chunk.Embedding))
			for i, v := range chunk.Embedding {
				embedding[i] = float64(v)
			}
			props["embedding"] = embedding
		}

		if err := store.UpsertNode(ctx, driver.LabelChunk, chunk.ChunkID, props); err != nil {
			return fmt.Errorf("failed to persist chunk %q: %w", chunk.ChunkID, err)
		}
	}

	for _, rel := range kg.Relationships() {
		sourceLabel, targetLabel, ok := edgeLabels(rel.Type)
		if !ok {
			slog.Warn("Skipping relationship with unknown type", "type", rel.Type)
			continue
		}

		props := map[string]any{
			"weight":     rel.Weight,
			"confidence": rel.Confidence,
		}
		if rel.Evidence != "" {
			props["evidence"] = rel.Evidence
		}

		err := store.UpsertEdge(ctx, driver.Edge{
			Type:        rel.Type,
			SourceLabel: sourceLabel,
			SourceKey:   rel.Source,
			TargetLabel: targetLabel,
			TargetKey:   rel.Target,
			Props:       props,
		})
		if err != nil {
			return fmt.Errorf("failed to persist %s edge %q->%q: %w", rel.Type, rel.Source, rel.Target, err)
		}
	}

	slog.Info("Persisted knowledge graph", "stats", kg.Stats())
	return nil
}

// edgeLabels maps a relationship type to its endpoint node labels.
func edgeLabels(relType types.RelationType) (string, string, bool) {
	switch relType {
	case types.RelCovers:
		return driver.LabelModule, driver.LabelConcept, true
	case types.RelRelated, types.RelPrereq:
		return driver.LabelConcept, driver.LabelConcept, true
	case types.RelMentions:
		return driver.LabelChunk, driver.LabelConcept, true
	case types.RelNext:
		return driver.LabelChunk, driver.LabelChunk, true
	case types.RelFirstChunk:
		return driver.LabelModule, driver.LabelChunk, true
	default:
		return "", "", false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
