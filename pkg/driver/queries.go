package driver

import (
	"fmt"
	"strings"

	"github.com/soundprediction/studygraph/pkg/types"
)

// Base node labels. The namespace prefix is applied on top of these.
const (
	LabelConcept = "Concept"
	LabelModule  = "Module"
	LabelChunk   = "Chunk"
)

// Key properties identifying each node kind.
const (
	keyPropConcept = "name"
	keyPropModule  = "moduleId"
	keyPropChunk   = "chunkId"
)

// SanitizeNamespace reduces a corpus identifier to characters that are
// safe inside Neo4j labels and index names.
func SanitizeNamespace(ns string) string {
	var b strings.Builder
	for _, r := range ns {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// VectorIndexName returns the chunk embedding index name for a namespace.
func VectorIndexName(ns string) string {
	return SanitizeNamespace(ns) + "_chunk_embedding"
}

// FulltextIndexName returns the concept fulltext index name for a namespace.
func FulltextIndexName(ns string) string {
	return SanitizeNamespace(ns) + "_concept_fulltext"
}

// nsLabel builds a backtick-quoted, namespace-prefixed label.
func nsLabel(ns, base string) string {
	if ns == "" {
		return "`" + base + "`"
	}
	return "`" + SanitizeNamespace(ns) + "_" + base + "`"
}

// keyProperty maps a base label to the property that identifies nodes
// of that kind.
func keyProperty(label string) string {
	switch label {
	case LabelModule:
		return keyPropModule
	case LabelChunk:
		return keyPropChunk
	default:
		return keyPropConcept
	}
}

// relTypePattern builds the relationship part of a variable-length
// pattern. Empty relTypes means an untyped traversal, so multi-hop
// paths may pass through module and chunk nodes too.
func relTypePattern(relTypes []types.RelationType) string {
	if len(relTypes) == 0 {
		return ""
	}
	names := make([]string, len(relTypes))
	for i, rt := range relTypes {
		names[i] = string(rt)
	}
	return ":" + strings.Join(names, "|")
}

// clampHops bounds a caller-supplied hop count. Unbounded variable
// length traversals can take the database down on dense graphs.
func clampHops(hops, max int) int {
	if hops < 1 {
		return 1
	}
	if hops > max {
		return max
	}
	return hops
}

// clampWindow bounds one side of a sequential window. Zero is valid
// and means no neighbors on that side.
func clampWindow(hops, max int) int {
	if hops < 0 {
		return 0
	}
	if hops > max {
		return max
	}
	return hops
}

func upsertNodeQuery(ns, label string) string {
	return fmt.Sprintf(`
		MERGE (n:%s {%s: $key})
		SET n += $props
	`, nsLabel(ns, label), keyProperty(label))
}

func upsertEdgeQuery(ns string, edge Edge) string {
	return fmt.Sprintf(`
		MATCH (a:%s {%s: $sourceKey})
		MATCH (b:%s {%s: $targetKey})
		MERGE (a)-[r:%s]->(b)
		SET r += $props
	`,
		nsLabel(ns, edge.SourceLabel), keyProperty(edge.SourceLabel),
		nsLabel(ns, edge.TargetLabel), keyProperty(edge.TargetLabel),
		string(edge.Type))
}

func traverseNeighborsQuery(ns string, relTypes []types.RelationType, maxHops int) string {
	return fmt.Sprintf(`
		MATCH path = (c:%[1]s {name: $name})-[%[2]s*1..%[3]d]-(neighbor:%[1]s)
		WHERE neighbor.name <> $name
		WITH neighbor, min(length(path)) AS distance
		RETURN neighbor.name AS name,
		       coalesce(neighbor.importanceScore, 0.0) AS importanceScore,
		       coalesce(neighbor.isKeyTerm, false) AS isKeyTerm,
		       distance
		ORDER BY importanceScore DESC, name ASC
		LIMIT $limit
	`, nsLabel(ns, LabelConcept), relTypePattern(relTypes), clampHops(maxHops, 3))
}

func sequentialWindowQuery(ns string, before, after int) string {
	return fmt.Sprintf(`
		MATCH window = (:%[1]s)-[:NEXT*0..%[2]d]->(c:%[1]s {chunkId: $chunkID})-[:NEXT*0..%[3]d]->(:%[1]s)
		WITH nodes(window) AS chunks, length(window) AS windowLen
		ORDER BY windowLen DESC
		LIMIT 1
		UNWIND chunks AS chunk
		WITH DISTINCT chunk
		RETURN chunk.chunkId AS chunkId,
		       chunk.text AS text,
		       chunk.moduleId AS moduleId,
		       chunk.section AS section,
		       chunk.chunkIndex AS chunkIndex,
		       chunk.prevChunkId AS prevChunkId,
		       chunk.nextChunkId AS nextChunkId
		ORDER BY chunkIndex ASC
	`, nsLabel(ns, LabelChunk), clampWindow(before, 10), clampWindow(after, 10))
}

func conceptNamesQuery(ns string) string {
	return fmt.Sprintf(`
		MATCH (c:%s)
		RETURN c.name AS name
		ORDER BY name ASC
	`, nsLabel(ns, LabelConcept))
}

func vectorSearchQuery(ns string) string {
	return fmt.Sprintf(`
		CALL db.index.vector.queryNodes($indexName, $topK, $vector)
		YIELD node, score
		WITH node AS chunk, score
		WHERE chunk:%s
		RETURN chunk.chunkId AS chunkId,
		       chunk.text AS text,
		       chunk.moduleId AS moduleId,
		       chunk.moduleTitle AS moduleTitle,
		       chunk.section AS section,
		       chunk.chunkIndex AS chunkIndex,
		       chunk.prevChunkId AS prevChunkId,
		       chunk.nextChunkId AS nextChunkId,
		       score
		ORDER BY score DESC
	`, nsLabel(ns, LabelChunk))
}

func graphVectorSearchQuery(ns string, conceptHops int) string {
	return fmt.Sprintf(`
		CALL db.index.vector.queryNodes($indexName, $topK, $vector)
		YIELD node, score
		WITH node AS chunk, score
		WHERE chunk:%[1]s
		OPTIONAL MATCH (prev:%[1]s)-[:NEXT]->(chunk)
		OPTIONAL MATCH (chunk)-[:NEXT]->(next:%[1]s)
		OPTIONAL MATCH (chunk)-[:MENTIONS]->(concept:%[2]s)
		OPTIONAL MATCH (concept)-[:RELATED|PREREQ*1..%[3]d]-(related:%[2]s)
		RETURN chunk.chunkId AS chunkId,
		       chunk.text AS text,
		       chunk.moduleId AS moduleId,
		       chunk.moduleTitle AS moduleTitle,
		       chunk.section AS section,
		       chunk.chunkIndex AS chunkIndex,
		       prev.chunkId AS prevChunkId,
		       next.chunkId AS nextChunkId,
		       collect(DISTINCT concept.name) AS mentionedConcepts,
		       collect(DISTINCT related.name)[0..$relatedLimit] AS relatedConcepts,
		       score
		ORDER BY score DESC
	`, nsLabel(ns, LabelChunk), nsLabel(ns, LabelConcept), clampHops(conceptHops, 3))
}

func fulltextSearchQuery() string {
	return `
		CALL db.index.fulltext.queryNodes($indexName, $query)
		YIELD node, score
		RETURN node.name AS name, score
		ORDER BY score DESC
		LIMIT $topK
	`
}

func createIndexQueries(ns string, dimensions int) []string {
	sanitized := SanitizeNamespace(ns)
	return []string{
		fmt.Sprintf(`CREATE CONSTRAINT %s_concept_name IF NOT EXISTS FOR (c:%s) REQUIRE c.name IS UNIQUE`,
			sanitized, nsLabel(ns, LabelConcept)),
		fmt.Sprintf(`CREATE CONSTRAINT %s_module_id IF NOT EXISTS FOR (m:%s) REQUIRE m.moduleId IS UNIQUE`,
			sanitized, nsLabel(ns, LabelModule)),
		fmt.Sprintf(`CREATE CONSTRAINT %s_chunk_id IF NOT EXISTS FOR (c:%s) REQUIRE c.chunkId IS UNIQUE`,
			sanitized, nsLabel(ns, LabelChunk)),
		fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:%s) ON (c.embedding)
			OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`,
			VectorIndexName(ns), nsLabel(ns, LabelChunk), dimensions),
		fmt.Sprintf(`CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (c:%s) ON EACH [c.name]`,
			FulltextIndexName(ns), nsLabel(ns, LabelConcept)),
	}
}

func statsQuery(ns string) string {
	return fmt.Sprintf(`
		OPTIONAL MATCH (c:%s)
		WITH count(c) AS concepts
		OPTIONAL MATCH (m:%s)
		WITH concepts, count(m) AS modules
		OPTIONAL MATCH (ch:%s)
		WITH concepts, modules, count(ch) AS chunks
		OPTIONAL MATCH (:%s)-[r]-()
		RETURN concepts, modules, chunks, count(DISTINCT r) AS relationships
	`, nsLabel(ns, LabelConcept), nsLabel(ns, LabelModule), nsLabel(ns, LabelChunk), nsLabel(ns, LabelConcept))
}
