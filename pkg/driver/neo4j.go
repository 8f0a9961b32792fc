package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/studygraph/pkg/types"
)

// Neo4jStore implements GraphStore on top of a Neo4j database.
type Neo4jStore struct {
	client    neo4j.DriverWithContext
	database  string
	namespace string
}

// Neo4jConfig holds connection settings for NewNeo4jStore.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string

	// Namespace isolates one corpus from another within the database.
	Namespace string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := client.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: neo4j connectivity check failed: %v", types.ErrUpstreamUnavailable, err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	return &Neo4jStore{
		client:    client,
		database:  database,
		namespace: cfg.Namespace,
	}, nil
}

// Namespace returns the corpus namespace this store was opened with.
func (s *Neo4jStore) Namespace() string {
	return s.namespace
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// UpsertNode creates or updates a node keyed by the label's identifying
// property.
func (s *Neo4jStore) UpsertNode(ctx context.Context, label, key string, props map[string]any) error {
	if key == "" {
		return fmt.Errorf("cannot upsert %s node with empty key", label)
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, upsertNodeQuery(s.namespace, label), map[string]any{
			"key":   key,
			"props": props,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s node %q: %w", label, key, err)
	}
	return nil
}

// UpsertEdge creates or updates a relationship between two existing nodes.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, edge Edge) error {
	if edge.SourceKey == "" || edge.TargetKey == "" {
		return fmt.Errorf("cannot upsert %s edge with empty endpoint key", edge.Type)
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	props := edge.Props
	if props == nil {
		props = map[string]any{}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, upsertEdgeQuery(s.namespace, edge), map[string]any{
			"sourceKey": edge.SourceKey,
			"targetKey": edge.TargetKey,
			"props":     props,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s edge %q->%q: %w", edge.Type, edge.SourceKey, edge.TargetKey, err)
	}
	return nil
}

// TraverseNeighbors returns concepts reachable over the given edge types
// within maxHops, ordered by importance descending.
func (s *Neo4jStore) TraverseNeighbors(ctx context.Context, conceptName string, relTypes []types.RelationType, maxHops, limit int) ([]ConceptNeighbor, error) {
	if limit <= 0 {
		limit = 20
	}

	records, err := s.readRecords(ctx, traverseNeighborsQuery(s.namespace, relTypes, maxHops), map[string]any{
		"name":  conceptName,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to traverse neighbors of %q: %w", conceptName, err)
	}

	neighbors := make([]ConceptNeighbor, 0, len(records))
	for _, record := range records {
		neighbors = append(neighbors, ConceptNeighbor{
			Name:            asString(record, "name"),
			ImportanceScore: asFloat(record, "importanceScore"),
			IsKeyTerm:       asBool(record, "isKeyTerm"),
			Distance:        int(asInt(record, "distance")),
		})
	}
	return neighbors, nil
}

// GetSequentialWindow returns the chunk chain around the given chunk,
// ordered by chunk index.
func (s *Neo4jStore) GetSequentialWindow(ctx context.Context, chunkID string, before, after int) ([]*types.ChunkNode, error) {
	records, err := s.readRecords(ctx, sequentialWindowQuery(s.namespace, before, after), map[string]any{
		"chunkID": chunkID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch window around chunk %q: %w", chunkID, err)
	}

	chunks := make([]*types.ChunkNode, 0, len(records))
	for _, record := range records {
		chunks = append(chunks, &types.ChunkNode{
			ChunkID:     asString(record, "chunkId"),
			Text:        asString(record, "text"),
			ModuleID:    asString(record, "moduleId"),
			Section:     asString(record, "section"),
			ChunkIndex:  int(asInt(record, "chunkIndex")),
			PrevChunkID: asString(record, "prevChunkId"),
			NextChunkID: asString(record, "nextChunkId"),
		})
	}
	return chunks, nil
}

// ConceptNames returns every concept name in the namespace.
func (s *Neo4jStore) ConceptNames(ctx context.Context) ([]string, error) {
	records, err := s.readRecords(ctx, conceptNamesQuery(s.namespace), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list concept names: %w", err)
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		if name := asString(record, "name"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// VectorSearch runs nearest-neighbor search against the named chunk
// embedding index.
func (s *Neo4jStore) VectorSearch(ctx context.Context, indexName string, vector []float32, topK int) ([]*types.ScoredChunk, error) {
	records, err := s.readRecords(ctx, vectorSearchQuery(s.namespace), map[string]any{
		"indexName": indexName,
		"topK":      topK,
		"vector":    toFloat64Slice(vector),
	})
	if err != nil {
		return nil, fmt.Errorf("failed vector search on %q: %w", indexName, err)
	}
	return scoredChunksFromRecords(records), nil
}

// GraphVectorSearch runs vector search enriched with sequential
// neighbors and the concept neighborhood of each hit.
func (s *Neo4jStore) GraphVectorSearch(ctx context.Context, indexName string, vector []float32, topK, conceptHops int) ([]*types.ScoredChunk, error) {
	records, err := s.readRecords(ctx, graphVectorSearchQuery(s.namespace, conceptHops), map[string]any{
		"indexName":    indexName,
		"topK":         topK,
		"vector":       toFloat64Slice(vector),
		"relatedLimit": 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed graph vector search on %q: %w", indexName, err)
	}

	chunks := scoredChunksFromRecords(records)
	for i, record := range records {
		chunks[i].MentionedConcepts = asStringSlice(record, "mentionedConcepts")
		chunks[i].RelatedConcepts = asStringSlice(record, "relatedConcepts")
	}
	return chunks, nil
}

// FulltextSearch queries the named fulltext index over concept names.
func (s *Neo4jStore) FulltextSearch(ctx context.Context, indexName, query string, topK int) ([]ConceptHit, error) {
	if topK <= 0 {
		topK = 10
	}

	records, err := s.readRecords(ctx, fulltextSearchQuery(), map[string]any{
		"indexName": indexName,
		"query":     query,
		"topK":      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed fulltext search on %q: %w", indexName, err)
	}

	hits := make([]ConceptHit, 0, len(records))
	for _, record := range records {
		hits = append(hits, ConceptHit{
			Name:  asString(record, "name"),
			Score: asFloat(record, "score"),
		})
	}
	return hits, nil
}

// CreateIndices creates constraints, the vector index, and the fulltext
// index for this namespace. Idempotent.
func (s *Neo4jStore) CreateIndices(ctx context.Context, dimensions int) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, query := range createIndexQueries(s.namespace, dimensions) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, nil)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Stats returns node and relationship counts for the namespace.
func (s *Neo4jStore) Stats(ctx context.Context) (map[string]int64, error) {
	records, err := s.readRecords(ctx, statsQuery(s.namespace), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to collect graph stats: %w", err)
	}
	if len(records) == 0 {
		return map[string]int64{}, nil
	}

	record := records[0]
	return map[string]int64{
		"concepts":      asInt(record, "concepts"),
		"modules":       asInt(record, "modules"),
		"chunks":        asInt(record, "chunks"),
		"relationships": asInt(record, "relationships"),
	}, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// readRecords runs a read query in a managed transaction and collects
// all records before the transaction closes.
func (s *Neo4jStore) readRecords(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records, ok := result.([]*db.Record)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return records, nil
}

func scoredChunksFromRecords(records []*db.Record) []*types.ScoredChunk {
	chunks := make([]*types.ScoredChunk, 0, len(records))
	for _, record := range records {
		chunks = append(chunks, &types.ScoredChunk{
			ChunkID:     asString(record, "chunkId"),
			Text:        asString(record, "text"),
			ModuleID:    asString(record, "moduleId"),
			ModuleTitle: asString(record, "moduleTitle"),
			Section:     asString(record, "section"),
			ChunkIndex:  int(asInt(record, "chunkIndex")),
			PrevChunkID: asString(record, "prevChunkId"),
			NextChunkID: asString(record, "nextChunkId"),
			Score:       asFloat(record, "score"),
		})
	}
	return chunks
}

func toFloat64Slice(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func asString(record *db.Record, key string) string {
	value, found := record.Get(key)
	if !found || value == nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

func asFloat(record *db.Record, key string) float64 {
	value, found := record.Get(key)
	if !found || value == nil {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func asInt(record *db.Record, key string) int64 {
	value, found := record.Get(key)
	if !found || value == nil {
		return 0
	}
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func asBool(record *db.Record, key string) bool {
	value, found := record.Get(key)
	if !found || value == nil {
		return false
	}
	b, _ := value.(bool)
	return b
}

func asStringSlice(record *db.Record, key string) []string {
	value, found := record.Get(key)
	if !found || value == nil {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
