package studygraph

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/soundprediction/studygraph/pkg/checkpoint"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/kg"
	"github.com/soundprediction/studygraph/pkg/types"
)

const defaultEmbedBatchSize = 64

// BuildOptions tunes corpus ingestion.
type BuildOptions struct {
	// EmbedBatchSize is how many chunk texts are embedded per backend
	// call. Zero means 64.
	EmbedBatchSize int
	// SkipIndex leaves the lexical/vector index untouched, building only
	// the concept graph.
	SkipIndex bool
}

// BuildResult summarizes a completed ingestion.
type BuildResult struct {
	Modules       int `json:"modules"`
	Concepts      int `json:"concepts"`
	Chunks        int `json:"chunks"`
	Relationships int `json:"relationships"`
	IndexedDocs   int `json:"indexed_docs"`
}

// BuildCorpus ingests the JSONL corpus at corpusPath. It builds the
// concept graph, embeds every chunk, persists graph and chunks to the
// graph store, and indexes the chunks for lexical and vector search.
// With a checkpoint directory configured, progress is recorded per
// stage so failed builds can be diagnosed.
func (c *Client) BuildCorpus(ctx context.Context, corpusPath string, opts *BuildOptions) (*BuildResult, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}

	c.startCheckpoint(ctx, corpusPath)
	result, err := c.buildCorpus(ctx, corpusPath, opts)
	if err != nil {
		c.recordCheckpointError(ctx, err)
		return nil, err
	}
	c.finishCheckpoint(ctx)
	return result, nil
}

func (c *Client) buildCorpus(ctx context.Context, corpusPath string, opts *BuildOptions) (*BuildResult, error) {
	batchSize := opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	records, err := kg.LoadCorpusJSONL(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	graph, err := c.builder.Build(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("building concept graph: %w", err)
	}
	c.logger.Info("concept graph built",
		"modules", len(graph.Modules),
		"concepts", len(graph.Concepts),
		"chunks", len(graph.Chunks),
		"relationships", graph.RelationshipCount())
	c.advanceCheckpoint(ctx, checkpoint.StepGraphBuilt, graph)

	chunkIDs := make([]string, 0, len(graph.Chunks))
	for id := range graph.Chunks {
		chunkIDs = append(chunkIDs, id)
	}
	sort.Strings(chunkIDs)

	if err := c.embedChunks(ctx, graph, chunkIDs, batchSize); err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	c.advanceCheckpoint(ctx, checkpoint.StepChunksEmbedded, graph)

	if err := c.graph.CreateIndices(ctx, c.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("creating graph indices: %w", err)
	}
	if err := kg.Persist(ctx, c.graph, graph); err != nil {
		return nil, fmt.Errorf("persisting graph: %w", err)
	}
	c.advanceCheckpoint(ctx, checkpoint.StepGraphPersisted, graph)

	result := &BuildResult{
		Modules:       len(graph.Modules),
		Concepts:      len(graph.Concepts),
		Chunks:        len(graph.Chunks),
		Relationships: graph.RelationshipCount(),
	}

	if !opts.SkipIndex {
		indexed, err := c.indexChunks(ctx, graph, chunkIDs)
		if err != nil {
			return nil, fmt.Errorf("indexing chunks: %w", err)
		}
		result.IndexedDocs = indexed
		c.advanceCheckpoint(ctx, checkpoint.StepIndexed, graph)
	}

	names := make([]string, 0, len(graph.Concepts))
	for name := range graph.Concepts {
		names = append(names, name)
	}
	c.extractor.SetKnownConcepts(names)
	c.markConceptsLoaded()

	return result, nil
}

// startCheckpoint creates or refreshes the build checkpoint. Checkpoint
// failures are logged, never fatal.
func (c *Client) startCheckpoint(ctx context.Context, corpusPath string) {
	if c.checkpoints == nil {
		return
	}
	cp, err := c.checkpoints.Load(ctx, c.namespace)
	if err != nil || cp == nil {
		cp = &checkpoint.BuildCheckpoint{
			CorpusID:  c.namespace,
			CreatedAt: time.Now(),
		}
	}
	cp.CorpusPath = corpusPath
	cp.Step = checkpoint.StepInitial
	if err := c.checkpoints.Save(ctx, cp); err != nil {
		c.logger.Warn("saving build checkpoint failed", "error", err)
	}
}

func (c *Client) advanceCheckpoint(ctx context.Context, step checkpoint.BuildStep, graph *types.KnowledgeGraph) {
	if c.checkpoints == nil {
		return
	}
	cp, err := c.checkpoints.Load(ctx, c.namespace)
	if err != nil || cp == nil {
		return
	}
	cp.Step = step
	cp.Modules = len(graph.Modules)
	cp.Concepts = len(graph.Concepts)
	cp.Chunks = len(graph.Chunks)
	cp.Relationships = graph.RelationshipCount()
	if err := c.checkpoints.Save(ctx, cp); err != nil {
		c.logger.Warn("saving build checkpoint failed", "error", err, "step", step)
	}
}

func (c *Client) recordCheckpointError(ctx context.Context, buildErr error) {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.RecordError(ctx, c.namespace, buildErr, string(debug.Stack())); err != nil {
		c.logger.Warn("recording build failure failed", "error", err)
	}
}

func (c *Client) finishCheckpoint(ctx context.Context) {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.Delete(ctx, c.namespace); err != nil {
		c.logger.Warn("clearing build checkpoint failed", "error", err)
	}
}

func (c *Client) embedChunks(ctx context.Context, graph *types.KnowledgeGraph, chunkIDs []string, batchSize int) error {
	for start := 0; start < len(chunkIDs); start += batchSize {
		end := start + batchSize
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}
		batch := chunkIDs[start:end]

		texts := make([]string, len(batch))
		for i, id := range batch {
			texts[i] = graph.Chunks[id].Text
		}

		vectors, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i, id := range batch {
			graph.Chunks[id].Embedding = vectors[i]
		}
	}
	return nil
}

// indexCreator is implemented by index backends that manage their own
// schema, such as OpenSearch.
type indexCreator interface {
	CreateIndex(ctx context.Context, dimensions int) error
}

func (c *Client) indexChunks(ctx context.Context, graph *types.KnowledgeGraph, chunkIDs []string) (int, error) {
	if creator, ok := c.index.(indexCreator); ok {
		if err := creator.CreateIndex(ctx, c.embedder.Dimensions()); err != nil {
			return 0, err
		}
	}

	docs := make([]index.Document, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		chunk := graph.Chunks[id]
		var moduleTitle string
		if module, ok := graph.Modules[chunk.ModuleID]; ok {
			moduleTitle = module.Title
		}
		docs = append(docs, index.Document{
			ID:          chunk.ChunkID,
			Text:        chunk.Text,
			ModuleID:    chunk.ModuleID,
			ModuleTitle: moduleTitle,
			Section:     chunk.Section,
			ChunkIndex:  chunk.ChunkIndex,
			Embedding:   chunk.Embedding,
		})
	}
	if err := c.index.BulkUpsert(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
