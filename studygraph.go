package studygraph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/studygraph/pkg/alert"
	"github.com/soundprediction/studygraph/pkg/checkpoint"
	"github.com/soundprediction/studygraph/pkg/config"
	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/embedder"
	"github.com/soundprediction/studygraph/pkg/extractor"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/kg"
	"github.com/soundprediction/studygraph/pkg/search"
	"github.com/soundprediction/studygraph/pkg/types"
)

// Engine is the top-level interface for building and querying a study
// corpus. Consumers that only retrieve should depend on Retriever
// instead.
type Engine interface {
	Retriever

	// BuildCorpus ingests a JSONL corpus file: it constructs the concept
	// graph, embeds and persists the chunks, and populates the
	// lexical/vector index.
	BuildCorpus(ctx context.Context, corpusPath string, opts *BuildOptions) (*BuildResult, error)

	// Stats returns node and relationship counts for the corpus.
	Stats(ctx context.Context) (map[string]int64, error)

	// Close releases all backend connections.
	Close(ctx context.Context) error
}

// Retriever answers queries against an already built corpus.
type Retriever interface {
	// Retrieve runs the hybrid retrieval pipeline for a query.
	Retrieve(ctx context.Context, query string, opts *RetrieveOptions) (*search.Result, error)

	// RetrieveMerged retrieves and merges each module's chunks into one
	// contiguous context block.
	RetrieveMerged(ctx context.Context, query string, opts *RetrieveOptions) ([]types.ContextBlock, error)

	// SearchConcepts finds concepts by name via the fulltext index.
	SearchConcepts(ctx context.Context, query string, limit int) ([]driver.ConceptHit, error)
}

// Components holds pre-built backends for a Client. Used directly in
// tests and by callers that manage their own connections.
type Components struct {
	Graph      driver.GraphStore
	Index      index.Store
	Embedder   embedder.Client
	Recognizer extractor.EntityRecognizer
	Logger     *slog.Logger
}

// Client is the default Engine implementation.
type Client struct {
	cfg      *config.Config
	graph    driver.GraphStore
	index    index.Store
	embedder embedder.Client

	extractor    *extractor.Extractor
	builder      *kg.Builder
	orchestrator *search.Orchestrator
	window       *search.WindowExpander
	checkpoints  *checkpoint.Manager

	namespace string
	logger    *slog.Logger

	// conceptsMu guards conceptsLoaded; Retrieve may run from many
	// goroutines at once.
	conceptsMu     sync.Mutex
	conceptsLoaded bool
}

// NewClient connects to the configured backends and wires the full
// engine. The context bounds connection setup only.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	graph, err := driver.NewNeo4jStore(ctx, driver.Neo4jConfig{
		URI:       cfg.Database.URI,
		Username:  cfg.Database.Username,
		Password:  cfg.Database.Password,
		Database:  cfg.Database.Database,
		Namespace: cfg.Graph.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting graph store: %w", err)
	}

	idx, err := newIndexStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening index store: %w", err)
	}

	embedClient, err := newEmbedderClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	var recognizer extractor.EntityRecognizer
	if cfg.Extraction.NERModel != "" {
		recognizer, err = extractor.NewGlineRecognizer(cfg.Extraction.NERModel, nil)
		if err != nil {
			// NER is an optional strategy; the extractor degrades without it.
			slog.Warn("span model unavailable, NER strategy disabled", "error", err)
			recognizer = nil
		}
	}

	return NewClientWithComponents(cfg, Components{
		Graph:      graph,
		Index:      idx,
		Embedder:   embedClient,
		Recognizer: recognizer,
	})
}

// NewClientWithComponents wires a Client around already constructed
// backends.
func NewClientWithComponents(cfg *config.Config, comps Components) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if comps.Graph == nil || comps.Index == nil || comps.Embedder == nil {
		return nil, fmt.Errorf("graph, index, and embedder components are required")
	}
	logger := comps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lexicon, err := kg.LoadLexicon(cfg.Graph.StopListPath, cfg.Graph.PatternsPath)
	if err != nil {
		return nil, fmt.Errorf("loading lexicon: %w", err)
	}

	builder := kg.NewBuilder(kg.BuilderOptions{
		MaxConcepts:          cfg.Graph.TopConcepts,
		CooccurrenceMinCount: cfg.Graph.CooccurrenceMinCount,
		Lexicon:              lexicon,
	})

	ex := extractor.New(nil, extractor.Options{
		Recognizer:         comps.Recognizer,
		Embedder:           comps.Embedder,
		EmbeddingThreshold: cfg.Extraction.EmbeddingThreshold,
		MaxKeywords:        cfg.Extraction.MaxKeywords,
	})

	namespace := driver.SanitizeNamespace(cfg.Graph.Namespace)
	expander := search.NewQueryExpander(ex, comps.Graph, search.ExpanderOptions{
		MaxHops:          cfg.Retrieval.ExpansionHops,
		MaxQueryConcepts: cfg.Retrieval.MaxQueryConcepts,
	})
	window := search.NewWindowExpander(comps.Graph, cfg.Retrieval.WindowSize)
	hybrid := search.NewHybridRetriever(comps.Index, comps.Embedder, search.HybridOptions{
		RRFK: cfg.Retrieval.RRFK,
	})
	orchestrator := search.NewOrchestrator(search.OrchestratorConfig{
		Hybrid:          hybrid,
		Graph:           comps.Graph,
		Embedder:        comps.Embedder,
		VectorIndexName: driver.VectorIndexName(namespace),
		Expander:        expander,
		Window:          window,
		Mode:            types.BackendMode(cfg.Retrieval.BackendMode),
		RRFK:            cfg.Retrieval.RRFK,
		ConceptHops:     cfg.Retrieval.ExpansionHops,
	})

	var checkpoints *checkpoint.Manager
	if cfg.Graph.CheckpointDir != "" {
		checkpoints, err = checkpoint.NewManager(cfg.Graph.CheckpointDir)
		if err != nil {
			return nil, fmt.Errorf("opening checkpoint directory: %w", err)
		}
	}

	return &Client{
		cfg:          cfg,
		graph:        comps.Graph,
		index:        comps.Index,
		embedder:     comps.Embedder,
		extractor:    ex,
		builder:      builder,
		orchestrator: orchestrator,
		window:       window,
		checkpoints:  checkpoints,
		namespace:    namespace,
		logger:       logger,
	}, nil
}

func newIndexStore(cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Backend {
	case "opensearch":
		return index.NewOpenSearchStore(index.OpenSearchConfig{
			BaseURL:   cfg.Index.BaseURL,
			IndexName: cfg.Index.IndexName,
		})
	case "badger", "":
		return index.NewBadgerStore(cfg.Index.Path)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func newEmbedderClient(cfg *config.Config) (embedder.Client, error) {
	embedCfg := &embedder.Config{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}

	var client embedder.Client
	var err error
	switch cfg.Embedding.Provider {
	case "openai":
		client, err = embedder.NewOpenAIClient(embedCfg)
	case "local", "":
		client, err = embedder.NewLocalClient(embedCfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CircuitBreaker.Enabled {
		var alerter alert.Alerter = &alert.NoOpAlerter{}
		if cfg.Alert.Enabled {
			alerter = alert.NewEmailAlerter(cfg.Alert)
		}
		client = embedder.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "embedder")
	}
	return client, nil
}

// Stats reports namespace-scoped node and relationship counts.
func (c *Client) Stats(ctx context.Context) (map[string]int64, error) {
	return c.graph.Stats(ctx)
}

// Close releases the graph, index, and embedder backends. The first
// error is returned but all backends are closed.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.graph.Close(ctx); err != nil {
		firstErr = err
	}
	if err := c.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ensureKnownConcepts loads the concept vocabulary from the graph into
// the extractor on first use after startup.
func (c *Client) ensureKnownConcepts(ctx context.Context) {
	c.conceptsMu.Lock()
	defer c.conceptsMu.Unlock()
	if c.conceptsLoaded {
		return
	}
	names, err := c.graph.ConceptNames(ctx)
	if err != nil {
		c.logger.Warn("loading concept vocabulary failed", "error", err)
		return
	}
	c.extractor.SetKnownConcepts(names)
	c.conceptsLoaded = true
}

// markConceptsLoaded records that the extractor vocabulary is current,
// skipping the lazy load on the next retrieval.
func (c *Client) markConceptsLoaded() {
	c.conceptsMu.Lock()
	c.conceptsLoaded = true
	c.conceptsMu.Unlock()
}
