package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/embedder"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/types"
	"github.com/soundprediction/studygraph/pkg/utils"
)

const defaultRetrieveTimeout = 30 * time.Second

// Orchestrator routes a retrieval request through the configured
// backend(s) and applies the optional query-expansion and
// window-expansion passes around the search itself.
type Orchestrator struct {
	cfg OrchestratorConfig
}

// OrchestratorConfig wires the orchestrator's collaborators. Hybrid is
// required for lexical_vector and both modes; Graph, Embedder, and
// VectorIndexName are required for graph_native and both modes.
// Expander and Window are optional passes.
type OrchestratorConfig struct {
	Hybrid          *HybridRetriever
	Graph           driver.GraphSearcher
	Embedder        embedder.Client
	VectorIndexName string

	Expander *QueryExpander
	Window   *WindowExpander

	// Mode is the default backend mode, overridable per request.
	Mode types.BackendMode
	// RRFK is the fusion constant for both mode. Zero means DefaultRRFK.
	RRFK int
	// ConceptHops bounds concept enrichment in graph_native search.
	ConceptHops int
	// Timeout bounds a whole Retrieve call. Zero means 30s.
	Timeout time.Duration
}

// Options tunes a single retrieval request.
type Options struct {
	// TopK caps the number of direct hits. Zero means 10.
	TopK int
	// Mode overrides the orchestrator's default backend mode.
	Mode types.BackendMode
	// Filter restricts lexical and vector search to matching documents.
	Filter *index.Filter
	// ExpandQuery rewrites the query with graph-neighboring concepts
	// before searching.
	ExpandQuery bool
	// ExpandWindow pulls sequential neighbor chunks into the results.
	ExpandWindow bool
	// WindowSize is how many chunks to pull on each side when expanding
	// the window. Zero means the configured default.
	WindowSize int
}

// Result is a completed retrieval. Chunks is never empty; an empty
// search outcome surfaces as ErrNoContent instead.
type Result struct {
	Chunks    []*types.ScoredChunk `json:"chunks"`
	Expansion *types.Expansion     `json:"expansion,omitempty"`
	Mode      types.BackendMode    `json:"mode"`
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = types.BackendLexicalVector
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if cfg.ConceptHops <= 0 {
		cfg.ConceptHops = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRetrieveTimeout
	}
	return &Orchestrator{cfg: cfg}
}

// Retrieve runs the full pipeline for one query. The terminal states
// are a non-empty chunk list or an error; a search that succeeds but
// matches nothing returns ErrNoContent.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", types.ErrNoContent)
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	mode := opts.Mode
	if mode == "" {
		mode = o.cfg.Mode
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	result := &Result{Mode: mode}
	searchQuery := query
	if opts.ExpandQuery && o.cfg.Expander != nil {
		expansion := o.cfg.Expander.Expand(ctx, query)
		result.Expansion = &expansion
		searchQuery = expansion.ExpandedQuery
	}

	chunks, err := o.dispatch(ctx, mode, searchQuery, opts)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks matched query: %w", types.ErrNoContent)
	}

	if opts.ExpandWindow && o.cfg.Window != nil {
		chunks = o.cfg.Window.Expand(ctx, chunks, opts.WindowSize)
	}
	result.Chunks = chunks
	return result, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, mode types.BackendMode, query string, opts Options) ([]*types.ScoredChunk, error) {
	switch mode {
	case types.BackendLexicalVector:
		if o.cfg.Hybrid == nil {
			return nil, fmt.Errorf("lexical_vector backend not configured: %w", types.ErrStrategyUnavailable)
		}
		return o.cfg.Hybrid.Search(ctx, query, opts.TopK, opts.Filter)

	case types.BackendGraphNative:
		return o.graphNative(ctx, query, opts.TopK)

	case types.BackendBoth:
		return o.both(ctx, query, opts)

	default:
		return nil, fmt.Errorf("unknown backend mode %q", mode)
	}
}

func (o *Orchestrator) graphNative(ctx context.Context, query string, topK int) ([]*types.ScoredChunk, error) {
	if o.cfg.Graph == nil || o.cfg.Embedder == nil {
		return nil, fmt.Errorf("graph_native backend not configured: %w", types.ErrStrategyUnavailable)
	}
	vector, err := o.cfg.Embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	chunks, err := o.cfg.Graph.GraphVectorSearch(ctx, o.cfg.VectorIndexName, vector, topK, o.cfg.ConceptHops)
	if err != nil {
		return nil, fmt.Errorf("graph vector search: %w", err)
	}
	return chunks, nil
}

// both runs the index and graph backends concurrently and fuses their
// lists. One failing backend degrades to the other; both failing is
// an error.
func (o *Orchestrator) both(ctx context.Context, query string, opts Options) ([]*types.ScoredChunk, error) {
	arms := []func() ([]*types.ScoredChunk, error){
		func() ([]*types.ScoredChunk, error) {
			return o.dispatch(ctx, types.BackendLexicalVector, query, opts)
		},
		func() ([]*types.ScoredChunk, error) {
			return o.graphNative(ctx, query, opts.TopK)
		},
	}

	results, errs := utils.ExecuteWithResults(ctx, len(arms), arms...)

	var lists [][]*types.ScoredChunk
	var lastErr error
	for i, chunks := range results {
		if errs[i] != nil {
			slog.Warn("backend failed in combined mode", "error", errs[i])
			lastErr = errs[i]
			continue
		}
		lists = append(lists, chunks)
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("both backends failed: %w", lastErr)
	}
	if len(lists) == 1 {
		return lists[0], nil
	}
	return RRFuse(lists, o.cfg.RRFK, opts.TopK), nil
}
