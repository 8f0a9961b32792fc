package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/extractor"
	"github.com/soundprediction/studygraph/pkg/types"
	"github.com/soundprediction/studygraph/pkg/utils"
)

const (
	defaultMaxQueryConcepts = 5
	defaultExpansionHops    = 1
	defaultNeighborLimit    = 10
)

// QueryExpander rewrites a query with concepts found in it plus their
// graph neighbors, so the lexical arm can match modules that discuss a
// concept under a related name.
type QueryExpander struct {
	extractor     *extractor.Extractor
	traverser     driver.GraphTraverser
	maxHops       int
	maxConcepts   int
	neighborLimit int
}

// ExpanderOptions configures query expansion. Zero values take
// defaults.
type ExpanderOptions struct {
	// MaxHops bounds the graph traversal distance per concept.
	MaxHops int
	// MaxQueryConcepts caps how many concepts are taken from the query.
	MaxQueryConcepts int
	// NeighborLimit caps neighbors pulled in per concept.
	NeighborLimit int
}

func NewQueryExpander(ex *extractor.Extractor, traverser driver.GraphTraverser, opts ExpanderOptions) *QueryExpander {
	if opts.MaxHops <= 0 {
		opts.MaxHops = defaultExpansionHops
	}
	if opts.MaxQueryConcepts <= 0 {
		opts.MaxQueryConcepts = defaultMaxQueryConcepts
	}
	if opts.NeighborLimit <= 0 {
		opts.NeighborLimit = defaultNeighborLimit
	}
	return &QueryExpander{
		extractor:     ex,
		traverser:     traverser,
		maxHops:       opts.MaxHops,
		maxConcepts:   opts.MaxQueryConcepts,
		neighborLimit: opts.NeighborLimit,
	}
}

// Expand extracts concepts from the query, widens them over RELATED
// and PREREQ edges, and returns the rewritten query. Extraction
// degrades to plain substring matching when the richer strategies
// fail, and a concept whose traversal fails simply contributes no
// neighbors. Expand itself never fails.
func (q *QueryExpander) Expand(ctx context.Context, query string) types.Expansion {
	expansion := types.Expansion{
		OriginalQuery: query,
		ExpandedQuery: query,
	}

	matches, err := q.extractor.Extract(ctx, query, types.StrategyEnsemble, q.maxConcepts)
	if err != nil {
		slog.Warn("ensemble extraction failed, falling back to substring matching",
			"error", err)
		matches, _ = q.extractor.Extract(ctx, query, types.StrategySubstring, q.maxConcepts)
	}
	if len(matches) == 0 {
		return expansion
	}

	extracted := make([]string, 0, len(matches))
	for _, m := range matches {
		extracted = append(extracted, m.Name)
	}
	expansion.ExtractedConcepts = extracted

	expanded := make([]string, 0, len(extracted))
	seen := make(map[string]struct{})
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		expanded = append(expanded, name)
	}
	for _, name := range extracted {
		add(name)
	}

	lookups := make([]func() ([]driver.ConceptNeighbor, error), 0, len(extracted))
	for _, name := range extracted {
		name := name
		lookups = append(lookups, func() ([]driver.ConceptNeighbor, error) {
			return q.traverser.TraverseNeighbors(ctx, name, nil, q.maxHops, q.neighborLimit)
		})
	}
	results, errs := utils.ExecuteWithResults(ctx, len(lookups), lookups...)
	for i, neighbors := range results {
		if errs[i] != nil {
			slog.Warn("concept expansion failed", "concept", extracted[i], "error", errs[i])
			continue
		}
		for _, neighbor := range neighbors {
			add(neighbor.Name)
		}
	}

	expansion.ExpandedConcepts = expanded
	expansion.ExpandedQuery = query + " " + strings.Join(expanded, " ")
	return expansion
}
