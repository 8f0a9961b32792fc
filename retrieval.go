package studygraph

import (
	"context"
	"fmt"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/index"
	"github.com/soundprediction/studygraph/pkg/search"
	"github.com/soundprediction/studygraph/pkg/types"
)

// RetrieveOptions tunes one retrieval request. Nil means the
// configured defaults.
type RetrieveOptions struct {
	// TopK caps the number of direct hits. Zero uses retrieval.top_k.
	TopK int
	// Mode overrides the configured backend mode.
	Mode types.BackendMode
	// ModuleID restricts lexical and vector search to one module.
	ModuleID string
	// Section restricts lexical and vector search to one section.
	Section string

	// ExpandQuery and ExpandWindow override the configured defaults when
	// set.
	ExpandQuery  *bool
	ExpandWindow *bool

	// WindowSize is how many chunks to pull on each side during window
	// expansion. Zero uses retrieval.window_size.
	WindowSize int
}

func (c *Client) searchOptions(opts *RetrieveOptions) search.Options {
	if opts == nil {
		opts = &RetrieveOptions{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = c.cfg.Retrieval.TopK
	}

	expandQuery := c.cfg.Retrieval.UseGraphExpansion
	if opts.ExpandQuery != nil {
		expandQuery = *opts.ExpandQuery
	}
	expandWindow := c.cfg.Retrieval.UseWindow
	if opts.ExpandWindow != nil {
		expandWindow = *opts.ExpandWindow
	}

	var filter *index.Filter
	if opts.ModuleID != "" || opts.Section != "" {
		filter = &index.Filter{ModuleID: opts.ModuleID, Section: opts.Section}
	}

	return search.Options{
		TopK:         topK,
		Mode:         opts.Mode,
		Filter:       filter,
		ExpandQuery:  expandQuery,
		ExpandWindow: expandWindow,
		WindowSize:   opts.WindowSize,
	}
}

// Retrieve answers a query with the configured retrieval pipeline.
func (c *Client) Retrieve(ctx context.Context, query string, opts *RetrieveOptions) (*search.Result, error) {
	c.ensureKnownConcepts(ctx)
	return c.orchestrator.Retrieve(ctx, query, c.searchOptions(opts))
}

// RetrieveMerged retrieves with window expansion and merges each
// module's chunks into one contiguous context block.
func (c *Client) RetrieveMerged(ctx context.Context, query string, opts *RetrieveOptions) ([]types.ContextBlock, error) {
	c.ensureKnownConcepts(ctx)

	searchOpts := c.searchOptions(opts)
	// Merging happens below on the full window, not in the orchestrator.
	searchOpts.ExpandWindow = false

	result, err := c.orchestrator.Retrieve(ctx, query, searchOpts)
	if err != nil {
		return nil, err
	}
	return c.window.ExpandMerged(ctx, result.Chunks, searchOpts.WindowSize), nil
}

// SearchConcepts finds concepts whose names match the query via the
// graph store's fulltext index.
func (c *Client) SearchConcepts(ctx context.Context, query string, limit int) ([]driver.ConceptHit, error) {
	if limit <= 0 {
		limit = 10
	}
	hits, err := c.graph.FulltextSearch(ctx, driver.FulltextIndexName(c.namespace), query, limit)
	if err != nil {
		return nil, fmt.Errorf("concept search: %w", err)
	}
	return hits, nil
}
