// Package search implements hybrid retrieval over the study corpus.
//
// Retrieval combines a lexical+vector document index with the concept
// graph. The Orchestrator dispatches a query to one or both backends,
// fuses ranked lists with reciprocal rank fusion, and optionally
// expands hits with their sequential chunk neighborhood.
//
//	orch := search.NewOrchestrator(search.OrchestratorConfig{
//	    Hybrid:   hybrid,
//	    Graph:    graphStore,
//	    Embedder: embedClient,
//	})
//	chunks, err := orch.Retrieve(ctx, "how do plants store energy", search.Options{TopK: 10})
//
// Query expansion is a separate concern: QueryExpander rewrites a query
// with graph-neighboring concepts before retrieval, and WindowExpander
// widens results with adjacent chunks after retrieval.
package search
