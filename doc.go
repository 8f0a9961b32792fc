// Package studygraph is a knowledge-graph-aware retrieval engine for
// educational corpora.
//
// The engine builds a concept graph from course material (modules,
// chunks, concepts, and PREREQ/RELATED edges mined from the text),
// indexes the chunks for lexical and vector search, and answers
// queries with hybrid retrieval that can expand the query over the
// concept graph and widen hits with their sequential neighbors.
//
// Basic usage:
//
//	cfg, _ := config.Load()
//	client, err := studygraph.NewClient(ctx, cfg)
//	if err != nil { ... }
//	defer client.Close(ctx)
//
//	_, err = client.BuildCorpus(ctx, "corpus.jsonl", nil)
//	result, err := client.Retrieve(ctx, "how do plants store energy", nil)
//
// Multi-corpus deployments hold one engine per corpus in a Registry.
package studygraph
