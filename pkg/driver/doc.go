// Package driver provides the graph storage layer for studygraph.
//
// The GraphStore interface covers everything the knowledge-graph builder
// and the retrieval orchestrator need from a graph database: node and
// edge upserts, weighted neighborhood traversal, vector and fulltext
// search over the stored corpus, and sequential chunk-window lookups.
// Neo4jStore is the production implementation backed by Neo4j.
//
// All stores are namespaced. A namespace isolates one corpus from
// another inside a shared database by prefixing node labels and index
// names, so several course corpora can live side by side.
package driver
