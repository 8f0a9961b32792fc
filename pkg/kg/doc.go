// Package kg builds the concept knowledge graph from corpus records:
// concept discovery and deduplication, COVERS/RELATED/PREREQ mining,
// chunk chain construction, PageRank importance scoring, and
// persistence into a graph store.
package kg
