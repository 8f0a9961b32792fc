// Package index provides the lexical and vector search layer used by
// hybrid retrieval. Store is the contract; OpenSearchStore talks to an
// OpenSearch-compatible cluster over HTTP, and BadgerStore keeps a
// local persistent index for development and tests.
package index
