package types

// ContextKey is a type for context keys used across the project.
type ContextKey string

const (
	// ContextKeyRequestID identifies a single retrieval request.
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyCorpusID identifies the corpus a request is scoped to.
	ContextKeyCorpusID ContextKey = "corpus_id"
	// ContextKeyRequestSource identifies where a request originated (server, cli).
	ContextKeyRequestSource ContextKey = "request_source"
)

// Strategy names a concept-extraction strategy.
type Strategy string

const (
	// StrategySubstring matches known concept names against the text directly.
	StrategySubstring Strategy = "substring"
	// StrategyKeyword scores candidate keywords statistically and matches them
	// against known concepts.
	StrategyKeyword Strategy = "keyword"
	// StrategyNER matches named-entity spans and noun phrases against known concepts.
	StrategyNER Strategy = "ner"
	// StrategyEmbedding matches by cosine similarity to cached concept embeddings.
	StrategyEmbedding Strategy = "embedding"
	// StrategyEnsemble combines NER and keyword extraction with score fusion.
	StrategyEnsemble Strategy = "ensemble"
)

// ConceptMatch is a concept found in a piece of text by an extraction strategy.
type ConceptMatch struct {
	// Name is the canonical concept name the match resolved to.
	Name string `json:"name"`
	// Score is the confidence/relevance score in [0,1].
	Score float64 `json:"score"`
	// Strategy is the strategy that produced this match.
	Strategy Strategy `json:"strategy"`
	// OriginalText is the text span that matched, when known.
	OriginalText string `json:"original_text,omitempty"`
}

// ConceptNode is a named topical entity extracted from corpus text.
// Concept names are the natural key and are case-normalized on merge.
type ConceptNode struct {
	Name string `json:"name"`
	// Frequency counts how many module texts the concept was extracted from.
	Frequency int `json:"frequency"`
	// ImportanceScore is the PageRank-normalized centrality in [0,1].
	ImportanceScore float64 `json:"importance_score"`
	// IsKeyTerm reports whether the concept appears in a module's key-term list.
	IsKeyTerm bool `json:"is_key_term"`
	// SourceModules is the set of module IDs the concept was extracted from.
	SourceModules map[string]struct{} `json:"source_modules"`
}

// NewConceptNode creates a concept node with the given source modules.
func NewConceptNode(name string, frequency int, sourceModules ...string) *ConceptNode {
	n := &ConceptNode{
		Name:          name,
		Frequency:     frequency,
		SourceModules: make(map[string]struct{}, len(sourceModules)),
	}
	for _, m := range sourceModules {
		n.SourceModules[m] = struct{}{}
	}
	return n
}

// ModuleNode is one ingested document unit (a textbook module).
type ModuleNode struct {
	ModuleID string   `json:"module_id"`
	Title    string   `json:"title"`
	KeyTerms []string `json:"key_terms"`
}

// ChunkNode is a bounded span of corpus text, the unit of retrieval.
// Chunks within a module form a singly-linked sequence via the prev/next
// pointers; adjacent pointers are mutually consistent and the chain is
// acyclic and total-ordered per module.
type ChunkNode struct {
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	ModuleID   string `json:"module_id"`
	Section    string `json:"section"`
	ChunkIndex int    `json:"chunk_index"`
	// Embedding is nil until the chunk has been indexed.
	Embedding   []float32 `json:"embedding,omitempty"`
	PrevChunkID string    `json:"prev_chunk_id,omitempty"`
	NextChunkID string    `json:"next_chunk_id,omitempty"`
}

// CorpusRecord is one normalized input record for graph construction and
// indexing. ModuleID and Text are required; records missing either are
// skipped during a build.
type CorpusRecord struct {
	ModuleID    string   `json:"module_id"`
	ModuleTitle string   `json:"module_title"`
	Section     string   `json:"section"`
	Text        string   `json:"text"`
	KeyTerms    []string `json:"key_terms"`
}

// ScoredChunk is a retrieval-time result record. It is constructed per query
// and never persisted.
type ScoredChunk struct {
	ChunkID     string  `json:"chunk_id"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
	ModuleID    string  `json:"module_id"`
	ModuleTitle string  `json:"module_title,omitempty"`
	Section     string  `json:"section,omitempty"`
	ChunkIndex  int     `json:"chunk_index"`

	// RRFScore is set when the chunk passed through rank fusion.
	RRFScore float64 `json:"rrf_score,omitempty"`
	// IsWindowContext marks chunks pulled in by window expansion rather than
	// retrieved directly.
	IsWindowContext bool `json:"is_window_context"`
	// OriginalScore carries the seed hit's score onto window-context chunks.
	OriginalScore float64 `json:"original_score,omitempty"`

	PrevChunkID string `json:"prev_chunk_id,omitempty"`
	NextChunkID string `json:"next_chunk_id,omitempty"`
	// MentionedConcepts and RelatedConcepts are filled by graph-native
	// retrieval when concept enrichment is requested.
	MentionedConcepts []string `json:"mentioned_concepts,omitempty"`
	RelatedConcepts   []string `json:"related_concepts,omitempty"`
}

// ContextBlock is a per-module run of chunks merged into one text block,
// produced by the merged window-expansion variant.
type ContextBlock struct {
	ModuleID         string   `json:"module_id"`
	Section          string   `json:"section,omitempty"`
	Text             string   `json:"text"`
	ChunkIDs         []string `json:"chunk_ids"`
	ChunkCount       int      `json:"chunk_count"`
	OriginalHitCount int      `json:"original_hit_count"`
}

// Expansion is the result of query expansion over the concept graph.
type Expansion struct {
	OriginalQuery     string   `json:"original_query"`
	ExtractedConcepts []string `json:"extracted_concepts"`
	ExpandedConcepts  []string `json:"expanded_concepts"`
	ExpandedQuery     string   `json:"expanded_query"`
}

// BackendMode selects which retrieval path(s) a request uses.
type BackendMode string

const (
	// BackendLexicalVector queries the lexical+vector index only (default).
	BackendLexicalVector BackendMode = "lexical_vector"
	// BackendGraphNative runs a combined vector+traversal query on the graph store.
	BackendGraphNative BackendMode = "graph_native"
	// BackendBoth runs both arms concurrently and merges them with RRF.
	BackendBoth BackendMode = "both"
)
