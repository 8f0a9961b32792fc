package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/studygraph/pkg/embedder"
	"github.com/soundprediction/studygraph/pkg/types"
	"github.com/soundprediction/studygraph/pkg/utils"
)

// Fixed strategy confidences. An entity span matching a known concept
// outranks a noun-phrase match.
const (
	entityMatchScore = 0.8
	nounPhraseScore  = 0.6

	defaultEmbeddingThreshold = 0.5
	defaultTopK               = 10
)

// Options configures optional strategy dependencies. A nil Recognizer
// disables the named-entity strategy; a nil Embedder disables the
// embedding-similarity strategy.
type Options struct {
	Recognizer         EntityRecognizer
	Embedder           embedder.Client
	EmbeddingThreshold float64
	MaxKeywords        int
}

// Extractor matches text against a known concept vocabulary.
type Extractor struct {
	recognizer         EntityRecognizer
	embedder           embedder.Client
	embeddingThreshold float64
	maxKeywords        int

	mu sync.RWMutex
	// concepts is sorted by length descending then name, so substring
	// matching prefers the longer, more specific concept.
	concepts          []string
	conceptEmbeddings map[string][]float32
}

// New creates an extractor over the given concept vocabulary.
func New(knownConcepts []string, opts Options) *Extractor {
	threshold := opts.EmbeddingThreshold
	if threshold <= 0 {
		threshold = defaultEmbeddingThreshold
	}
	maxKeywords := opts.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = defaultKeywords
	}

	e := &Extractor{
		recognizer:         opts.Recognizer,
		embedder:           opts.Embedder,
		embeddingThreshold: threshold,
		maxKeywords:        maxKeywords,
	}
	e.SetKnownConcepts(knownConcepts)
	return e
}

// SetKnownConcepts replaces the vocabulary and invalidates cached
// concept embeddings.
func (e *Extractor) SetKnownConcepts(concepts []string) {
	sorted := make([]string, 0, len(concepts))
	seen := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.concepts = sorted
	e.conceptEmbeddings = nil
}

// KnownConcepts returns the current vocabulary.
func (e *Extractor) KnownConcepts() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.concepts...)
}

// HasNER reports whether the named-entity strategy is usable.
func (e *Extractor) HasNER() bool {
	return e.recognizer != nil && e.recognizer.Available()
}

// HasEmbedding reports whether the embedding-similarity strategy is
// usable.
func (e *Extractor) HasEmbedding() bool {
	return e.embedder != nil
}

// Extract runs the chosen strategy and returns matches sorted by score
// descending, truncated to topK.
func (e *Extractor) Extract(ctx context.Context, text string, strategy types.Strategy, topK int) ([]types.ConceptMatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	var matches []types.ConceptMatch
	var err error
	switch strategy {
	case types.StrategySubstring:
		matches = e.extractSubstring(text)
	case types.StrategyKeyword:
		matches = e.extractKeyword(text)
	case types.StrategyNER:
		matches, err = e.extractNER(text)
	case types.StrategyEmbedding:
		matches, err = e.extractEmbedding(ctx, text)
	case types.StrategyEnsemble:
		matches = e.extractEnsemble(text)
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}

	sortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// extractSubstring matches every known concept contained in the text,
// case-insensitively. All matches score 1.0; the length-descending
// vocabulary order breaks ties toward the more specific name.
func (e *Extractor) extractSubstring(text string) []types.ConceptMatch {
	textLower := strings.ToLower(text)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var matches []types.ConceptMatch
	for _, concept := range e.concepts {
		if strings.Contains(textLower, strings.ToLower(concept)) {
			matches = append(matches, types.ConceptMatch{
				Name:         concept,
				Score:        1.0,
				Strategy:     types.StrategySubstring,
				OriginalText: concept,
			})
		}
	}
	return matches
}

// extractKeyword scores salient phrases statistically, inverts the raw
// scores onto a 0-1 scale, and keeps phrases that match the vocabulary.
func (e *Extractor) extractKeyword(text string) []types.ConceptMatch {
	var matches []types.ConceptMatch
	for _, kw := range ExtractKeywords(text, e.maxKeywords) {
		concept := e.matchToKnown(kw.Text)
		if concept == "" {
			continue
		}
		matches = append(matches, types.ConceptMatch{
			Name:         concept,
			Score:        1.0 / (1.0 + kw.Score),
			Strategy:     types.StrategyKeyword,
			OriginalText: kw.Text,
		})
	}
	return dedupeMatches(matches)
}

// extractNER matches recognized entity spans (0.8) and noun-phrase
// candidates (0.6) against the vocabulary.
func (e *Extractor) extractNER(text string) ([]types.ConceptMatch, error) {
	if !e.HasNER() {
		return nil, fmt.Errorf("%w: named-entity recognizer not loaded", types.ErrStrategyUnavailable)
	}

	spans, err := e.recognizer.Recognize(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStrategyUnavailable, err)
	}

	var matches []types.ConceptMatch
	for _, span := range spans {
		spanText := strings.TrimSpace(span.Text)
		if spanText == "" {
			continue
		}
		if concept := e.matchToKnown(spanText); concept != "" {
			matches = append(matches, types.ConceptMatch{
				Name:         concept,
				Score:        entityMatchScore,
				Strategy:     types.StrategyNER,
				OriginalText: spanText,
			})
		}
	}

	for _, phrase := range nounPhraseCandidates(text) {
		if concept := e.matchToKnown(phrase); concept != "" {
			matches = append(matches, types.ConceptMatch{
				Name:         concept,
				Score:        nounPhraseScore,
				Strategy:     types.StrategyNER,
				OriginalText: phrase,
			})
		}
	}

	return dedupeMatches(matches), nil
}

// extractEmbedding keeps concepts whose cached embedding is within the
// similarity threshold of the text embedding.
func (e *Extractor) extractEmbedding(ctx context.Context, text string) ([]types.ConceptMatch, error) {
	if !e.HasEmbedding() {
		return nil, fmt.Errorf("%w: no embedding client configured", types.ErrStrategyUnavailable)
	}

	conceptEmbeddings, err := e.ensureConceptEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStrategyUnavailable, err)
	}
	if len(conceptEmbeddings) == 0 {
		return nil, nil
	}

	queryEmbedding, err := e.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStrategyUnavailable, err)
	}

	var matches []types.ConceptMatch
	for concept, embedding := range conceptEmbeddings {
		similarity := utils.CosineSimilarity(queryEmbedding, embedding)
		if similarity >= e.embeddingThreshold {
			matches = append(matches, types.ConceptMatch{
				Name:     concept,
				Score:    similarity,
				Strategy: types.StrategyEmbedding,
			})
		}
	}
	return matches, nil
}

// extractEnsemble unions named-entity and keyword matches by concept
// name and boosts concepts found by multiple strategies. A degraded
// strategy contributes nothing and is logged, never escalated.
func (e *Extractor) extractEnsemble(text string) []types.ConceptMatch {
	byName := make(map[string][]types.ConceptMatch)

	if e.HasNER() {
		nerMatches, err := e.extractNER(text)
		if err != nil {
			slog.Warn("Extraction strategy degraded", "strategy", types.StrategyNER, "error", err)
		}
		for _, m := range nerMatches {
			byName[m.Name] = append(byName[m.Name], m)
		}
	}

	for _, m := range e.extractKeyword(text) {
		byName[m.Name] = append(byName[m.Name], m)
	}

	fused := make([]types.ConceptMatch, 0, len(byName))
	for name, group := range byName {
		strategies := make(map[types.Strategy]struct{})
		maxScore := 0.0
		for _, m := range group {
			strategies[m.Strategy] = struct{}{}
			if m.Score > maxScore {
				maxScore = m.Score
			}
		}
		boosted := maxScore * (1 + 0.2*float64(len(strategies)-1))
		if boosted > 1.0 {
			boosted = 1.0
		}
		fused = append(fused, types.ConceptMatch{
			Name:         name,
			Score:        boosted,
			Strategy:     types.StrategyEnsemble,
			OriginalText: group[0].OriginalText,
		})
	}
	return fused
}

// matchToKnown resolves a text span to a vocabulary concept: exact
// case-insensitive match first, then containment in either direction.
func (e *Extractor) matchToKnown(text string) string {
	textLower := strings.ToLower(strings.TrimSpace(text))
	if textLower == "" {
		return ""
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, concept := range e.concepts {
		if strings.ToLower(concept) == textLower {
			return concept
		}
	}
	for _, concept := range e.concepts {
		conceptLower := strings.ToLower(concept)
		if strings.Contains(textLower, conceptLower) || strings.Contains(conceptLower, textLower) {
			return concept
		}
	}
	return ""
}

// ensureConceptEmbeddings lazily embeds the whole vocabulary in one
// batch and caches the result until the vocabulary changes.
func (e *Extractor) ensureConceptEmbeddings(ctx context.Context) (map[string][]float32, error) {
	e.mu.RLock()
	cached := e.conceptEmbeddings
	concepts := e.concepts
	e.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}
	if len(concepts) == 0 {
		return map[string][]float32{}, nil
	}

	embeddings, err := e.embedder.Embed(ctx, concepts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(concepts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(concepts))
	}

	result := make(map[string][]float32, len(concepts))
	for i, concept := range concepts {
		result[concept] = embeddings[i]
	}

	e.mu.Lock()
	e.conceptEmbeddings = result
	e.mu.Unlock()

	slog.Debug("Cached concept embeddings", "count", len(result))
	return result, nil
}

// nounPhraseCandidates returns multi-word candidate phrases for the
// noun-phrase arm of the named-entity strategy.
func nounPhraseCandidates(text string) []string {
	candidates := make(map[string]*candidate)
	words, _ := splitWords(text)
	collectCandidates(words, candidates)

	phrases := make([]string, 0, len(candidates))
	for phrase := range candidates {
		if strings.Contains(phrase, " ") {
			phrases = append(phrases, phrase)
		}
	}
	sort.Strings(phrases)
	return phrases
}

// dedupeMatches keeps the highest-scoring match per concept name.
func dedupeMatches(matches []types.ConceptMatch) []types.ConceptMatch {
	best := make(map[string]types.ConceptMatch)
	for _, m := range matches {
		if existing, ok := best[m.Name]; !ok || m.Score > existing.Score {
			best[m.Name] = m
		}
	}
	out := make([]types.ConceptMatch, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	return out
}

// sortMatches orders by score descending, then longer name, then name.
func sortMatches(matches []types.ConceptMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) > len(matches[j].Name)
		}
		return matches[i].Name < matches[j].Name
	})
}
