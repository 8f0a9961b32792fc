package kg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/soundprediction/studygraph/pkg/extractor"
	"github.com/soundprediction/studygraph/pkg/types"
)

const (
	defaultMaxConcepts       = 200
	defaultCooccurrenceMin   = 5
	keywordsPerModule        = 20
	maxConceptWords          = 4
	minConceptLen            = 3
	prereqWeight             = 0.8
	prereqConfidence         = 0.6
	relatedConfidence        = 0.7
	evidenceContextBefore    = 50
	evidenceContextAfter     = 20
)

// BuilderOptions configures a graph build.
type BuilderOptions struct {
	// MaxConcepts caps the concept vocabulary by aggregate frequency.
	MaxConcepts int
	// CooccurrenceMinCount is the minimum number of shared text units
	// before two concepts earn a RELATED edge.
	CooccurrenceMinCount int
	// Lexicon supplies the stop list and prerequisite patterns. Nil uses
	// the defaults.
	Lexicon *Lexicon
}

// Builder constructs a KnowledgeGraph from corpus records.
type Builder struct {
	maxConcepts      int
	cooccurrenceMin  int
	lexicon          *Lexicon
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts BuilderOptions) *Builder {
	maxConcepts := opts.MaxConcepts
	if maxConcepts <= 0 {
		maxConcepts = defaultMaxConcepts
	}
	minCount := opts.CooccurrenceMinCount
	if minCount <= 0 {
		minCount = defaultCooccurrenceMin
	}
	lexicon := opts.Lexicon
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}

	return &Builder{
		maxConcepts:     maxConcepts,
		cooccurrenceMin: minCount,
		lexicon:         lexicon,
	}
}

type moduleData struct {
	title    string
	keyTerms []string
	records  []types.CorpusRecord
}

// Build runs the full construction pipeline: module grouping, concept
// discovery and dedup, COVERS/RELATED/PREREQ mining, chunk chain
// assembly, and PageRank importance scoring. Malformed records are
// skipped, never fatal.
func (b *Builder) Build(ctx context.Context, records []types.CorpusRecord) (*types.KnowledgeGraph, error) {
	kg := types.NewKnowledgeGraph()

	valid := make([]types.CorpusRecord, 0, len(records))
	for i, record := range records {
		if record.ModuleID == "" || strings.TrimSpace(record.Text) == "" {
			slog.Warn("Skipping malformed corpus record",
				"index", i, "error", types.ErrMalformedRecord)
			continue
		}
		valid = append(valid, record)
	}
	slog.Info("Building knowledge graph", "records", len(valid), "skipped", len(records)-len(valid))

	if len(valid) == 0 {
		return kg, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	moduleOrder, modules := groupByModule(valid)

	for _, moduleID := range moduleOrder {
		data := modules[moduleID]
		kg.AddModule(&types.ModuleNode{
			ModuleID: moduleID,
			Title:    data.title,
			KeyTerms: data.keyTerms,
		})
	}

	// Concept discovery per module, then global dedup and top-N ranking.
	frequency := make(map[string]int)
	conceptModules := make(map[string][]string)
	for _, moduleID := range moduleOrder {
		data := modules[moduleID]
		texts := make([]string, 0, len(data.records))
		for _, r := range data.records {
			texts = append(texts, r.Text)
		}

		concepts := b.discoverConcepts(strings.Join(texts, " "), data.keyTerms)
		for _, concept := range concepts {
			frequency[concept]++
			conceptModules[concept] = append(conceptModules[concept], moduleID)
		}
	}

	candidates := make([]string, 0, len(frequency))
	for name := range frequency {
		candidates = append(candidates, name)
	}
	deduped := DeduplicateConcepts(candidates)

	sort.Slice(deduped, func(i, j int) bool {
		if frequency[deduped[i]] != frequency[deduped[j]] {
			return frequency[deduped[i]] > frequency[deduped[j]]
		}
		return deduped[i] < deduped[j]
	})
	if len(deduped) > b.maxConcepts {
		deduped = deduped[:b.maxConcepts]
	}
	slog.Info("Selected top concepts", "count", len(deduped))

	for _, name := range deduped {
		node := types.NewConceptNode(name, frequency[name], conceptModules[name]...)
		node.IsKeyTerm = isKeyTerm(name, conceptModules[name], modules)
		kg.AddConcept(node)
	}

	// COVERS edges for every observed (module, concept) pair.
	for _, name := range deduped {
		for _, moduleID := range conceptModules[name] {
			kg.AddRelationship(types.Relationship{
				Source:     moduleID,
				Target:     name,
				Type:       types.RelCovers,
				Weight:     1.0,
				Confidence: 1.0,
			})
		}
	}

	b.buildChunkChains(kg, moduleOrder, modules, deduped)
	b.mineRelated(kg, valid, deduped)
	b.minePrereqs(kg, valid, deduped)
	b.computeImportance(kg)

	slog.Info("Knowledge graph built", "stats", kg.Stats())
	return kg, nil
}

// discoverConcepts combines module key terms with statistically salient
// keywords, filters boilerplate, and deduplicates by containment.
func (b *Builder) discoverConcepts(text string, keyTerms []string) []string {
	seen := make(map[string]struct{})
	var concepts []string
	add := func(name string) {
		name = titleCase(strings.TrimSpace(name))
		if len(name) < minConceptLen || b.lexicon.IsStopConcept(name) {
			return
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			return
		}
		seen[strings.ToLower(name)] = struct{}{}
		concepts = append(concepts, name)
	}

	// Key terms are curated; they always make the candidate list.
	for _, term := range keyTerms {
		add(term)
	}

	for _, kw := range extractor.ExtractKeywords(text, keywordsPerModule) {
		if len(strings.Fields(kw.Text)) > maxConceptWords {
			continue
		}
		add(kw.Text)
	}

	return DeduplicateConcepts(concepts)
}

// DeduplicateConcepts drops any candidate that is a case-insensitive
// proper substring of an already-kept longer candidate. Candidates are
// considered longest first.
func DeduplicateConcepts(concepts []string) []string {
	sorted := append([]string(nil), concepts...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	var kept []string
	for _, concept := range sorted {
		conceptLower := strings.ToLower(concept)
		substring := false
		for _, k := range kept {
			kLower := strings.ToLower(k)
			if conceptLower != kLower && strings.Contains(kLower, conceptLower) {
				substring = true
				break
			}
		}
		if !substring {
			kept = append(kept, concept)
		}
	}
	return kept
}

// buildChunkChains creates one ChunkNode per record with per-module
// prev/next pointers, NEXT and FIRST_CHUNK edges, and MENTIONS edges to
// concepts appearing in the chunk text.
func (b *Builder) buildChunkChains(kg *types.KnowledgeGraph, moduleOrder []string, modules map[string]*moduleData, concepts []string) {
	for _, moduleID := range moduleOrder {
		data := modules[moduleID]
		var prev *types.ChunkNode

		for i, record := range data.records {
			chunk := &types.ChunkNode{
				ChunkID:    fmt.Sprintf("%s_c%d", moduleID, i),
				Text:       record.Text,
				ModuleID:   moduleID,
				Section:    record.Section,
				ChunkIndex: i,
			}
			if prev != nil {
				prev.NextChunkID = chunk.ChunkID
				chunk.PrevChunkID = prev.ChunkID
				kg.AddRelationship(types.Relationship{
					Source: prev.ChunkID,
					Target: chunk.ChunkID,
					Type:   types.RelNext,
					Weight: 1.0,
				})
			} else {
				kg.AddRelationship(types.Relationship{
					Source: moduleID,
					Target: chunk.ChunkID,
					Type:   types.RelFirstChunk,
					Weight: 1.0,
				})
			}
			kg.AddChunk(chunk)

			textLower := strings.ToLower(record.Text)
			for _, concept := range concepts {
				if strings.Contains(textLower, strings.ToLower(concept)) {
					kg.AddRelationship(types.Relationship{
						Source: chunk.ChunkID,
						Target: concept,
						Type:   types.RelMentions,
						Weight: 1.0,
					})
				}
			}
			prev = chunk
		}
	}
}

// mineRelated adds RELATED edges for concept pairs that share at least
// cooccurrenceMin text units.
func (b *Builder) mineRelated(kg *types.KnowledgeGraph, records []types.CorpusRecord, concepts []string) {
	cooccurrence := make(map[[2]string]int)

	for _, record := range records {
		textLower := strings.ToLower(record.Text)

		var present []string
		for _, c := range concepts {
			if strings.Contains(textLower, strings.ToLower(c)) {
				present = append(present, c)
			}
		}

		for i, c1 := range present {
			for _, c2 := range present[i+1:] {
				pair := [2]string{c1, c2}
				if pair[0] > pair[1] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				cooccurrence[pair]++
			}
		}
	}

	related := 0
	for pair, count := range cooccurrence {
		if count < b.cooccurrenceMin {
			continue
		}
		weight := float64(count) / 10.0
		if weight > 1.0 {
			weight = 1.0
		}
		kg.AddRelationship(types.Relationship{
			Source:     pair[0],
			Target:     pair[1],
			Type:       types.RelRelated,
			Weight:     weight,
			Confidence: relatedConfidence,
		})
		related++
	}
	slog.Info("Mined RELATED relationships", "count", related, "threshold", b.cooccurrenceMin)
}

// minePrereqs scans record text with the prerequisite patterns. The
// captured span resolves to the target concept; the source is the
// nearest known concept mentioned before the match.
func (b *Builder) minePrereqs(kg *types.KnowledgeGraph, records []types.CorpusRecord, concepts []string) {
	lookup := make(map[string]string, len(concepts))
	ordered := make([]string, 0, len(concepts))
	for _, c := range concepts {
		lookup[strings.ToLower(c)] = c
		ordered = append(ordered, strings.ToLower(c))
	}
	sort.Strings(ordered)

	found := 0
	for _, record := range records {
		text := record.Text

		for _, pattern := range b.lexicon.PrereqPatterns() {
			for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
				// loc[2:4] is the first capture group.
				if len(loc) < 4 || loc[2] < 0 {
					continue
				}
				captured := strings.ToLower(strings.TrimSpace(text[loc[2]:loc[3]]))
				target := matchTextToConcept(captured, ordered, lookup)
				if target == "" {
					continue
				}

				source := nearestConceptBefore(text[:loc[0]], ordered, lookup, target)
				if source == "" || source == target {
					continue
				}

				start := loc[0] - evidenceContextBefore
				if start < 0 {
					start = 0
				}
				end := loc[1] + evidenceContextAfter
				if end > len(text) {
					end = len(text)
				}

				kg.AddRelationship(types.Relationship{
					Source:     source,
					Target:     target,
					Type:       types.RelPrereq,
					Weight:     prereqWeight,
					Confidence: prereqConfidence,
					Evidence:   text[start:end],
				})
				found++
			}
		}
	}
	slog.Info("Extracted PREREQ relationships", "count", found)
}

// computeImportance runs normalized PageRank over the undirected
// RELATED+PREREQ projection.
func (b *Builder) computeImportance(kg *types.KnowledgeGraph) {
	nodes := make([]string, 0, len(kg.Concepts))
	for name := range kg.Concepts {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	var edges []weightedEdge
	for _, rel := range kg.Relationships() {
		if rel.Type != types.RelRelated && rel.Type != types.RelPrereq {
			continue
		}
		if _, ok := kg.Concepts[rel.Source]; !ok {
			continue
		}
		if _, ok := kg.Concepts[rel.Target]; !ok {
			continue
		}
		edges = append(edges, weightedEdge{A: rel.Source, B: rel.Target, Weight: rel.Weight})
	}

	for name, score := range NormalizedPageRank(nodes, edges) {
		kg.Concepts[name].ImportanceScore = score
	}
}

// matchTextToConcept resolves a captured span to a concept: exact
// lowercase match first, then containment in either direction.
func matchTextToConcept(text string, ordered []string, lookup map[string]string) string {
	if name, ok := lookup[text]; ok {
		return name
	}
	for _, cLower := range ordered {
		if strings.Contains(text, cLower) || strings.Contains(cLower, text) {
			return lookup[cLower]
		}
	}
	return ""
}

// nearestConceptBefore returns the concept whose last mention before
// the match is closest to it.
func nearestConceptBefore(textBefore string, ordered []string, lookup map[string]string, exclude string) string {
	textLower := strings.ToLower(textBefore)

	best := ""
	bestPos := -1
	for _, cLower := range ordered {
		name := lookup[cLower]
		if name == exclude {
			continue
		}
		if pos := strings.LastIndex(textLower, cLower); pos > bestPos {
			best = name
			bestPos = pos
		}
	}
	return best
}

func groupByModule(records []types.CorpusRecord) ([]string, map[string]*moduleData) {
	var order []string
	modules := make(map[string]*moduleData)

	for _, record := range records {
		data, ok := modules[record.ModuleID]
		if !ok {
			data = &moduleData{
				title:    record.ModuleTitle,
				keyTerms: record.KeyTerms,
			}
			modules[record.ModuleID] = data
			order = append(order, record.ModuleID)
		}
		data.records = append(data.records, record)
	}
	return order, modules
}

func isKeyTerm(name string, moduleIDs []string, modules map[string]*moduleData) bool {
	nameLower := strings.ToLower(name)
	for _, moduleID := range moduleIDs {
		for _, term := range modules[moduleID].keyTerms {
			if strings.ToLower(term) == nameLower {
				return true
			}
		}
	}
	return false
}

// titleCase uppercases the first letter of each word and lowercases the
// rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
