package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Statistical keyword extraction over a single text, no corpus needed.
// Scores follow the "lower raw score = more salient" convention of
// classic unsupervised keyword extractors, so callers invert them with
// 1/(1+raw) to get an ascending 0-1 scale.

const (
	maxNgramSize     = 3
	defaultKeywords  = 20
	minCandidateRune = 3
)

// Keyword is a scored candidate phrase. Lower Score means more salient.
type Keyword struct {
	Text  string
	Score float64
}

// stopwords used for candidate segmentation. Candidate phrases never
// cross a stopword boundary.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "such": {}, "that": {}, "the": {}, "their": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "which": {}, "while": {}, "will": {}, "with": {}, "when": {},
	"where": {}, "who": {}, "how": {}, "what": {}, "why": {}, "can": {},
	"not": {}, "also": {}, "between": {}, "through": {}, "over": {},
	"each": {}, "other": {}, "than": {}, "both": {}, "some": {}, "more": {},
	"most": {}, "we": {}, "our": {}, "you": {}, "your": {}, "do": {},
	"does": {}, "been": {}, "about": {}, "during": {}, "called": {},
}

type termStats struct {
	freq      int
	positions []int
	upperHits int
}

// ExtractKeywords scores candidate phrases of up to three words.
// Returned keywords are sorted ascending by raw score (best first) and
// truncated to topN.
func ExtractKeywords(text string, topN int) []Keyword {
	if topN <= 0 {
		topN = defaultKeywords
	}

	words, rawWords := splitWords(text)
	if len(words) == 0 {
		return nil
	}

	stats := collectTermStats(words, rawWords)
	termScores := scoreTerms(stats, len(words))

	candidates := make(map[string]*candidate)
	collectCandidates(words, candidates)

	keywords := make([]Keyword, 0, len(candidates))
	for phrase, cand := range candidates {
		score, ok := scorePhrase(cand.terms, cand.freq, termScores)
		if !ok {
			continue
		}
		keywords = append(keywords, Keyword{Text: phrase, Score: score})
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score < keywords[j].Score
		}
		return keywords[i].Text < keywords[j].Text
	})
	if len(keywords) > topN {
		keywords = keywords[:topN]
	}
	return keywords
}

type candidate struct {
	terms []string
	freq  int
}

// splitWords returns lowercased tokens and their original-cased forms.
func splitWords(text string) ([]string, []string) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	words := make([]string, 0, len(fields))
	raw := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" {
			continue
		}
		words = append(words, strings.ToLower(f))
		raw = append(raw, f)
	}
	return words, raw
}

func collectTermStats(words, rawWords []string) map[string]*termStats {
	stats := make(map[string]*termStats)
	for i, w := range words {
		st, ok := stats[w]
		if !ok {
			st = &termStats{}
			stats[w] = st
		}
		st.freq++
		st.positions = append(st.positions, i)
		if first := []rune(rawWords[i])[0]; unicode.IsUpper(first) && i > 0 {
			st.upperHits++
		}
	}
	return stats
}

// scoreTerms combines position, frequency, and casing features. Terms
// appearing early, often, and capitalized mid-sentence score lower
// (more salient).
func scoreTerms(stats map[string]*termStats, totalWords int) map[string]float64 {
	var maxFreq float64
	for _, st := range stats {
		if f := float64(st.freq); f > maxFreq {
			maxFreq = f
		}
	}

	scores := make(map[string]float64, len(stats))
	for term, st := range stats {
		median := st.positions[len(st.positions)/2]
		wPos := math.Log(math.Log(3.0 + float64(median)))
		wFreq := float64(st.freq) / maxFreq
		wCase := float64(st.upperHits) / float64(st.freq)

		scores[term] = wPos / (wFreq + wCase + 1e-9)
	}
	return scores
}

func collectCandidates(words []string, candidates map[string]*candidate) {
	for start := 0; start < len(words); start++ {
		if _, stop := stopwords[words[start]]; stop {
			continue
		}
		for size := 1; size <= maxNgramSize && start+size <= len(words); size++ {
			last := words[start+size-1]
			if _, stop := stopwords[last]; stop {
				break
			}
			if size > 1 {
				if _, stop := stopwords[words[start+size-2]]; stop {
					break
				}
			}

			terms := words[start : start+size]
			phrase := strings.Join(terms, " ")
			if len(phrase) < minCandidateRune {
				continue
			}
			cand, ok := candidates[phrase]
			if !ok {
				cand = &candidate{terms: append([]string(nil), terms...)}
				candidates[phrase] = cand
			}
			cand.freq++
		}
	}
}

// scorePhrase applies the multiword combination rule: the product of
// member scores damped by phrase frequency and the member score sum.
func scorePhrase(terms []string, freq int, termScores map[string]float64) (float64, bool) {
	product := 1.0
	sum := 0.0
	for _, term := range terms {
		score, ok := termScores[term]
		if !ok {
			return 0, false
		}
		product *= score
		sum += score
	}
	return product / (float64(freq) * (1.0 + sum)), true
}
