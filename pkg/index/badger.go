package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/studygraph/pkg/utils"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Field boosts mirroring the lexical weighting of the OpenSearch store.
const (
	boostText    = 3.0
	boostTitle   = 2.0
	boostSection = 1.0
)

const docKeyPrefix = "doc:"

// BadgerStore implements Store with Badger for persistence and an
// in-memory BM25 index plus brute-force cosine search. It serves
// development and test deployments that have no search cluster.
type BadgerStore struct {
	db *badger.DB

	mu        sync.RWMutex
	docs      map[string]Document
	termFreqs map[string]map[string]float64
	docLens   map[string]float64
	docFreq   map[string]int
	totalLen  float64
}

// NewBadgerStore opens or creates a store at path. An empty path opens
// an in-memory store that vanishes on Close.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	store := &BadgerStore{
		db:        db,
		docs:      make(map[string]Document),
		termFreqs: make(map[string]map[string]float64),
		docLens:   make(map[string]float64),
		docFreq:   make(map[string]int),
	}

	if err := store.loadAll(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// loadAll rebuilds the in-memory index from persisted documents.
func (s *BadgerStore) loadAll() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc Document
				if err := json.Unmarshal(val, &doc); err != nil {
					return fmt.Errorf("failed to decode stored document: %w", err)
				}
				s.indexDoc(doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkUpsert persists documents and refreshes the in-memory index.
func (s *BadgerStore) BulkUpsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("cannot index document with empty ID")
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document %q: %w", doc.ID, err)
		}
		if err := batch.Set([]byte(docKeyPrefix+doc.ID), payload); err != nil {
			return fmt.Errorf("failed to stage document %q: %w", doc.ID, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("failed to flush document batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.unindexDoc(doc.ID)
		s.indexDoc(doc)
	}
	return nil
}

// LexicalSearch ranks documents by BM25 over weighted text, title, and
// section fields.
func (s *BadgerStore) LexicalSearch(ctx context.Context, query string, topK int, filter *Filter) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 || topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := s.totalLen / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		df := s.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for docID, freqs := range s.termFreqs {
			tf := freqs[term]
			if tf == 0 {
				continue
			}
			norm := tf + bm25K1*(1-bm25B+bm25B*s.docLens[docID]/avgLen)
			scores[docID] += idf * tf * (bm25K1 + 1) / norm
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		doc := s.docs[docID]
		if !filter.matches(doc) {
			continue
		}
		hits = append(hits, Hit{Document: doc, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// VectorSearch brute-forces cosine similarity over stored embeddings.
func (s *BadgerStore) VectorSearch(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]utils.ScoredItem[Document], 0, len(s.docs))
	for _, doc := range s.docs {
		if len(doc.Embedding) == 0 || !filter.matches(doc) {
			continue
		}
		scored = append(scored, utils.ScoredItem[Document]{
			Item:  doc,
			Score: utils.CosineSimilarity(vector, doc.Embedding),
		})
	}

	top := utils.TopKByScore(scored, topK)
	hits := make([]Hit, 0, len(top))
	for _, item := range top {
		hits = append(hits, Hit{Document: item.Item, Score: item.Score})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// indexDoc adds a document to the in-memory index. Caller holds the lock
// (or is still single-threaded during load).
func (s *BadgerStore) indexDoc(doc Document) {
	freqs := make(map[string]float64)
	addTokens(freqs, doc.Text, boostText)
	addTokens(freqs, doc.ModuleTitle, boostTitle)
	addTokens(freqs, doc.Section, boostSection)

	var docLen float64
	for term, tf := range freqs {
		docLen += tf
		s.docFreq[term]++
	}

	s.docs[doc.ID] = doc
	s.termFreqs[doc.ID] = freqs
	s.docLens[doc.ID] = docLen
	s.totalLen += docLen
}

// unindexDoc removes a document's contribution before re-indexing.
func (s *BadgerStore) unindexDoc(docID string) {
	freqs, ok := s.termFreqs[docID]
	if !ok {
		return
	}
	for term := range freqs {
		if s.docFreq[term] <= 1 {
			delete(s.docFreq, term)
		} else {
			s.docFreq[term]--
		}
	}
	s.totalLen -= s.docLens[docID]
	delete(s.docs, docID)
	delete(s.termFreqs, docID)
	delete(s.docLens, docID)
}

func addTokens(freqs map[string]float64, text string, boost float64) {
	for _, token := range tokenize(text) {
		freqs[token] += boost
	}
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
