package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph/pkg/types"
)

type fakeRecognizer struct {
	spans []EntitySpan
	err   error
	down  bool
}

func (f *fakeRecognizer) Available() bool { return !f.down }
func (f *fakeRecognizer) Recognize(text string) ([]EntitySpan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.spans, nil
}
func (f *fakeRecognizer) Close() {}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Close() error    { return nil }

func TestSubstringPrefersLongerConcept(t *testing.T) {
	e := New([]string{"Cell", "Cell Membrane"}, Options{})

	matches, err := e.Extract(context.Background(), "The cell membrane controls transport.", types.StrategySubstring, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Cell Membrane", matches[0].Name)
	assert.Equal(t, "Cell", matches[1].Name)
	assert.Equal(t, types.StrategySubstring, matches[0].Strategy)
}

func TestKeywordStrategyInvertsScores(t *testing.T) {
	e := New([]string{"Photosynthesis", "Chloroplast"}, Options{})

	text := "Photosynthesis occurs in the chloroplast. Photosynthesis converts light " +
		"energy. The chloroplast contains chlorophyll used during photosynthesis."
	matches, err := e.Extract(context.Background(), text, types.StrategyKeyword, 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for _, m := range matches {
		assert.Equal(t, types.StrategyKeyword, m.Strategy)
		assert.Greater(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
	}
}

func TestNERStrategyScoresEntitiesOverPhrases(t *testing.T) {
	recognizer := &fakeRecognizer{spans: []EntitySpan{
		{Text: "mitosis", Label: "process", Score: 0.95},
	}}
	e := New([]string{"Mitosis", "Cell Cycle"}, Options{Recognizer: recognizer})

	matches, err := e.Extract(context.Background(), "During the cell cycle, mitosis divides the nucleus.", types.StrategyNER, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byName := map[string]float64{}
	for _, m := range matches {
		byName[m.Name] = m.Score
	}
	assert.InDelta(t, 0.8, byName["Mitosis"], 1e-9)
	assert.InDelta(t, 0.6, byName["Cell Cycle"], 1e-9)
}

func TestNERStrategyUnavailable(t *testing.T) {
	e := New([]string{"Mitosis"}, Options{})

	_, err := e.Extract(context.Background(), "mitosis", types.StrategyNER, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStrategyUnavailable)
}

func TestEmbeddingStrategyThreshold(t *testing.T) {
	fake := &fakeEmbedder{vectors: map[string][]float32{
		"Photosynthesis": {1, 0, 0},
		"Mitosis":        {0, 1, 0},
		"how do plants make food": {0.9, 0.1, 0},
	}}
	e := New([]string{"Photosynthesis", "Mitosis"}, Options{Embedder: fake})

	matches, err := e.Extract(context.Background(), "how do plants make food", types.StrategyEmbedding, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Photosynthesis", matches[0].Name)
	assert.Greater(t, matches[0].Score, 0.5)
}

func TestEnsembleBoostsMultiStrategyConcepts(t *testing.T) {
	recognizer := &fakeRecognizer{spans: []EntitySpan{
		{Text: "photosynthesis", Label: "process", Score: 0.9},
	}}
	e := New([]string{"Photosynthesis"}, Options{Recognizer: recognizer})

	text := "Photosynthesis converts light energy. Photosynthesis needs sunlight."
	matches, err := e.Extract(context.Background(), text, types.StrategyEnsemble, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "Photosynthesis", m.Name)
	assert.Equal(t, types.StrategyEnsemble, m.Strategy)
	// Found by two strategies: max score boosted by 1.2, capped at 1.0.
	assert.InDelta(t, 0.8*1.2, m.Score, 1e-9)
}

func TestEnsembleDegradesGracefully(t *testing.T) {
	healthy := New([]string{"Photosynthesis"}, Options{})
	text := "Photosynthesis converts light energy into chemical energy."

	baseline, err := healthy.Extract(context.Background(), text, types.StrategyEnsemble, 10)
	require.NoError(t, err)
	require.NotEmpty(t, baseline)

	// A recognizer that errors at runtime must not change the keyword
	// contribution.
	broken := New([]string{"Photosynthesis"}, Options{
		Recognizer: &fakeRecognizer{err: errors.New("model crashed")},
	})
	degraded, err := broken.Extract(context.Background(), text, types.StrategyEnsemble, 10)
	require.NoError(t, err)
	require.Len(t, degraded, len(baseline))
	assert.Equal(t, baseline[0].Name, degraded[0].Name)
	assert.InDelta(t, baseline[0].Score, degraded[0].Score, 1e-9)
}

func TestSetKnownConceptsInvalidatesEmbeddingCache(t *testing.T) {
	fake := &fakeEmbedder{vectors: map[string][]float32{
		"Photosynthesis": {1, 0, 0},
		"Osmosis":        {1, 0, 0},
		"query":          {1, 0, 0},
	}}
	e := New([]string{"Photosynthesis"}, Options{Embedder: fake})

	matches, err := e.Extract(context.Background(), "query", types.StrategyEmbedding, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Photosynthesis", matches[0].Name)

	e.SetKnownConcepts([]string{"Osmosis"})
	matches, err = e.Extract(context.Background(), "query", types.StrategyEmbedding, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Osmosis", matches[0].Name)
}

func TestExtractEmptyText(t *testing.T) {
	e := New([]string{"Cell"}, Options{})
	matches, err := e.Extract(context.Background(), "   ", types.StrategySubstring, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExtractUnknownStrategy(t *testing.T) {
	e := New([]string{"Cell"}, Options{})
	_, err := e.Extract(context.Background(), "cell", types.Strategy("bogus"), 10)
	require.Error(t, err)
}
