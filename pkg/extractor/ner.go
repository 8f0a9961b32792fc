package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/soundprediction/go-gline-rs/pkg/gline"
)

// EntitySpan is one recognized entity.
type EntitySpan struct {
	Text  string
	Label string
	Score float32
}

// EntityRecognizer is the named-entity strategy dependency. Available
// reports whether the model loaded; extraction code branches on this
// capability flag rather than probing with a throwaway call.
type EntityRecognizer interface {
	Available() bool
	Recognize(text string) ([]EntitySpan, error)
	Close()
}

// Entity labels requested from the span model. Tuned for educational
// text rather than news-style NER.
var defaultEntityLabels = []string{
	"concept", "process", "term", "theory", "organism", "structure",
	"person", "place", "event",
}

// GlineRecognizer implements EntityRecognizer with an in-process GLiNER
// span model.
type GlineRecognizer struct {
	model  *gline.Model
	labels []string
	mu     sync.Mutex
}

// NewGlineRecognizer loads a span model from a HuggingFace model ID or
// a local directory containing model.onnx and tokenizer.json.
func NewGlineRecognizer(modelID string, labels []string) (*GlineRecognizer, error) {
	if err := gline.Init(); err != nil {
		return nil, fmt.Errorf("failed to init gline runtime: %w", err)
	}

	if len(labels) == 0 {
		labels = defaultEntityLabels
	}

	var model *gline.Model
	var err error
	if _, statErr := os.Stat(modelID); statErr == nil {
		model, err = gline.NewSpanModel(
			filepath.Join(modelID, "model.onnx"),
			filepath.Join(modelID, "tokenizer.json"),
		)
	} else {
		model, err = gline.NewSpanModelFromHF(modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load span model %q: %w", modelID, err)
	}

	return &GlineRecognizer{model: model, labels: labels}, nil
}

// Available reports whether the span model is loaded.
func (g *GlineRecognizer) Available() bool {
	return g != nil && g.model != nil
}

// Recognize extracts entity spans from text.
func (g *GlineRecognizer) Recognize(text string) ([]EntitySpan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model == nil {
		return nil, fmt.Errorf("span model not loaded")
	}

	results, err := g.model.Predict([]string{text}, g.labels)
	if err != nil {
		return nil, fmt.Errorf("span prediction failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	spans := make([]EntitySpan, 0, len(results[0]))
	for _, e := range results[0] {
		spans = append(spans, EntitySpan{
			Text:  e.Text,
			Label: e.Label,
			Score: e.Probability,
		})
	}
	return spans, nil
}

// Close releases the model.
func (g *GlineRecognizer) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != nil {
		g.model.Close()
		g.model = nil
	}
}
