package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/studygraph/pkg/config"
)

type fakeClient struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (f *fakeClient) Dimensions() int { return 2 }
func (f *fakeClient) Close() error    { return nil }

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingAlerter) Alert(subject, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	}
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	client := NewCircuitBreakerClient(&fakeClient{}, breakerConfig(), &recordingAlerter{}, "embedding")

	embeddings, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, 2, client.Dimensions())
}

func TestCircuitBreakerTripsAndAlerts(t *testing.T) {
	backend := &fakeClient{fail: true}
	alerter := &recordingAlerter{}
	client := NewCircuitBreakerClient(backend, breakerConfig(), alerter, "embedding")

	for i := 0; i < 5; i++ {
		_, err := client.EmbedSingle(context.Background(), "text")
		require.Error(t, err)
	}

	// Once open, calls fail fast without reaching the backend.
	callsAtTrip := backend.calls
	_, err := client.EmbedSingle(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, callsAtTrip, backend.calls)

	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	require.NotEmpty(t, alerter.subjects)
	assert.Contains(t, alerter.subjects[0], "Circuit Breaker Tripped")
}
