// Package embedder provides text embedding clients used for vector
// indexing and embedding-similarity concept extraction. Client is the
// contract; implementations cover the OpenAI API and a local ONNX
// embedder, and CircuitBreakerClient adds failure isolation around
// either.
package embedder
