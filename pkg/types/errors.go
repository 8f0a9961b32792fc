package types

import "errors"

var (
	// ErrUpstreamUnavailable indicates the graph store, index store, or
	// embedding service could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream store unavailable")

	// ErrNoContent indicates every backend was queried successfully but
	// returned zero candidates. Callers must treat this as a valid
	// "no relevant content" outcome, not a server error.
	ErrNoContent = errors.New("no relevant content found")

	// ErrMalformedRecord indicates a corpus record is missing required
	// fields. Builders skip the record and continue.
	ErrMalformedRecord = errors.New("corpus record missing required fields")

	// ErrStrategyUnavailable indicates an extraction strategy's backing
	// model is not configured. Ensemble extraction recovers from it locally.
	ErrStrategyUnavailable = errors.New("extraction strategy unavailable")
)
