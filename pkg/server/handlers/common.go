// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/server/dto"
	"github.com/soundprediction/studygraph/pkg/types"
)

// EngineResolver yields the engine serving a corpus.
// *studygraph.Registry satisfies it.
type EngineResolver interface {
	Get(ctx context.Context, corpusID string) (studygraph.Engine, error)
}

// Deps holds what every handler needs.
type Deps struct {
	Engines       EngineResolver
	DefaultCorpus string
}

// resolveCorpus picks the corpus for a request: explicit body field,
// then X-Corpus-ID header, then the server default.
func (d Deps) resolveCorpus(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if header := c.GetHeader("X-Corpus-ID"); header != "" {
		return header
	}
	return d.DefaultCorpus
}

func (d Deps) engine(c *gin.Context, corpusID string) (studygraph.Engine, bool) {
	engine, err := d.Engines.Get(c.Request.Context(), corpusID)
	if err != nil {
		writeError(c, http.StatusNotFound, "unknown_corpus", err.Error())
		return nil, false
	}
	return engine, true
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps sentinel errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrNoContent):
		writeError(c, http.StatusNotFound, "no_content", err.Error())
	case errors.Is(err, types.ErrUpstreamUnavailable):
		writeError(c, http.StatusServiceUnavailable, "upstream_unavailable", err.Error())
	case errors.Is(err, types.ErrStrategyUnavailable):
		writeError(c, http.StatusNotImplemented, "strategy_unavailable", err.Error())
	case errors.Is(err, types.ErrMalformedRecord):
		writeError(c, http.StatusBadRequest, "malformed_record", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
