package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/server/dto"
)

// BuildHandler serves corpus ingestion and stats requests.
type BuildHandler struct {
	deps Deps
}

func NewBuildHandler(deps Deps) *BuildHandler {
	return &BuildHandler{deps: deps}
}

// Build handles POST /api/v1/corpus/build. The build runs
// synchronously; large corpora can take minutes.
func (h *BuildHandler) Build(c *gin.Context) {
	var req dto.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	corpusID := h.deps.resolveCorpus(c, req.CorpusID)
	engine, ok := h.deps.engine(c, corpusID)
	if !ok {
		return
	}

	result, err := engine.BuildCorpus(c.Request.Context(), req.CorpusPath,
		&studygraph.BuildOptions{SkipIndex: req.SkipIndex})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BuildResponse{
		CorpusID:      corpusID,
		Modules:       result.Modules,
		Concepts:      result.Concepts,
		Chunks:        result.Chunks,
		Relationships: result.Relationships,
		IndexedDocs:   result.IndexedDocs,
	})
}

// Stats handles GET /api/v1/corpus/stats.
func (h *BuildHandler) Stats(c *gin.Context) {
	corpusID := h.deps.resolveCorpus(c, c.Query("corpus_id"))
	engine, ok := h.deps.engine(c, corpusID)
	if !ok {
		return
	}

	counts, err := engine.Stats(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{CorpusID: corpusID, Counts: counts})
}
