package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/server/dto"
	"github.com/soundprediction/studygraph/pkg/types"
)

// RetrieveHandler serves retrieval and concept search requests.
type RetrieveHandler struct {
	deps Deps
}

func NewRetrieveHandler(deps Deps) *RetrieveHandler {
	return &RetrieveHandler{deps: deps}
}

// Retrieve handles POST /api/v1/retrieve.
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveRequest
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

	opts := &studygraph.RetrieveOptions{
		TopK:         req.TopK,
		Mode:         types.BackendMode(req.Mode),
		ModuleID:     req.ModuleID,
		Section:      req.Section,
		ExpandQuery:  req.ExpandQuery,
		ExpandWindow: req.ExpandWindow,
		WindowSize:   req.WindowSize,
	}

	resp := dto.RetrieveResponse{Query: req.Query, CorpusID: corpusID}
	ctx := c.Request.Context()

	if req.Merged {
		blocks, err := engine.RetrieveMerged(ctx, req.Query, opts)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp.Blocks = blocks
		resp.Total = len(blocks)
		resp.Mode = req.Mode
	} else {
		result, err := engine.Retrieve(ctx, req.Query, opts)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp.Chunks = result.Chunks
		resp.Expansion = result.Expansion
		resp.Mode = string(result.Mode)
		resp.Total = len(result.Chunks)
	}

	c.JSON(http.StatusOK, resp)
}

// SearchConcepts handles GET /api/v1/concepts.
func (h *RetrieveHandler) SearchConcepts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		writeError(c, http.StatusBadRequest, "invalid_request", "q parameter is required")
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	corpusID := h.deps.resolveCorpus(c, c.Query("corpus_id"))
	engine, ok := h.deps.engine(c, corpusID)
	if !ok {
		return
	}

	hits, err := engine.SearchConcepts(c.Request.Context(), query, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	concepts := make([]dto.ConceptHit, 0, len(hits))
	for _, hit := range hits {
		concepts = append(concepts, dto.ConceptHit{Name: hit.Name, Score: hit.Score})
	}
	c.JSON(http.StatusOK, dto.ConceptSearchResponse{
		Query:    query,
		Concepts: concepts,
		Total:    len(concepts),
	})
}
