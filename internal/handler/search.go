package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/service"
)

// SearchHandler exposes retrieval and context fitting without generation.
type SearchHandler struct {
	cfg       *config.Config
	assembler *service.PromptAssembler
	search    *service.SearchService
	builder   *service.ContextBuilder
	summary   *service.SummaryBuilder
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(
	cfg *config.Config,
	assembler *service.PromptAssembler,
	search *service.SearchService,
	builder *service.ContextBuilder,
	summary *service.SummaryBuilder,
) *SearchHandler {
	return &SearchHandler{
		cfg:       cfg,
		assembler: assembler,
		search:    search,
		builder:   builder,
		summary:   summary,
	}
}

// Search handles POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}

	queries := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "at least one query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = h.cfg.SearchLimit
	}

	strategy, err := service.ParseStrategy(req.Strategy)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	outcome, err := h.search.Search(r.Context(), queries, req.Limit, strategy, req.Secondary)
	if err != nil {
		slog.Error("search failed", "error", err)
		writeServiceError(w, err)
		return
	}

	markdown, err := h.assembler.BuildSearchResponse(outcome.Passages, true)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SearchResponse{
		Results:  outcome.Passages,
		Markdown: markdown,
	})
}

// Fit handles POST /v1/fit.
func (h *SearchHandler) Fit(w http.ResponseWriter, r *http.Request) {
	var req model.FitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "question is required")
		return
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = h.cfg.MaxContextTokens
	}

	result, err := h.builder.Fit(r.Context(), req.Question, req.PreviousTurn, req.Results, req.MaxTokens)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	summary, err := h.summary.Summarize(req.Question, result.FullyIncludedCount, len(req.Results), result.PartiallyIncluded)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.FitResponse{
		Result:  result,
		Summary: summary,
	})
}
