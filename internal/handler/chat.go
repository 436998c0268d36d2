package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/service"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

// Generator streams an answer for a prompt bundle.
type Generator interface {
	Stream(ctx context.Context, bundle model.PromptBundle, onDelta func(string) error) (*service.LLMResult, error)
	Model() string
}

// ChatHandler handles POST /v1/chat requests.
type ChatHandler struct {
	cfg       *config.Config
	templates templates.Provider
	assembler *service.PromptAssembler
	search    *service.SearchService
	builder   *service.ContextBuilder
	summary   *service.SummaryBuilder
	llm       Generator
}

// NewChatHandler creates a new ChatHandler with all required services.
func NewChatHandler(
	cfg *config.Config,
	tmpl templates.Provider,
	assembler *service.PromptAssembler,
	search *service.SearchService,
	builder *service.ContextBuilder,
	summary *service.SummaryBuilder,
	llm Generator,
) *ChatHandler {
	return &ChatHandler{
		cfg:       cfg,
		templates: tmpl,
		assembler: assembler,
		search:    search,
		builder:   builder,
		summary:   summary,
		llm:       llm,
	}
}

// Handle processes a POST /v1/chat request and streams the reply as
// server-sent events:
// check question → keywords → search (+rerank) → result table → fit → summary → LLM deltas → done
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	totalStart := time.Now()
	requestID := chimw.GetReqID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "messages are required")
		return
	}

	strategyName := req.Strategy
	if strategyName == "" {
		strategyName = h.cfg.RerankStrategy
	}
	strategy, err := service.ParseStrategy(strategyName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sse, err := newEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	clog := &model.ChatLog{
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Strategy:  string(strategy),
		MaxTokens: h.cfg.MaxContextTokens,
		LLMModel:  h.llm.Model(),
	}
	defer h.emitChatLog(clog, totalStart)

	// ── Stage 1: Question checks ─────────────────────────
	guard := service.CheckQuestion(req.Messages, h.cfg.MaxUserMessages, h.cfg.MinQuestionWords)
	if guard.Reject {
		clog.TooShort = true
		clog.Outcome = "too_short"
		h.sendMessage(sse, templates.MessageTooShort)
		sse.send(model.StreamEvent{Type: "done"})
		return
	}
	question := guard.Queries[len(guard.Queries)-1]
	clog.QuestionHash = hashQuestion(question)
	clog.NumUserMessages = len(guard.Queries)

	keywords, err := h.assembler.BuildKeywordResponse(guard.Queries)
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	if sse.send(model.StreamEvent{Type: "text", Text: keywords}) != nil {
		clog.Outcome = "client_gone"
		return
	}

	// ── Stage 2: Search + rerank ─────────────────────────
	outcome, err := h.search.Search(ctx, guard.Queries, h.cfg.SearchLimit, strategy, true)
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	clog.LatencyMSSearch = outcome.SearchLatency.Milliseconds()
	clog.LatencyMSRerank = outcome.RerankLatency.Milliseconds()
	clog.NumResults = len(outcome.Passages)

	table, err := h.assembler.BuildSearchResponse(outcome.Passages, true)
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	if sse.send(model.StreamEvent{Type: "text", Text: table}) != nil {
		clog.Outcome = "client_gone"
		return
	}

	// ── Stage 3: Fit context ─────────────────────────────
	fitStart := time.Now()
	fit, err := h.builder.Fit(ctx, question, service.LastAssistantMessage(req.Messages), outcome.Passages, h.cfg.MaxContextTokens)
	clog.LatencyMSFit = time.Since(fitStart).Milliseconds()
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	clog.FullyIncluded = fit.FullyIncludedCount
	clog.PartiallyIncluded = fit.PartiallyIncluded
	clog.PromptTokens = fit.Tokens

	summary, err := h.summary.Summarize(question, fit.FullyIncludedCount, len(outcome.Passages), fit.PartiallyIncluded)
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	if sse.send(model.StreamEvent{Type: "text", Text: summary}) != nil {
		clog.Outcome = "client_gone"
		return
	}

	// ── Stage 4: Generate ────────────────────────────────
	res, err := h.llm.Stream(ctx, fit.Bundle, func(delta string) error {
		return sse.send(model.StreamEvent{Type: "text", Text: delta})
	})
	if err != nil {
		h.fail(sse, clog, err)
		return
	}
	clog.LatencyMSLLM = res.Latency.Milliseconds()
	clog.CompletionChars = len(res.Text)
	clog.Outcome = "ok"

	sse.send(model.StreamEvent{
		Type: "done",
		Usage: &model.Usage{
			TotalResults:       len(outcome.Passages),
			FullyIncludedCount: fit.FullyIncludedCount,
			PartiallyIncluded:  fit.PartiallyIncluded,
			PromptTokens:       fit.Tokens,
		},
	})
}

// fail reports err on the stream. An infeasible budget gets the
// context_length_exceeded message. A missing template is a configuration
// fault that a retry cannot clear. Both are sent without retry; everything
// else is offered a retry under the health_check_failed message.
func (h *ChatHandler) fail(sse *eventStream, clog *model.ChatLog, err error) {
	slog.Error("chat pipeline failed", "error", err, "request_id", clog.RequestID)

	key, retry := templates.MessageHealthCheckFailed, true
	clog.Outcome = "error"
	switch {
	case errors.Is(err, service.ErrBudgetInfeasible):
		key, retry = templates.MessageContextLengthExceeded, false
		clog.Outcome = "context_length_exceeded"
	case errors.Is(err, service.ErrTemplateMissing):
		retry = false
		clog.Outcome = "template_missing"
	}

	msg, merr := h.templates.Message(key)
	if merr != nil {
		msg = err.Error()
	}
	sse.send(model.StreamEvent{Type: "error", Text: msg, Retry: retry})
}

func (h *ChatHandler) sendMessage(sse *eventStream, key string) {
	msg, err := h.templates.Message(key)
	if err != nil {
		slog.Error("message template missing", "key", key, "error", err)
		sse.send(model.StreamEvent{Type: "error", Text: err.Error()})
		return
	}
	sse.send(model.StreamEvent{Type: "text", Text: msg})
}

// emitChatLog writes the structured per-request log line.
func (h *ChatHandler) emitChatLog(clog *model.ChatLog, totalStart time.Time) {
	clog.LatencyMSTotal = time.Since(totalStart).Milliseconds()

	slog.Info("chat",
		"ts", clog.Timestamp.Format(time.RFC3339),
		"request_id", clog.RequestID,
		"question_hash", clog.QuestionHash,
		"num_user_messages", clog.NumUserMessages,
		"strategy", clog.Strategy,
		"num_results", clog.NumResults,
		"fully_included", clog.FullyIncluded,
		"partially_included", clog.PartiallyIncluded,
		"prompt_tokens", clog.PromptTokens,
		"max_tokens", clog.MaxTokens,
		"too_short", clog.TooShort,
		"latency_ms_total", clog.LatencyMSTotal,
		"latency_ms_search", clog.LatencyMSSearch,
		"latency_ms_rerank", clog.LatencyMSRerank,
		"latency_ms_fit", clog.LatencyMSFit,
		"latency_ms_llm", clog.LatencyMSLLM,
		"llm_model", clog.LLMModel,
		"completion_chars", clog.CompletionChars,
		"outcome", clog.Outcome,
	)
}

// eventStream writes server-sent events, flushing after each one.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(ev model.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
