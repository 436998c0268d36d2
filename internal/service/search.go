// Package service implements the chat pipeline business logic: retrieval,
// reranking, prompt assembly and token budget fitting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

// BuildCompositeQuery flattens each query onto one line and joins them with
// newlines.
func BuildCompositeQuery(queries []string) string {
	lines := make([]string, len(queries))
	for i, q := range queries {
		lines[i] = strings.ReplaceAll(q, "\n", " ")
	}
	return strings.Join(lines, "\n")
}

// SimilaritySearch runs the composite query against store and returns at most
// limit passages ordered by descending score. Scores are scaled to 0–100.
func SimilaritySearch(ctx context.Context, store vectorstore.Store, queries []string, limit int, filter *vectorstore.SourceFilter) ([]model.Passage, error) {
	if limit <= 0 {
		return []model.Passage{}, nil
	}

	results, err := store.Search(ctx, BuildCompositeQuery(queries), limit, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", ErrOracleUnavailable, store.Name(), err)
	}

	passages := make([]model.Passage, len(results))
	for i, r := range results {
		passages[i] = model.Passage{
			Source:   r.Source,
			Content:  r.Content,
			Score:    r.Similarity * 100,
			ChunkNum: r.ChunkNum,
		}
	}
	return passages, nil
}

// SearchOutcome holds the passages of one search plus stage latencies.
type SearchOutcome struct {
	Passages      []model.Passage
	SearchLatency time.Duration
	RerankLatency time.Duration
}

// SearchService runs a search against one collection, optionally reranks the
// hits and normalizes their source labels.
type SearchService struct {
	primary   vectorstore.Store
	secondary vectorstore.Store
	reranker  *Reranker
}

// NewSearchService creates a new SearchService.
func NewSearchService(primary, secondary vectorstore.Store, reranker *Reranker) *SearchService {
	return &SearchService{
		primary:   primary,
		secondary: secondary,
		reranker:  reranker,
	}
}

// Search queries the primary collection, or the secondary one when
// useSecondary is set, then applies strategy. Rerank strategies work on
// primary results, so any strategy other than none forces the primary
// collection. The detailed strategy rebuilds its list from the secondary
// collection alone, so no initial search runs for it. Source labels are
// normalized only after reranking because the secondary filter matches raw
// labels.
func (s *SearchService) Search(ctx context.Context, queries []string, limit int, strategy Strategy, useSecondary bool) (*SearchOutcome, error) {
	store := s.primary
	if useSecondary && strategy == StrategyNone {
		store = s.secondary
	}

	out := &SearchOutcome{}
	var passages []model.Passage
	if strategy == StrategyDetailed {
		store = s.secondary
	} else {
		start := time.Now()
		var err error
		passages, err = SimilaritySearch(ctx, store, queries, limit, nil)
		if err != nil {
			return nil, err
		}
		out.SearchLatency = time.Since(start)
	}

	start := time.Now()
	passages, err := s.reranker.Rerank(ctx, strategy, passages, queries, limit)
	if err != nil {
		return nil, err
	}
	out.RerankLatency = time.Since(start)

	NormalizeSources(passages)
	out.Passages = passages

	slog.Debug("search complete",
		"collection", store.Name(),
		"strategy", string(strategy),
		"results", len(passages),
		"search_ms", out.SearchLatency.Milliseconds(),
		"rerank_ms", out.RerankLatency.Milliseconds(),
	)
	return out, nil
}
