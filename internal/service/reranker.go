package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

// Strategy names a reranking strategy.
type Strategy string

// Rerank strategies.
const (
	StrategyNone     Strategy = "none"
	StrategyOverall  Strategy = "overall"
	StrategyDetailed Strategy = "detailed"
	StrategyMemory   Strategy = "memory"
)

// ParseStrategy maps a strategy name to a Strategy. An empty name is none.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "", StrategyNone:
		return StrategyNone, nil
	case StrategyOverall, StrategyDetailed, StrategyMemory:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// RerankerConfig holds the reranking limits.
type RerankerConfig struct {
	// Factor multiplies the primary limit for the overall secondary pass.
	Factor int
	// DetailedLimit is the secondary search limit for detailed reranking.
	DetailedLimit int
	// ChunkSize and ChunkOverlap control memory-rerank splitting, in characters.
	ChunkSize    int
	ChunkOverlap int
	// MaxMemoryHits caps the ephemeral index query limit.
	MaxMemoryHits int
}

// DefaultRerankerConfig returns the standard limits.
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Factor:        2,
		DetailedLimit: 45,
		ChunkSize:     1000,
		ChunkOverlap:  100,
		MaxMemoryHits: 20,
	}
}

// Reranker reorders primary results by how often their source shows up in a
// second, independent retrieval pass.
type Reranker struct {
	primary   vectorstore.Store
	secondary vectorstore.Store
	embedder  vectorstore.Embedder
	cfg       RerankerConfig
}

// NewReranker creates a new Reranker. Zero config fields take defaults.
func NewReranker(primary, secondary vectorstore.Store, embedder vectorstore.Embedder, cfg RerankerConfig) *Reranker {
	def := DefaultRerankerConfig()
	if cfg.Factor <= 0 {
		cfg.Factor = def.Factor
	}
	if cfg.DetailedLimit <= 0 {
		cfg.DetailedLimit = def.DetailedLimit
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.MaxMemoryHits <= 0 {
		cfg.MaxMemoryHits = def.MaxMemoryHits
	}
	return &Reranker{
		primary:   primary,
		secondary: secondary,
		embedder:  embedder,
		cfg:       cfg,
	}
}

// Rerank applies strategy to primaryResults and returns a new slice; the input
// is never modified. Collaborator failures are returned wrapped in
// ErrOracleUnavailable and never fall back to the unranked order.
func (r *Reranker) Rerank(ctx context.Context, strategy Strategy, primaryResults []model.Passage, queries []string, limit int) ([]model.Passage, error) {
	switch strategy {
	case StrategyNone, "":
		out := make([]model.Passage, len(primaryResults))
		copy(out, primaryResults)
		return out, nil
	case StrategyOverall:
		return r.rerankOverall(ctx, primaryResults, queries, limit)
	case StrategyDetailed:
		return r.rerankDetailed(ctx, queries, limit)
	case StrategyMemory:
		return r.rerankMemory(ctx, primaryResults, queries)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// rerankOverall counts secondary hits restricted to the primary sources.
func (r *Reranker) rerankOverall(ctx context.Context, primaryResults []model.Passage, queries []string, limit int) ([]model.Passage, error) {
	sources := distinctSources(primaryResults)
	if len(sources) == 0 {
		return []model.Passage{}, nil
	}

	signal, err := SimilaritySearch(ctx, r.secondary, queries, limit*r.cfg.Factor,
		&vectorstore.SourceFilter{Sources: sources})
	if err != nil {
		return nil, fmt.Errorf("overall rerank: %w", err)
	}

	freq := CountSourceFrequency(signal)
	slog.Debug("overall rerank", "sources", len(sources), "signal_hits", len(signal))
	return SortByFrequency(primaryResults, freq), nil
}

// rerankDetailed ignores the primary results and rebuilds the list from the
// secondary pass: each source takes the score of its first secondary hit and
// every stored primary chunk of that source is fetched.
func (r *Reranker) rerankDetailed(ctx context.Context, queries []string, limit int) ([]model.Passage, error) {
	signal, err := SimilaritySearch(ctx, r.secondary, queries, r.cfg.DetailedLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("detailed rerank: %w", err)
	}

	scores := make(map[string]float64, len(signal))
	var sources []string
	for _, p := range signal {
		if _, ok := scores[p.Source]; !ok {
			scores[p.Source] = p.Score
			sources = append(sources, p.Source)
		}
	}
	if len(sources) == 0 {
		return []model.Passage{}, nil
	}

	chunks, err := r.primary.FindBySources(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("%w: detailed rerank lookup: %w", ErrOracleUnavailable, err)
	}

	out := make([]model.Passage, len(chunks))
	for i, c := range chunks {
		out[i] = model.Passage{
			Source:   c.Source,
			Content:  c.Content,
			Score:    scores[c.Source],
			ChunkNum: c.ChunkNum,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}

	slog.Debug("detailed rerank", "sources", len(sources), "chunks", len(chunks), "kept", len(out))
	return out, nil
}

// rerankMemory splits the primary passages into an in-memory index local to
// this call and counts which sources the queries hit.
func (r *Reranker) rerankMemory(ctx context.Context, primaryResults []model.Passage, queries []string) ([]model.Passage, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(r.cfg.ChunkOverlap),
	)

	var (
		texts []string
		docs  []chromem.Document
	)
	for _, p := range primaryResults {
		parts, err := splitter.SplitText(p.Content)
		if err != nil {
			return nil, fmt.Errorf("memory rerank split: %w", err)
		}
		for _, part := range parts {
			texts = append(texts, part)
			docs = append(docs, chromem.Document{
				ID:       uuid.NewString(),
				Metadata: map[string]string{"source": p.Source},
				Content:  part,
			})
		}
	}

	query := BuildCompositeQuery(queries)
	n := min(len(docs)/10, r.cfg.MaxMemoryHits)
	if n <= 0 || strings.TrimSpace(query) == "" {
		out := make([]model.Passage, len(primaryResults))
		copy(out, primaryResults)
		return out, nil
	}

	embeddings, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: memory rerank embed: %w", ErrOracleUnavailable, err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("%w: memory rerank got %d embeddings for %d chunks", ErrOracleUnavailable, len(embeddings), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = embeddings[i]
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("memory-rerank", nil, func(ctx context.Context, text string) ([]float32, error) {
		return r.embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("memory rerank index: %w", err)
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("memory rerank index: %w", err)
	}

	hits, err := collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: memory rerank query: %w", ErrOracleUnavailable, err)
	}

	freq := make(map[string]int)
	for _, h := range hits {
		freq[h.Metadata["source"]]++
	}

	slog.Debug("memory rerank", "chunks", len(docs), "limit", n, "hits", len(hits))
	return SortByFrequency(primaryResults, freq), nil
}
