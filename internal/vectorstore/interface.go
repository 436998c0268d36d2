// Package vectorstore provides the similarity-search collections the chat
// pipeline retrieves from.
//
// Two collections are used: "primary" holds the full passages handed to the
// generator, "secondary" holds smaller chunks used as a cheaper reranking
// signal. They are independent Store instances and need not contain the same
// passages.
//
// Backends:
//   - PGStore: Postgres + pgvector, one table per collection
//   - QdrantStore: Qdrant over gRPC, one collection per collection
package vectorstore

import (
	"context"
	"errors"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// Collection names.
const (
	Primary   = "primary"
	Secondary = "secondary"
)

var (
	// ErrInvalidConfig is returned when a store is built with bad settings.
	ErrInvalidConfig = errors.New("invalid vector store config")

	// ErrEmbeddingFailed wraps embedder failures inside a store call.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Embedder turns text into vectors. Implemented in the service package.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SourceFilter restricts a search to passages whose source is in Sources.
// A nil filter, or one with no sources, matches everything.
type SourceFilter struct {
	Sources []string
}

// Active reports whether the filter restricts anything.
func (f *SourceFilter) Active() bool {
	return f != nil && len(f.Sources) > 0
}

// Result is a single search hit. Similarity is in [0, 1].
type Result struct {
	ID         string
	Source     string
	Content    string
	ChunkNum   int
	Similarity float64
}

// cosineToUnit maps a cosine similarity in [-1, 1] onto [0, 1], clamping
// rounding noise at either end.
func cosineToUnit(cos float64) float64 {
	u := (1 + cos) / 2
	switch {
	case u < 0:
		return 0
	case u > 1:
		return 1
	}
	return u
}

// Store is a similarity-searchable collection of passages.
type Store interface {
	// Search returns at most limit hits ordered by descending similarity.
	Search(ctx context.Context, query string, limit int, filter *SourceFilter) ([]Result, error)

	// FindBySources returns every stored chunk whose source is in sources.
	FindBySources(ctx context.Context, sources []string) ([]model.StoredChunk, error)

	// ListSources returns the distinct source labels in the collection.
	ListSources(ctx context.Context) ([]string, error)

	// SourcesExist reports, per name, whether any chunk has that source.
	SourcesExist(ctx context.Context, names []string) ([]bool, error)

	// AddChunks embeds and stores chunks. Chunks without an ID get one.
	AddChunks(ctx context.Context, chunks []model.StoredChunk) error

	// Name is the collection name, for logs.
	Name() string
}
