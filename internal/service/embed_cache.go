package service

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

// CachedEmbedder memoizes query embeddings in a bounded LRU cache. Document
// embeddings pass straight through since they are rarely repeated.
type CachedEmbedder struct {
	next  vectorstore.Embedder
	cache *lru.Cache
}

// NewCachedEmbedder wraps next with a cache holding up to size query vectors.
func NewCachedEmbedder(next vectorstore.Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// EmbedQuery returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedDocuments delegates to the wrapped embedder.
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
