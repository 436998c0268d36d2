package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

func TestBuildCompositeQuery(t *testing.T) {
	got := BuildCompositeQuery([]string{"line one\nline two", "second query"})
	assert.Equal(t, "line one line two\nsecond query", got)
	assert.Equal(t, "", BuildCompositeQuery(nil))
}

func TestSimilaritySearch_ScalesScores(t *testing.T) {
	store := &fakeStore{
		name: vectorstore.Primary,
		results: []vectorstore.Result{
			{Source: "A", Content: "a", Similarity: 0.875, ChunkNum: 3},
			{Source: "B", Content: "b", Similarity: 0.5},
		},
	}

	got, err := SimilaritySearch(context.Background(), store, []string{"q"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 87.5, got[0].Score, 1e-9)
	assert.Equal(t, 3, got[0].ChunkNum)
	assert.Equal(t, "A", got[0].Source)
	assert.Equal(t, 10, store.lastLimit)
}

func TestSimilaritySearch_ZeroLimit(t *testing.T) {
	store := &fakeStore{results: []vectorstore.Result{{Source: "A"}}}

	got, err := SimilaritySearch(context.Background(), store, []string{"q"}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "", store.lastQuery, "store must not be called")
}

func TestSimilaritySearch_Failure(t *testing.T) {
	cause := errors.New("connection reset")
	store := &fakeStore{name: vectorstore.Primary, searchErr: cause}

	_, err := SimilaritySearch(context.Background(), store, []string{"q"}, 5, nil)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestSearchService_NormalizesAfterRerank(t *testing.T) {
	primary := &fakeStore{
		name: vectorstore.Primary,
		results: []vectorstore.Result{
			{Source: "book one\nchapter a", Content: "x"},
			{Source: "book two", Content: "y"},
		},
	}
	secondary := &fakeStore{
		name: vectorstore.Secondary,
		results: []vectorstore.Result{
			{Source: "book two"}, {Source: "book two"}, {Source: "book one\nchapter a"},
		},
	}
	svc := NewSearchService(primary, secondary, NewReranker(primary, secondary, &keywordEmbedder{}, RerankerConfig{}))

	out, err := svc.Search(context.Background(), []string{"q"}, 2, StrategyOverall, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"Book Two", "Book One → Chapter A"}, sourcesOf(out.Passages))
	// The secondary filter saw the raw labels.
	assert.Equal(t, []string{"book one\nchapter a", "book two"}, secondary.lastFilter.Sources)
}

func TestSearchService_SecondaryCollection(t *testing.T) {
	primary := &fakeStore{name: vectorstore.Primary}
	secondary := &fakeStore{
		name:    vectorstore.Secondary,
		results: []vectorstore.Result{{Source: "s", Content: "from secondary"}},
	}
	svc := NewSearchService(primary, secondary, NewReranker(primary, secondary, &keywordEmbedder{}, RerankerConfig{}))

	out, err := svc.Search(context.Background(), []string{"q"}, 20, StrategyNone, true)
	require.NoError(t, err)
	require.Len(t, out.Passages, 1)
	assert.Equal(t, "from secondary", out.Passages[0].Content)
	assert.Equal(t, "", primary.lastQuery)
}

func TestSearchService_DetailedSkipsPrimarySearch(t *testing.T) {
	primary := &fakeStore{
		name:      vectorstore.Primary,
		searchErr: errors.New("primary search must not run"),
		chunks: []model.StoredChunk{
			{Source: "A", Content: "a0", ChunkNum: 0},
			{Source: "A", Content: "a1", ChunkNum: 1},
		},
	}
	secondary := &fakeStore{
		name:    vectorstore.Secondary,
		results: []vectorstore.Result{{Source: "A", Similarity: 0.7}},
	}
	svc := NewSearchService(primary, secondary, NewReranker(primary, secondary, &keywordEmbedder{}, RerankerConfig{}))

	out, err := svc.Search(context.Background(), []string{"q"}, 5, StrategyDetailed, false)
	require.NoError(t, err)
	assert.Equal(t, "", primary.lastQuery)
	assert.Equal(t, "q", secondary.lastQuery)
	assert.Equal(t, []string{"A"}, primary.lastSources)
	require.Len(t, out.Passages, 2)
	assert.Equal(t, "A", out.Passages[0].Source)
	assert.Zero(t, out.SearchLatency)
}
