package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedService_EmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := embedResponse{}
		for i := range req.Texts {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	svc := NewEmbedService(srv.URL)
	vecs, err := svc.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)

	q, err := svc.EmbedQuery(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, q)
}

func TestEmbedService_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	_, err := NewEmbedService(srv.URL).EmbedQuery(context.Background(), "a")
	assert.Error(t, err)
}

func TestEmbedService_Empty(t *testing.T) {
	vecs, err := NewEmbedService("http://unused.invalid").EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCachedEmbedder_QueryHits(t *testing.T) {
	inner := &keywordEmbedder{}
	c, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	first, err := c.EmbedQuery(context.Background(), "alpha")
	require.NoError(t, err)
	second, err := c.EmbedQuery(context.Background(), "alpha")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_DocumentsPassThrough(t *testing.T) {
	inner := &keywordEmbedder{}
	c, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, c.Len())
}

func TestNewCachedEmbedder_InvalidSize(t *testing.T) {
	_, err := NewCachedEmbedder(&keywordEmbedder{}, 0)
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "text-embedding-3-small", 0)
	assert.Error(t, err)

	_, err = NewOpenAIEmbedder("key", "", "", 0)
	assert.Error(t, err)
}
