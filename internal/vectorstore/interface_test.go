package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopEmbedder struct{}

func (nopEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (nopEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func TestSourceFilter_Active(t *testing.T) {
	var nilFilter *SourceFilter
	assert.False(t, nilFilter.Active())
	assert.False(t, (&SourceFilter{}).Active())
	assert.True(t, (&SourceFilter{Sources: []string{"a"}}).Active())
}

func TestNewPGStore_Validation(t *testing.T) {
	_, err := NewPGStore(nil, Primary, "primary_chunks", nopEmbedder{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewQdrantStore_Validation(t *testing.T) {
	_, err := NewQdrantStore(nil, Primary, "primary", nopEmbedder{}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, uint32(1000), cfg.PageSize)
}

func TestSourceFilter_QdrantShape(t *testing.T) {
	f := sourceFilter([]string{"a", "b"})
	require.Len(t, f.Must, 1)
	field := f.Must[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, payloadSource, field.Key)
	assert.Equal(t, []string{"a", "b"}, field.GetMatch().GetKeywords().GetStrings())
}

func TestEnsureQdrantCollections_NeedsVectorSize(t *testing.T) {
	err := EnsureQdrantCollections(context.Background(), nil, []string{"primary"}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCosineToUnit(t *testing.T) {
	tests := []struct {
		cos  float64
		want float64
	}{
		{1, 1},
		{0, 0.5},
		{-1, 0},
		{0.5, 0.75},
		{1.0000001, 1},
		{-1.0000001, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, cosineToUnit(tt.cos), 1e-9, "cos=%v", tt.cos)
	}
}

func point(id, source string, chunk int) *qdrant.RetrievedPoint {
	return &qdrant.RetrievedPoint{
		Id: qdrant.NewIDUUID(id),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadSource:   source,
			payloadContent:  "content of " + id,
			payloadChunkNum: int64(chunk),
		}),
	}
}

// pagedScroll serves pages in order and records the offset of each request.
type pagedScroll struct {
	pages   [][]*qdrant.RetrievedPoint
	offsets []*qdrant.PointId
	limits  []uint32
	err     error
}

func (p *pagedScroll) page(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
	p.offsets = append(p.offsets, req.GetOffset())
	p.limits = append(p.limits, req.GetLimit())
	n := len(p.offsets) - 1
	if p.err != nil && n == 1 {
		return nil, nil, p.err
	}
	if n >= len(p.pages) {
		return nil, nil, nil
	}
	var next *qdrant.PointId
	if n+1 < len(p.pages) {
		next = p.pages[n+1][0].GetId()
	}
	return p.pages[n], next, nil
}

func newPagedStore(p *pagedScroll) *QdrantStore {
	return &QdrantStore{
		name:       Primary,
		collection: "primary",
		embedder:   nopEmbedder{},
		pageSize:   2,
		scrollPage: p.page,
	}
}

const (
	uuidA = "00000000-0000-0000-0000-00000000000a"
	uuidB = "00000000-0000-0000-0000-00000000000b"
	uuidC = "00000000-0000-0000-0000-00000000000c"
	uuidD = "00000000-0000-0000-0000-00000000000d"
	uuidE = "00000000-0000-0000-0000-00000000000e"
)

func TestQdrantStore_FindBySourcesReadsEveryPage(t *testing.T) {
	p := &pagedScroll{pages: [][]*qdrant.RetrievedPoint{
		{point(uuidA, "mn 1", 0), point(uuidB, "mn 1", 1)},
		{point(uuidC, "mn 1", 2), point(uuidD, "mn 2", 0)},
		{point(uuidE, "mn 2", 1)},
	}}
	store := newPagedStore(p)

	chunks, err := store.FindBySources(context.Background(), []string{"mn 1", "mn 2"})
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	assert.Equal(t, uuidA, chunks[0].ID)
	assert.Equal(t, uuidE, chunks[4].ID)
	assert.Equal(t, "mn 2", chunks[4].Source)
	assert.Equal(t, 1, chunks[4].ChunkNum)
	assert.Equal(t, "content of "+uuidC, chunks[2].Content)

	require.Len(t, p.offsets, 3)
	assert.Nil(t, p.offsets[0])
	assert.Equal(t, uuidC, p.offsets[1].GetUuid())
	assert.Equal(t, uuidE, p.offsets[2].GetUuid())
	assert.Equal(t, []uint32{2, 2, 2}, p.limits)
}

func TestQdrantStore_ListSourcesAcrossPages(t *testing.T) {
	p := &pagedScroll{pages: [][]*qdrant.RetrievedPoint{
		{point(uuidA, "sn 56.11", 0), point(uuidB, "mn 10", 0)},
		{point(uuidC, "an 3.65", 0)},
	}}

	sources, err := newPagedStore(p).ListSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"an 3.65", "mn 10", "sn 56.11"}, sources)
}

func TestQdrantStore_ScrollEmptyCollection(t *testing.T) {
	p := &pagedScroll{}

	chunks, err := newPagedStore(p).FindBySources(context.Background(), []string{"mn 1"})
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
	assert.Len(t, p.offsets, 1)
}

func TestQdrantStore_ScrollPageError(t *testing.T) {
	boom := errors.New("connection reset")
	p := &pagedScroll{
		pages: [][]*qdrant.RetrievedPoint{
			{point(uuidA, "mn 1", 0)},
			{point(uuidB, "mn 1", 1)},
		},
		err: boom,
	}

	_, err := newPagedStore(p).FindBySources(context.Background(), []string{"mn 1"})
	assert.ErrorIs(t, err, boom)
}
