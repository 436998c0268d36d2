package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// Payload keys written and read by QdrantStore.
const (
	payloadSource   = "source"
	payloadContent  = "content"
	payloadChunkNum = "chunk_num"
)

const defaultPageSize = 1000

// QdrantConfig holds connection settings for a Qdrant collection.
type QdrantConfig struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	MaxMessageSize int

	// PageSize is how many points each scroll request reads. Source lookups
	// keep paging until the collection is exhausted.
	PageSize uint32
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 64 * 1024 * 1024
	}
	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}
}

// NewQdrantClient dials Qdrant over gRPC.
func NewQdrantClient(cfg QdrantConfig) (*qdrant.Client, error) {
	cfg.ApplyDefaults()

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return client, nil
}

// EnsureQdrantCollections creates each missing collection with cosine
// distance and vectors of size dim.
func EnsureQdrantCollections(ctx context.Context, client *qdrant.Client, collections []string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: vector size must be positive, got %d", ErrInvalidConfig, dim)
	}
	for _, name := range collections {
		exists, err := client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check qdrant collection %q: %w", name, err)
		}
		if exists {
			continue
		}
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create qdrant collection %q: %w", name, err)
		}
		slog.Info("qdrant collection created", "collection", name, "dim", dim)
	}
	return nil
}

// QdrantStore is a collection backed by a Qdrant collection whose points
// carry source, content and chunk_num in their payload.
type QdrantStore struct {
	client     *qdrant.Client
	name       string
	collection string
	embedder   Embedder
	pageSize   uint32
	scrollPage scrollPageFunc
}

// scrollPageFunc reads one page of points and returns the offset of the next
// page, or nil after the last one.
type scrollPageFunc func(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)

// NewQdrantStore creates a store over an existing Qdrant collection.
func NewQdrantStore(client *qdrant.Client, name, collection string, embedder Embedder, pageSize uint32) (*QdrantStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: qdrant client is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return &QdrantStore{
		client:     client,
		name:       name,
		collection: collection,
		embedder:   embedder,
		pageSize:   pageSize,
		scrollPage: client.ScrollAndOffset,
	}, nil
}

// Name returns the collection name.
func (s *QdrantStore) Name() string {
	return s.name
}

// sourceFilter builds a keyword-membership filter on the source payload.
func sourceFilter(sources []string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadSource,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keywords{
								Keywords: &qdrant.RepeatedStrings{Strings: sources},
							},
						},
					},
				},
			},
		},
	}
}

// Search performs similarity search with an optional source filter.
func (s *QdrantStore) Search(ctx context.Context, query string, limit int, filter *SourceFilter) ([]Result, error) {
	if limit <= 0 {
		return []Result{}, nil
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter.Active() {
		req.Filter = sourceFilter(filter.Sources)
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", s.collection, err)
	}

	results := make([]Result, len(points))
	for i, p := range points {
		results[i] = Result{
			ID:         p.GetId().GetUuid(),
			Source:     p.GetPayload()[payloadSource].GetStringValue(),
			Content:    p.GetPayload()[payloadContent].GetStringValue(),
			ChunkNum:   int(p.GetPayload()[payloadChunkNum].GetIntegerValue()),
			Similarity: cosineToUnit(float64(p.GetScore())),
		}
	}

	slog.Debug("qdrant search",
		"collection", s.collection,
		"limit", limit,
		"filtered", filter.Active(),
		"results", len(results),
	)
	return results, nil
}

// FindBySources scrolls every point whose source is in sources.
func (s *QdrantStore) FindBySources(ctx context.Context, sources []string) ([]model.StoredChunk, error) {
	if len(sources) == 0 {
		return []model.StoredChunk{}, nil
	}
	return s.scroll(ctx, sourceFilter(sources))
}

// ListSources returns the distinct source labels, sorted.
func (s *QdrantStore) ListSources(ctx context.Context) ([]string, error) {
	chunks, err := s.scroll(ctx, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var sources []string
	for _, c := range chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// SourcesExist reports, per name, whether the source is present.
func (s *QdrantStore) SourcesExist(ctx context.Context, names []string) ([]bool, error) {
	exists := make([]bool, len(names))
	for i, name := range names {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.collection,
			Filter:         sourceFilter([]string{name}),
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, fmt.Errorf("count source %q: %w", name, err)
		}
		exists[i] = n > 0
	}
	return exists, nil
}

// AddChunks embeds and upserts chunks.
func (s *QdrantStore) AddChunks(ctx context.Context, chunks []model.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmbeddingFailed, len(embeddings), len(chunks))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadSource:   c.Source,
				payloadContent:  c.Content,
				payloadChunkNum: int64(c.ChunkNum),
			}),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", s.collection, err)
	}

	slog.Info("chunks stored", "collection", s.collection, "count", len(chunks))
	return nil
}

// scroll pages through every point matching filter.
func (s *QdrantStore) scroll(ctx context.Context, filter *qdrant.Filter) ([]model.StoredChunk, error) {
	chunks := make([]model.StoredChunk, 0)
	var offset *qdrant.PointId

	for pages := 1; ; pages++ {
		points, next, err := s.scrollPage(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(s.pageSize),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll collection %s: %w", s.collection, err)
		}

		for _, p := range points {
			chunks = append(chunks, model.StoredChunk{
				ID:       p.GetId().GetUuid(),
				Source:   p.GetPayload()[payloadSource].GetStringValue(),
				Content:  p.GetPayload()[payloadContent].GetStringValue(),
				ChunkNum: int(p.GetPayload()[payloadChunkNum].GetIntegerValue()),
			})
		}

		if next == nil || len(points) == 0 {
			slog.Debug("qdrant scroll", "collection", s.collection, "pages", pages, "points", len(chunks))
			return chunks, nil
		}
		offset = next
	}
}
