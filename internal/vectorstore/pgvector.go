package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// PGStore is a collection backed by one Postgres table with a pgvector
// column. Expected schema:
//
//	CREATE TABLE <table> (
//	    id        uuid PRIMARY KEY,
//	    source    text NOT NULL,
//	    content   text NOT NULL,
//	    chunk_num integer NOT NULL DEFAULT 0,
//	    embedding vector NOT NULL
//	);
type PGStore struct {
	pool     *pgxpool.Pool
	name     string
	table    string // already sanitized
	embedder Embedder
}

// NewPGStore creates a store over table.
func NewPGStore(pool *pgxpool.Pool, name, table string, embedder Embedder) (*PGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pool is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if table == "" {
		return nil, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}
	return &PGStore{
		pool:     pool,
		name:     name,
		table:    pgx.Identifier{table}.Sanitize(),
		embedder: embedder,
	}, nil
}

// Name returns the collection name.
func (s *PGStore) Name() string {
	return s.name
}

// Search performs cosine similarity search, optionally restricted to a set
// of sources.
func (s *PGStore) Search(ctx context.Context, query string, limit int, filter *SourceFilter) ([]Result, error) {
	if limit <= 0 {
		return []Result{}, nil
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	vec := pgvector.NewVector(embedding)

	sql := `
		SELECT id::text, source, content, chunk_num, 1 - (embedding <=> $1) AS cosine
		FROM ` + s.table
	args := []any{vec, limit}
	if filter.Active() {
		sql += ` WHERE source = ANY($3)`
		args = append(args, filter.Sources)
	}
	sql += ` ORDER BY embedding <=> $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query on %s: %w", s.name, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r   Result
			cos float64
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Content, &r.ChunkNum, &cos); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		r.Similarity = cosineToUnit(cos)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector rows iteration: %w", err)
	}

	slog.Debug("pgvector search",
		"collection", s.name,
		"limit", limit,
		"filtered", filter.Active(),
		"results", len(results),
	)
	return results, nil
}

// FindBySources returns every chunk whose source is in sources.
func (s *PGStore) FindBySources(ctx context.Context, sources []string) ([]model.StoredChunk, error) {
	if len(sources) == 0 {
		return []model.StoredChunk{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, source, content, chunk_num FROM `+s.table+` WHERE source = ANY($1)`,
		sources,
	)
	if err != nil {
		return nil, fmt.Errorf("source lookup on %s: %w", s.name, err)
	}
	defer rows.Close()

	var chunks []model.StoredChunk
	for rows.Next() {
		var c model.StoredChunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Content, &c.ChunkNum); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk rows iteration: %w", err)
	}
	return chunks, nil
}

// ListSources returns the distinct source labels, sorted.
func (s *PGStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT source FROM `+s.table+` ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources on %s: %w", s.name, err)
	}
	defer rows.Close()

	sources, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect sources: %w", err)
	}
	return sources, nil
}

// SourcesExist reports, per name, whether the source is present.
func (s *PGStore) SourcesExist(ctx context.Context, names []string) ([]bool, error) {
	exists := make([]bool, len(names))
	for i, name := range names {
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM `+s.table+` WHERE source = $1)`, name,
		).Scan(&exists[i])
		if err != nil {
			return nil, fmt.Errorf("check source %q: %w", name, err)
		}
	}
	return exists, nil
}

// AddChunks embeds chunks in one call and inserts them in a single batch.
func (s *PGStore) AddChunks(ctx context.Context, chunks []model.StoredChunk) error {
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

	batch := &pgx.Batch{}
	for i, c := range chunks {
		id := uuid.New()
		if c.ID != "" {
			parsed, err := uuid.Parse(c.ID)
			if err != nil {
				return fmt.Errorf("chunk %d: invalid id %q: %w", i, c.ID, err)
			}
			id = parsed
		}
		batch.Queue(
			`INSERT INTO `+s.table+` (id, source, content, chunk_num, embedding) VALUES ($1, $2, $3, $4, $5)`,
			id, c.Source, c.Content, c.ChunkNum, pgvector.NewVector(embeddings[i]),
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks into %s: %w", s.name, err)
	}

	slog.Info("chunks stored", "collection", s.name, "count", len(chunks))
	return nil
}
