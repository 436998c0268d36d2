// Package app wires configuration into the chat pipeline services. Both the
// HTTP server and the ragctl CLI build their dependencies through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qdrant/go-client/qdrant"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/db"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/service"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Templates *templates.Store
	Primary   vectorstore.Store
	Secondary vectorstore.Store
	Assembler *service.PromptAssembler
	Builder   *service.ContextBuilder
	Summary   *service.SummaryBuilder
	Search    *service.SearchService
	LLM       *service.LLMService

	health  func(ctx context.Context) error
	closers []func()
}

// New connects to the configured backend and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	tmpl, err := LoadTemplates(cfg)
	if err != nil {
		return nil, err
	}
	a.Templates = tmpl

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	tokenizer, err := NewTokenizer(cfg)
	if err != nil {
		return nil, err
	}

	if err := a.openStores(ctx, embedder); err != nil {
		a.Close()
		return nil, err
	}

	a.Assembler = service.NewPromptAssembler(tmpl)
	a.Builder = service.NewContextBuilder(a.Assembler, tokenizer)
	a.Summary = service.NewSummaryBuilder(tmpl)

	rcfg := service.DefaultRerankerConfig()
	rcfg.Factor = cfg.RerankFactor
	rcfg.DetailedLimit = cfg.DetailedRerankLimit
	reranker := service.NewReranker(a.Primary, a.Secondary, embedder, rcfg)
	a.Search = service.NewSearchService(a.Primary, a.Secondary, reranker)

	a.LLM = service.NewLLMService(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature)

	slog.Info("services ready",
		"backend", cfg.VectorBackend,
		"embed_provider", cfg.EmbedProvider,
		"tokenizer", cfg.Tokenizer,
		"max_context_tokens", cfg.MaxContextTokens,
		"rerank_strategy", cfg.RerankStrategy,
		"llm_model", cfg.LLMModel,
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context, embedder vectorstore.Embedder) error {
	cfg := a.Config
	tables := []string{cfg.PrimaryCollection, cfg.SecondaryCollection}

	switch cfg.VectorBackend {
	case config.BackendQdrant:
		client, err := newQdrantClient(cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.health = func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		}

		if a.Primary, err = vectorstore.NewQdrantStore(client, vectorstore.Primary, cfg.PrimaryCollection, embedder, 0); err != nil {
			return err
		}
		if a.Secondary, err = vectorstore.NewQdrantStore(client, vectorstore.Secondary, cfg.SecondaryCollection, embedder, 0); err != nil {
			return err
		}

	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.health = pool.Ping

		if err := db.StartupChecks(ctx, pool, tables); err != nil {
			return fmt.Errorf("startup checks: %w", err)
		}

		if a.Primary, err = vectorstore.NewPGStore(pool, vectorstore.Primary, cfg.PrimaryCollection, embedder); err != nil {
			return err
		}
		if a.Secondary, err = vectorstore.NewPGStore(pool, vectorstore.Secondary, cfg.SecondaryCollection, embedder); err != nil {
			return err
		}
	}
	return nil
}

// Health checks the vector backend.
func (a *App) Health(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	return a.health(ctx)
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// LoadTemplates reads TEMPLATES_PATH, or the built-in set when it is unset.
func LoadTemplates(cfg *config.Config) (*templates.Store, error) {
	if cfg.TemplatesPath == "" {
		return templates.Default()
	}
	return templates.Load(cfg.TemplatesPath)
}

// NewEmbedder builds the configured embedder behind a query cache.
func NewEmbedder(cfg *config.Config) (vectorstore.Embedder, error) {
	var inner vectorstore.Embedder
	switch cfg.EmbedProvider {
	case config.EmbedProviderOpenAI:
		e, err := service.NewOpenAIEmbedder(cfg.EmbedAPIKey, cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedDimensions)
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		inner = service.NewEmbedService(cfg.EmbedEndpoint)
	}

	if cfg.EmbedCacheSize <= 0 {
		return inner, nil
	}
	return service.NewCachedEmbedder(inner, cfg.EmbedCacheSize)
}

// NewTokenizer builds the configured token counter.
func NewTokenizer(cfg *config.Config) (service.Tokenizer, error) {
	if cfg.Tokenizer == config.TokenizerHTTP {
		return service.NewHTTPTokenizer(cfg.TokenizerEndpoint, cfg.ModelMaxContext), nil
	}
	return service.NewTiktokenTokenizer(cfg.TokenizerEncoding, cfg.ModelMaxContext)
}

// Migrate creates the collection tables or Qdrant collections.
func Migrate(ctx context.Context, cfg *config.Config) error {
	collections := []string{cfg.PrimaryCollection, cfg.SecondaryCollection}

	if cfg.VectorBackend == config.BackendQdrant {
		client, err := newQdrantClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		return vectorstore.EnsureQdrantCollections(ctx, client, collections, cfg.EmbedDimensions)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return migratePG(ctx, pool, collections)
}

func migratePG(ctx context.Context, pool *pgxpool.Pool, tables []string) error {
	if err := db.Migrate(ctx, pool, tables); err != nil {
		return err
	}
	return db.StartupChecks(ctx, pool, tables)
}

func newQdrantClient(cfg *config.Config) (*qdrant.Client, error) {
	return vectorstore.NewQdrantClient(vectorstore.QdrantConfig{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantTLS,
	})
}
