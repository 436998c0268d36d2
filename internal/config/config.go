// Package config loads all environment variables for the chat-api-go service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Vector backends.
const (
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"
)

// Embedding providers.
const (
	EmbedProviderHTTP   = "http"
	EmbedProviderOpenAI = "openai"
)

// Tokenizer kinds.
const (
	TokenizerTiktoken = "tiktoken"
	TokenizerHTTP     = "http"
)

// DefaultModelMaxContext is the context window of the default chat model.
const DefaultModelMaxContext = 32769

// DefaultMaxContextTokens leaves 5% headroom below the model window plus
// room for a 2048-token completion.
const DefaultMaxContextTokens = DefaultModelMaxContext*95/100 - 2048

// Config holds all configuration for the chat API service.
type Config struct {
	// Server
	APIHost string
	APIPort string

	// Database (pgvector backend)
	DatabaseURL string

	// Vector store
	VectorBackend       string
	QdrantHost          string
	QdrantPort          int
	QdrantAPIKey        string
	QdrantTLS           bool
	PrimaryCollection   string
	SecondaryCollection string

	// Embeddings
	EmbedProvider   string
	EmbedModel      string
	EmbedDimensions int
	EmbedEndpoint   string
	EmbedAPIKey     string
	EmbedBaseURL    string
	EmbedCacheSize  int

	// Tokenizer
	Tokenizer         string
	TokenizerEncoding string
	TokenizerEndpoint string
	ModelMaxContext   int

	// Context budgeting
	MaxContextTokens int

	// Retrieval and reranking
	SearchLimit         int
	RerankStrategy      string
	RerankFactor        int
	DetailedRerankLimit int

	// Question checks
	MinQuestionWords int
	MaxUserMessages  int

	// LLM
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64

	// Templates; empty uses the built-in set
	TemplatesPath string

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Load reads a .env file if one is present, then configuration from
// environment variables with sensible defaults. Variables already set in the
// environment take precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := &Config{
		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envOr("API_PORT", "8000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		VectorBackend:       envOr("VECTOR_BACKEND", BackendPGVector),
		QdrantHost:          envOr("QDRANT_HOST", "localhost"),
		QdrantPort:          envInt("QDRANT_PORT", 6334),
		QdrantAPIKey:        os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:           envBool("QDRANT_TLS", false),
		PrimaryCollection:   envOr("PRIMARY_COLLECTION", "primary_chunks"),
		SecondaryCollection: envOr("SECONDARY_COLLECTION", "secondary_chunks"),

		EmbedProvider:   envOr("EMBED_PROVIDER", EmbedProviderHTTP),
		EmbedModel:      envOr("EMBED_MODEL", "text-embedding-3-large"),
		EmbedDimensions: envInt("EMBED_DIMENSIONS", 0),
		EmbedEndpoint:   envOr("EMBED_ENDPOINT", "http://embed:8001/embed"),
		EmbedAPIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedBaseURL:    os.Getenv("EMBED_BASE_URL"),
		EmbedCacheSize:  envInt("EMBED_CACHE_SIZE", 1024),

		Tokenizer:         envOr("TOKENIZER", TokenizerTiktoken),
		TokenizerEncoding: envOr("TOKENIZER_ENCODING", "cl100k_base"),
		TokenizerEndpoint: envOr("TOKENIZER_ENDPOINT", "http://llm:8080/tokenize"),
		ModelMaxContext:   envInt("MODEL_MAX_CONTEXT", DefaultModelMaxContext),

		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", DefaultMaxContextTokens),

		SearchLimit:         envInt("SEARCH_LIMIT", 20),
		RerankStrategy:      envOr("RERANK_STRATEGY", "none"),
		RerankFactor:        envInt("RERANK_FACTOR", 2),
		DetailedRerankLimit: envInt("DETAILED_RERANK_LIMIT", 45),

		MinQuestionWords: envInt("MIN_QUESTION_WORDS", 10),
		MaxUserMessages:  envInt("MAX_USER_MESSAGES", 5),

		LLMBaseURL:     os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       envOr("LLM_MODEL", "Qwen/Qwen2.5-72B-Instruct-Turbo"),
		LLMTemperature: envFloat("LLM_TEMPERATURE", 0.5),

		TemplatesPath: os.Getenv("TEMPLATES_PATH"),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 300 * time.Second, // chat responses are streamed
		IdleTimeout:  60 * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case BackendPGVector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPGVector)
		}
	case BackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendPGVector, BackendQdrant, c.VectorBackend)
	}

	switch c.EmbedProvider {
	case EmbedProviderHTTP:
	case EmbedProviderOpenAI:
		if c.EmbedAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s embedding provider", EmbedProviderOpenAI)
		}
	default:
		return fmt.Errorf("EMBED_PROVIDER must be %q or %q, got %q", EmbedProviderHTTP, EmbedProviderOpenAI, c.EmbedProvider)
	}

	switch c.Tokenizer {
	case TokenizerTiktoken, TokenizerHTTP:
	default:
		return fmt.Errorf("TOKENIZER must be %q or %q, got %q", TokenizerTiktoken, TokenizerHTTP, c.Tokenizer)
	}

	if c.MaxContextTokens <= 0 {
		return fmt.Errorf("MAX_CONTEXT_TOKENS must be positive, got %d", c.MaxContextTokens)
	}
	return nil
}

// Addr returns the listen address as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
