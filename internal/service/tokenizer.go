package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens the way the generation model does.
type Tokenizer interface {
	Count(ctx context.Context, text string) (int, error)
	MaxContextLength() int
}

// TiktokenTokenizer counts tokens locally with a BPE encoding.
type TiktokenTokenizer struct {
	enc        *tiktoken.Tiktoken
	maxContext int
}

// NewTiktokenTokenizer loads encoding (e.g. "cl100k_base").
func NewTiktokenTokenizer(encoding string, maxContext int) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc, maxContext: maxContext}, nil
}

// Count returns the number of tokens in text.
func (t *TiktokenTokenizer) Count(ctx context.Context, text string) (int, error) {
	return len(t.enc.Encode(text, nil, nil)), nil
}

// MaxContextLength returns the model context window.
func (t *TiktokenTokenizer) MaxContextLength() int {
	return t.maxContext
}

// HTTPTokenizer counts tokens with a model server's /tokenize endpoint
// (llama.cpp and compatible servers).
type HTTPTokenizer struct {
	endpoint   string // e.g., "http://llm:8080/tokenize"
	maxContext int
	retries    int
	retryDelay time.Duration
	client     *http.Client
}

// NewHTTPTokenizer creates a new HTTPTokenizer.
func NewHTTPTokenizer(endpoint string, maxContext int) *HTTPTokenizer {
	return &HTTPTokenizer{
		endpoint:   endpoint,
		maxContext: maxContext,
		retries:    5,
		retryDelay: 2 * time.Second,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Count returns the number of tokens in text. A 503 while the model is
// loading is retried.
func (t *HTTPTokenizer) Count(ctx context.Context, text string) (int, error) {
	bodyBytes, err := json.Marshal(tokenizeRequest{Content: text})
	if err != nil {
		return 0, fmt.Errorf("marshal tokenize request: %w", err)
	}

	var resp *http.Response
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return 0, fmt.Errorf("create tokenize request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("tokenize HTTP request: %w", err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable || attempt >= t.retries {
			break
		}
		resp.Body.Close()

		slog.Warn("tokenize endpoint loading, retrying", "attempt", attempt, "retry_delay", t.retryDelay)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(t.retryDelay):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("tokenize service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode tokenize response: %w", err)
	}
	return len(out.Tokens), nil
}

// MaxContextLength returns the model context window.
func (t *HTTPTokenizer) MaxContextLength() int {
	return t.maxContext
}
