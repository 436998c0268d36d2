package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// ErrLLMFailed wraps failures of the generation service.
var ErrLLMFailed = errors.New("llm generation failed")

// LLMResult holds what a streamed generation produced.
type LLMResult struct {
	Text    string
	Latency time.Duration
}

// LLMService streams chat completions from an OpenAI-compatible endpoint.
type LLMService struct {
	model       string
	temperature float64
	client      openai.Client
}

// NewLLMService creates a new LLMService. baseURL may be empty for the
// default OpenAI endpoint.
func NewLLMService(baseURL, apiKey, model string, temperature float64) *LLMService {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &LLMService{
		model:       model,
		temperature: temperature,
		client:      openai.NewClient(opts...),
	}
}

// Stream sends bundle to the model and calls onDelta with each piece of
// generated text as it arrives. An error from onDelta stops the stream.
func (s *LLMService) Stream(ctx context.Context, bundle model.PromptBundle, onDelta func(string) error) (*LLMResult, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(s.model),
		Messages: toChatMessages(bundle.Messages()),
	}
	if s.temperature > 0 {
		params.Temperature = openai.Float(s.temperature)
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text []byte
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		text = append(text, delta...)
		if err := onDelta(delta); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	return &LLMResult{
		Text:    string(text),
		Latency: time.Since(start),
	}, nil
}

// Model returns the configured model name.
func (s *LLMService) Model() string {
	return s.model
}

func toChatMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
