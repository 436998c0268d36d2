// Package model defines the domain types for the chat API.
package model

import "time"

// Passage is a single retrieved unit of text.
// Score is the similarity on a 0–100 scale.
type Passage struct {
	Source   string  `json:"source"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	ChunkNum int     `json:"chunk_num"`
}

// StoredChunk is a raw record returned by a direct lookup on a collection.
type StoredChunk struct {
	ID       string
	Source   string
	Content  string
	ChunkNum int
}

// Message roles used in a PromptBundle.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Message is one entry of the structured message list sent to the generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptBundle is the message set handed to the generation service.
type PromptBundle struct {
	System         string  `json:"system"`
	PriorAssistant *string `json:"prior_assistant,omitempty"`
	User           string  `json:"user"`
}

// Messages returns the bundle as an ordered role list:
// system, optional assistant, user.
func (b PromptBundle) Messages() []Message {
	msgs := make([]Message, 0, 3)
	msgs = append(msgs, Message{Role: RoleSystem, Content: b.System})
	if b.PriorAssistant != nil {
		msgs = append(msgs, Message{Role: RoleAssistant, Content: *b.PriorAssistant})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: b.User})
	return msgs
}

// FitResult is the outcome of fitting ranked passages into a token budget.
// When PartiallyIncluded is true, the passage at index FullyIncludedCount
// contributes a FragmentChars-long prefix to the bundle.
type FitResult struct {
	Bundle             PromptBundle `json:"bundle"`
	FullyIncludedCount int          `json:"fully_included_count"`
	PartiallyIncluded  bool         `json:"partially_included"`
	FragmentChars      int          `json:"fragment_chars,omitempty"`
	Tokens             int          `json:"tokens"`
}

// ChatRequest is the POST /v1/chat request body.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Strategy string    `json:"strategy"`
}

// SearchRequest is the POST /v1/search request body.
type SearchRequest struct {
	Queries   []string `json:"queries"`
	Limit     int      `json:"limit"`
	Strategy  string   `json:"strategy"`
	Secondary bool     `json:"secondary"`
}

// SearchResponse is the POST /v1/search response body.
type SearchResponse struct {
	Results  []Passage `json:"results"`
	Markdown string    `json:"markdown"`
}

// FitRequest is the POST /v1/fit request body.
type FitRequest struct {
	Question     string    `json:"question"`
	PreviousTurn *string   `json:"previous_turn,omitempty"`
	Results      []Passage `json:"results"`
	MaxTokens    int       `json:"max_tokens"`
}

// FitResponse is the POST /v1/fit response body.
type FitResponse struct {
	Result  *FitResult `json:"result"`
	Summary string     `json:"summary"`
}

// SourceUpload is one document in a PUT /v1/sources/upload request.
type SourceUpload struct {
	SourceName string `json:"source_name"`
	Content    string `json:"content"`
}

// SourcesResponse is the GET /v1/sources response body.
type SourcesResponse struct {
	Collection string   `json:"collection"`
	Sources    []string `json:"sources"`
}

// SourceExistsResponse is the GET /v1/sources/exists response body.
type SourceExistsResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// UploadResponse is the PUT /v1/sources/upload response body.
type UploadResponse struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
}

// SettingsResponse is the GET /v1/settings response body.
type SettingsResponse struct {
	IntroductionMessage string `json:"introduction_message"`
}

// StreamEvent is one server-sent event on the chat stream.
type StreamEvent struct {
	Type  string `json:"type"` // "text", "error", "done"
	Text  string `json:"text,omitempty"`
	Retry bool   `json:"allow_retry,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}

// Usage reports how much of the retrieved context reached the generator.
type Usage struct {
	TotalResults       int  `json:"total_results"`
	FullyIncludedCount int  `json:"fully_included_count"`
	PartiallyIncluded  bool `json:"partially_included"`
	PromptTokens       int  `json:"prompt_tokens"`
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ChatLog holds all fields for the structured per-request log line.
type ChatLog struct {
	Timestamp         time.Time `json:"ts"`
	RequestID         string    `json:"request_id"`
	QuestionHash      string    `json:"question_hash"`
	NumUserMessages   int       `json:"num_user_messages"`
	Strategy          string    `json:"strategy"`
	NumResults        int       `json:"num_results"`
	FullyIncluded     int       `json:"fully_included"`
	PartiallyIncluded bool      `json:"partially_included"`
	PromptTokens      int       `json:"prompt_tokens"`
	MaxTokens         int       `json:"max_tokens"`
	TooShort          bool      `json:"too_short"`
	LatencyMSTotal    int64     `json:"latency_ms_total"`
	LatencyMSSearch   int64     `json:"latency_ms_search"`
	LatencyMSRerank   int64     `json:"latency_ms_rerank"`
	LatencyMSFit      int64     `json:"latency_ms_fit"`
	LatencyMSLLM      int64     `json:"latency_ms_llm"`
	LLMModel          string    `json:"llm_model"`
	CompletionChars   int       `json:"completion_chars"`
	Outcome           string    `json:"outcome"`
}
