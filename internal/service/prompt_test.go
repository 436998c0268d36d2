package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

const testTemplates = `
system_prompt: "CTX[{{.context}}]"
source_template: "<{{.name}}>{{.quotes}}</{{.name}}>"
quote_template: "q({{.quote}})"
search_keyword_template: "K:{{.keyword_text}}"
response_template: "R:{{.search_result}}"
response_template_with_quote: "RQ:{{.search_result}}"
bot_summary_template: "{{.question}}|{{.summary}}"
messages:
  too_short: "short"
`

func newTestTemplates(t *testing.T) *templates.Store {
	t.Helper()
	store, err := templates.Parse([]byte(testTemplates))
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return store
}

func TestRender_GroupsBySourceAndChunkNum(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))
	passages := []model.Passage{
		{Source: "A", Content: "a2", ChunkNum: 2},
		{Source: "B", Content: "b0", ChunkNum: 0},
		{Source: "A", Content: "a1", ChunkNum: 1},
	}

	got, err := a.Render(passages, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "CTX[<A>q(a1)\nq(a2)</A>\n<B>q(b0)</B>]"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Caller order is untouched.
	if passages[0].Content != "a2" || passages[2].Content != "a1" {
		t.Error("render reordered the caller's passages")
	}
}

func TestRender_Empty(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))

	got, err := a.Render(nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CTX[]" {
		t.Errorf("expected %q, got %q", "CTX[]", got)
	}
}

func TestRender_Debug(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))
	passages := []model.Passage{{Source: "A", Content: "x"}}

	quiet, err := a.Render(passages, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loud, err := a.Render(passages, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quiet != loud {
		t.Error("debug output must not change the rendered prompt")
	}
}

func TestRender_MissingTemplate(t *testing.T) {
	store, err := templates.Parse([]byte(`system_prompt: "{{.context}}"`))
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	a := NewPromptAssembler(store)

	_, err = a.Render([]model.Passage{{Source: "A", Content: "x"}}, false)
	if !errors.Is(err, ErrTemplateMissing) {
		t.Errorf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestBuildKeywordResponse(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))

	got, err := a.BuildKeywordResponse([]string{"first\nquestion", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "K:> first question\n> second"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildSearchResponse_WithoutQuote(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))
	passages := []model.Passage{{Source: "A"}, {Source: "B"}}

	got, err := a.BuildSearchResponse(passages, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "R:| 1 | A |\n| 2 | B |"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildSearchResponse_WithQuote(t *testing.T) {
	a := NewPromptAssembler(newTestTemplates(t))
	long := strings.Repeat("x", 300) + "\nend"
	passages := []model.Passage{{Source: "A", Content: long}}

	got, err := a.BuildSearchResponse(passages, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tailText := strings.ReplaceAll(long[len(long)-200:], "\n", " ")
	want := "RQ:| 1 | A | ..." + tailText + " |"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildChatInput(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "sys"},
		{Role: model.RoleAssistant, Content: "prev"},
		{Role: model.RoleUser, Content: "question  "},
	}

	got := BuildChatInput(msgs)
	want := "[SYSTEM]: sys\n[ASSISTANT]: prev\n[USER]: question"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuildChatInput_Empty(t *testing.T) {
	if got := BuildChatInput(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
