package service

import (
	"testing"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

const longQuestion = "which discourse tells the story of the blind monk who walked back to see the Buddha"

func TestCheckQuestion_NoUserMessage(t *testing.T) {
	result := CheckQuestion([]model.Message{{Role: model.RoleAssistant, Content: "hi"}}, 5, 10)
	if !result.Reject {
		t.Error("expected reject without a user message")
	}
}

func TestCheckQuestion_LastTooShort(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: longQuestion},
		{Role: model.RoleUser, Content: "hi there"},
	}
	result := CheckQuestion(msgs, 5, 10)
	if !result.Reject {
		t.Error("expected reject when the latest question is short")
	}
}

func TestCheckQuestion_DropsShortEarlierMessages(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "welcome"},
		{Role: model.RoleUser, Content: "  " + longQuestion + "  "},
	}
	result := CheckQuestion(msgs, 5, 10)
	if result.Reject {
		t.Fatalf("unexpected reject: %s", result.Reason)
	}
	if len(result.Queries) != 1 || result.Queries[0] != longQuestion {
		t.Errorf("expected only the trimmed long question, got %q", result.Queries)
	}
}

func TestCheckQuestion_KeepsLastN(t *testing.T) {
	var msgs []model.Message
	for i := 0; i < 7; i++ {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: longQuestion + string(rune('a'+i))})
	}
	result := CheckQuestion(msgs, 5, 10)
	if len(result.Queries) != 5 {
		t.Fatalf("expected 5 queries, got %d", len(result.Queries))
	}
	if result.Queries[0] != longQuestion+"c" {
		t.Errorf("expected the oldest kept query to be the third message, got %q", result.Queries[0])
	}
}

func TestLastAssistantMessage(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleAssistant, Content: "first"},
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleAssistant, Content: "second"},
		{Role: model.RoleUser, Content: "q2"},
	}
	got := LastAssistantMessage(msgs)
	if got == nil || *got != "second" {
		t.Errorf("expected 'second', got %v", got)
	}

	if LastAssistantMessage([]model.Message{{Role: model.RoleUser, Content: "q"}}) != nil {
		t.Error("expected nil without an assistant message")
	}
}
