package service

import (
	"strings"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// GuardResult holds the outcome of the question checks run before search.
type GuardResult struct {
	Reject  bool
	Reason  string
	Queries []string // user messages kept as search queries
}

// CheckQuestion keeps the last maxMessages user messages, rejects the request
// when the latest one has fewer than minWords words, and otherwise drops every
// kept message shorter than minWords.
func CheckQuestion(messages []model.Message, maxMessages, minWords int) *GuardResult {
	var user []string
	for _, m := range messages {
		if m.Role == model.RoleUser {
			user = append(user, strings.TrimSpace(m.Content))
		}
	}
	if len(user) == 0 {
		return &GuardResult{Reject: true, Reason: "no user message"}
	}
	if maxMessages > 0 && len(user) > maxMessages {
		user = user[len(user)-maxMessages:]
	}

	if wordCount(user[len(user)-1]) < minWords {
		return &GuardResult{Reject: true, Reason: "question too short"}
	}

	queries := make([]string, 0, len(user))
	for _, u := range user {
		if wordCount(u) >= minWords {
			queries = append(queries, u)
		}
	}
	return &GuardResult{Queries: queries}
}

// LastAssistantMessage returns the most recent assistant message, or nil.
func LastAssistantMessage(messages []model.Message) *string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleAssistant {
			content := messages[i].Content
			return &content
		}
	}
	return nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
