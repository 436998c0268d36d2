package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

// quoteTailChars is how much of each passage the search table shows.
const quoteTailChars = 200

// PromptAssembler renders passages and search results through the configured
// templates.
type PromptAssembler struct {
	templates templates.Provider
}

// NewPromptAssembler creates a new PromptAssembler.
func NewPromptAssembler(p templates.Provider) *PromptAssembler {
	return &PromptAssembler{templates: p}
}

// Render builds the system prompt from passages. Passages are grouped by
// source in first-seen order and each group is ordered by chunk number, so
// the rendered order is not the rank order. With debug set, every source
// block is written to the debug log.
func (a *PromptAssembler) Render(passages []model.Passage, debug bool) (string, error) {
	var order []string
	groups := make(map[string][]model.Passage)
	for _, p := range passages {
		if _, ok := groups[p.Source]; !ok {
			order = append(order, p.Source)
		}
		groups[p.Source] = append(groups[p.Source], p)
	}

	parts := make([]string, 0, len(order))
	for _, source := range order {
		group := groups[source]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].ChunkNum < group[j].ChunkNum
		})

		quotes := make([]string, len(group))
		for i, p := range group {
			q, err := templates.Execute(a.templates, templates.Quote, map[string]any{"quote": p.Content})
			if err != nil {
				return "", err
			}
			quotes[i] = q
		}

		block, err := templates.Execute(a.templates, templates.Source, map[string]any{
			"name":   source,
			"quotes": strings.Join(quotes, "\n"),
		})
		if err != nil {
			return "", err
		}
		if debug {
			slog.Debug("context source block", "source", source, "quotes", len(group), "block", block)
		}
		parts = append(parts, block)
	}

	return templates.Execute(a.templates, templates.SystemPrompt, map[string]any{
		"context": strings.Join(parts, "\n"),
	})
}

// BuildKeywordResponse renders the block that echoes the search queries back
// to the user, one quoted line per query.
func (a *PromptAssembler) BuildKeywordResponse(queries []string) (string, error) {
	lines := make([]string, len(queries))
	for i, q := range queries {
		lines[i] = "> " + strings.ReplaceAll(q, "\n", " ")
	}
	return templates.Execute(a.templates, templates.SearchKeyword, map[string]any{
		"keyword_text": strings.Join(lines, "\n"),
	})
}

// BuildSearchResponse renders passages as a markdown table. With withQuote set
// each row also carries the tail of the passage with line breaks flattened.
func (a *PromptAssembler) BuildSearchResponse(passages []model.Passage, withQuote bool) (string, error) {
	rows := make([]string, len(passages))
	for i, p := range passages {
		if withQuote {
			rows[i] = fmt.Sprintf("| %d | %s | ...%s |", i+1, p.Source, strings.ReplaceAll(tail(p.Content, quoteTailChars), "\n", " "))
		} else {
			rows[i] = fmt.Sprintf("| %d | %s |", i+1, p.Source)
		}
	}

	name := templates.Response
	if withQuote {
		name = templates.ResponseWithQuote
	}
	return templates.Execute(a.templates, name, map[string]any{
		"search_result": strings.Join(rows, "\n"),
	})
}

// BuildChatInput flattens messages into the text the tokenizer counts:
// one "[ROLE]: content" line per message.
func BuildChatInput(messages []model.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString("[")
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString("]: ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
