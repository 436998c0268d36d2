package service

import (
	"fmt"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

// SummaryBuilder explains to the user how much of the search results the
// answer was built from.
type SummaryBuilder struct {
	templates templates.Provider
}

// NewSummaryBuilder creates a new SummaryBuilder.
func NewSummaryBuilder(p templates.Provider) *SummaryBuilder {
	return &SummaryBuilder{templates: p}
}

// Summarize renders the bot summary for question. fullyIncluded is the
// number of whole results used, total the number retrieved, and partial
// whether a fragment of the next result was used as well.
func (b *SummaryBuilder) Summarize(question string, fullyIncluded, total int, partial bool) (string, error) {
	var summary string
	switch {
	case partial && fullyIncluded == 0:
		summary = "synthesized from the opening passages of result #1"
	case partial:
		summary = fmt.Sprintf("synthesized from the first %d results and the opening passages of result #%d", fullyIncluded, fullyIncluded+1)
	default:
		summary = fmt.Sprintf("synthesized from %d returned results", fullyIncluded)
	}

	if total > fullyIncluded || partial {
		summary += " (truncated due to length)"
	}

	return templates.Execute(b.templates, templates.BotSummary, map[string]any{
		"question": question,
		"summary":  summary,
	})
}
