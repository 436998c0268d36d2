package service

import (
	"errors"
	"testing"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

func TestSummarize(t *testing.T) {
	b := NewSummaryBuilder(newTestTemplates(t))

	tests := []struct {
		name          string
		fullyIncluded int
		total         int
		partial       bool
		want          string
	}{
		{
			name:    "fragment of first result only",
			total:   5,
			partial: true,
			want:    "q|synthesized from the opening passages of result #1 (truncated due to length)",
		},
		{
			name:          "some results plus fragment",
			fullyIncluded: 3,
			total:         5,
			partial:       true,
			want:          "q|synthesized from the first 3 results and the opening passages of result #4 (truncated due to length)",
		},
		{
			name:          "all results",
			fullyIncluded: 4,
			total:         4,
			want:          "q|synthesized from 4 returned results",
		},
		{
			name:          "some results dropped",
			fullyIncluded: 2,
			total:         4,
			want:          "q|synthesized from 2 returned results (truncated due to length)",
		},
		{
			name: "no results at all",
			want: "q|synthesized from 0 returned results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Summarize("q", tt.fullyIncluded, tt.total, tt.partial)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSummarize_TemplateMissing(t *testing.T) {
	store, err := templates.Parse([]byte(`system_prompt: "x"`))
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	b := NewSummaryBuilder(store)

	_, err = b.Summarize("q", 1, 1, false)
	if !errors.Is(err, ErrTemplateMissing) {
		t.Errorf("expected ErrTemplateMissing, got %v", err)
	}
}
