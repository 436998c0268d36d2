package service

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// sourceSeparator replaces line breaks inside multi-line source labels.
const sourceSeparator = " → "

// NormalizeSource flattens a multi-line source label and title-cases it.
// Applying it twice yields the same label.
func NormalizeSource(source string) string {
	flat := strings.ReplaceAll(source, "\n", sourceSeparator)
	// A Caser keeps state between calls and must not be shared.
	return cases.Title(language.Und).String(flat)
}

// NormalizeSources rewrites every Source label in place.
func NormalizeSources(passages []model.Passage) {
	for i := range passages {
		passages[i].Source = NormalizeSource(passages[i].Source)
	}
}
