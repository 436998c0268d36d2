package service

import (
	"testing"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

func TestNormalizeSource_MultiLine(t *testing.T) {
	got := NormalizeSource("dhammapada\nchapter one\nverse 5")
	want := "Dhammapada → Chapter One → Verse 5"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalizeSource_Lowercases(t *testing.T) {
	got := NormalizeSource("THE LONG DISCOURSES")
	if got != "The Long Discourses" {
		t.Errorf("expected %q, got %q", "The Long Discourses", got)
	}
}

func TestNormalizeSource_Unicode(t *testing.T) {
	got := NormalizeSource("kinh pháp cú\nphẩm song yếu")
	want := "Kinh Pháp Cú → Phẩm Song Yếu"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalizeSource_Idempotent(t *testing.T) {
	labels := []string{
		"dhammapada\nchapter one",
		"Already Normal",
		"mixed CASE\n\nempty line",
		"",
		"kinh pháp cú\nphẩm song yếu",
	}
	for _, l := range labels {
		once := NormalizeSource(l)
		twice := NormalizeSource(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", l, once, twice)
		}
	}
}

func TestNormalizeSources_InPlace(t *testing.T) {
	passages := []model.Passage{
		{Source: "a\nb", Content: "x"},
		{Source: "c", Content: "y"},
	}
	NormalizeSources(passages)

	if passages[0].Source != "A → B" {
		t.Errorf("expected 'A → B', got %q", passages[0].Source)
	}
	if passages[1].Source != "C" {
		t.Errorf("expected 'C', got %q", passages[1].Source)
	}
	if passages[0].Content != "x" {
		t.Error("content must not change")
	}
}
