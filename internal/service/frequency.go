package service

import (
	"sort"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// CountSourceFrequency tallies how many passages carry each source label.
func CountSourceFrequency(passages []model.Passage) map[string]int {
	counts := make(map[string]int)
	for _, p := range passages {
		counts[p.Source]++
	}
	return counts
}

// SortByFrequency returns a copy of passages ordered by descending frequency
// of their source. Ties keep their original relative order, and sources
// missing from freq count as zero.
func SortByFrequency(passages []model.Passage, freq map[string]int) []model.Passage {
	sorted := make([]model.Passage, len(passages))
	copy(sorted, passages)

	sort.SliceStable(sorted, func(i, j int) bool {
		return freq[sorted[i].Source] > freq[sorted[j].Source]
	})
	return sorted
}

// distinctSources returns the source labels of passages in first-seen order.
func distinctSources(passages []model.Passage) []string {
	seen := make(map[string]bool, len(passages))
	var sources []string
	for _, p := range passages {
		if !seen[p.Source] {
			seen[p.Source] = true
			sources = append(sources, p.Source)
		}
	}
	return sources
}
