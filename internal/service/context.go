package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
)

// MinFragmentChars is the shortest prefix of a boundary passage worth
// including. Shorter fragments are dropped.
const MinFragmentChars = 1000

// CostFunc returns the token cost of a prompt built from passages. It must be
// non-decreasing as passages are added or the last passage grows.
type CostFunc func(ctx context.Context, passages []model.Passage) (int, error)

// Selection is the outcome of FitPassages. Passages holds the fully included
// prefix plus, when PartiallyIncluded is set, one truncated passage.
type Selection struct {
	Passages           []model.Passage
	FullyIncludedCount int
	PartiallyIncluded  bool
	FragmentChars      int
	Tokens             int
}

// FitPassages selects the longest prefix of passages whose cost fits in
// maxTokens, then the longest prefix (at least MinFragmentChars runes) of the
// next passage that still fits. Every attempt gets its own copy, so passages is
// never modified.
//
// It returns ErrBudgetInfeasible when even the empty selection is over budget.
// An empty input yields an empty selection.
func FitPassages(ctx context.Context, passages []model.Passage, maxTokens int, cost CostFunc) (*Selection, error) {
	measure := func(candidate []model.Passage) (int, bool, error) {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		tokens, err := cost(ctx, candidate)
		if err != nil {
			return 0, false, fmt.Errorf("cost function: %w", err)
		}
		return tokens, tokens <= maxTokens, nil
	}

	tokens, ok, err := measure([]model.Passage{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d tokens without passages, budget %d", ErrBudgetInfeasible, tokens, maxTokens)
	}

	best := &Selection{Passages: []model.Passage{}, Tokens: tokens}
	n := len(passages)
	if n == 0 {
		return best, nil
	}

	// Phase 1: largest k whose full prefix fits.
	validLen := 0
	low, high := 1, n
	for low <= high {
		mid := (low + high) / 2
		candidate := prefixCopy(passages, mid)
		tokens, ok, err := measure(candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			slog.Debug("fit attempt valid", "passages", mid, "tokens", tokens, "max_tokens", maxTokens)
			validLen = mid
			best = &Selection{Passages: candidate, FullyIncludedCount: mid, Tokens: tokens}
			low = mid + 1
		} else {
			slog.Debug("fit attempt over budget", "passages", mid, "tokens", tokens, "max_tokens", maxTokens)
			high = mid - 1
		}
	}
	if validLen == n {
		return best, nil
	}

	// Phase 2: largest fragment of the boundary passage that fits.
	boundary := []rune(passages[validLen].Content)
	low, high = MinFragmentChars, len(boundary)
	for low <= high {
		mid := (low + high) / 2
		candidate := prefixCopy(passages, validLen+1)
		candidate[validLen].Content = string(boundary[:mid])
		tokens, ok, err := measure(candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			slog.Debug("fragment attempt valid", "passages", validLen, "fragment_chars", mid, "tokens", tokens)
			best = &Selection{
				Passages:           candidate,
				FullyIncludedCount: validLen,
				PartiallyIncluded:  true,
				FragmentChars:      mid,
				Tokens:             tokens,
			}
			low = mid + 1
		} else {
			slog.Debug("fragment attempt over budget", "passages", validLen, "fragment_chars", mid, "tokens", tokens)
			high = mid - 1
		}
	}
	return best, nil
}

// prefixCopy returns a new slice holding the first k passages.
func prefixCopy(passages []model.Passage, k int) []model.Passage {
	out := make([]model.Passage, k)
	copy(out, passages[:k])
	return out
}

// ContextBuilder fits ranked passages into a prompt using the prompt
// assembler for rendering and the tokenizer as the cost oracle.
type ContextBuilder struct {
	assembler *PromptAssembler
	tokenizer Tokenizer
}

// NewContextBuilder creates a new ContextBuilder.
func NewContextBuilder(assembler *PromptAssembler, tokenizer Tokenizer) *ContextBuilder {
	return &ContextBuilder{
		assembler: assembler,
		tokenizer: tokenizer,
	}
}

// Fit builds the largest prompt bundle from results that fits in maxTokens.
// A non-positive maxTokens falls back to the tokenizer's context length.
// previousTurn, when set, is sent as the prior assistant message.
func (b *ContextBuilder) Fit(ctx context.Context, question string, previousTurn *string, results []model.Passage, maxTokens int) (*model.FitResult, error) {
	if maxTokens <= 0 {
		maxTokens = b.tokenizer.MaxContextLength()
	}

	cost := func(ctx context.Context, candidate []model.Passage) (int, error) {
		system, err := b.assembler.Render(candidate, false)
		if err != nil {
			return 0, err
		}
		bundle := model.PromptBundle{System: system, PriorAssistant: previousTurn, User: question}
		n, err := b.tokenizer.Count(ctx, BuildChatInput(bundle.Messages()))
		if err != nil {
			return 0, fmt.Errorf("%w: tokenizer: %w", ErrOracleUnavailable, err)
		}
		return n, nil
	}

	sel, err := FitPassages(ctx, results, maxTokens, cost)
	if err != nil {
		return nil, err
	}

	system, err := b.assembler.Render(sel.Passages, true)
	if err != nil {
		return nil, err
	}

	slog.Debug("context fitted",
		"total_results", len(results),
		"fully_included", sel.FullyIncludedCount,
		"partially_included", sel.PartiallyIncluded,
		"fragment_chars", sel.FragmentChars,
		"tokens", sel.Tokens,
		"max_tokens", maxTokens,
	)

	return &model.FitResult{
		Bundle:             model.PromptBundle{System: system, PriorAssistant: previousTurn, User: question},
		FullyIncludedCount: sel.FullyIncludedCount,
		PartiallyIncluded:  sel.PartiallyIncluded,
		FragmentChars:      sel.FragmentChars,
		Tokens:             sel.Tokens,
	}, nil
}
