package service

import (
	"errors"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

var (
	// ErrOracleUnavailable wraps failures of the tokenizer, embedder or a
	// similarity-search collaborator.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrBudgetInfeasible means the prompt exceeds the budget even with no
	// passages at all.
	ErrBudgetInfeasible = errors.New("token budget infeasible")

	// ErrTemplateMissing is re-exported so callers need only this package.
	ErrTemplateMissing = templates.ErrTemplateMissing

	// ErrUnknownStrategy is returned for an unrecognised rerank strategy name.
	ErrUnknownStrategy = errors.New("unknown rerank strategy")
)
