// Package handler implements HTTP handlers for the chat API.
package handler

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/service"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a standard error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeServiceError maps a pipeline error onto an HTTP status and error code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	writeError(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrBudgetInfeasible):
		return http.StatusRequestEntityTooLarge, "budget_infeasible"
	case errors.Is(err, service.ErrUnknownStrategy):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrOracleUnavailable), errors.Is(err, service.ErrLLMFailed):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, service.ErrTemplateMissing):
		return http.StatusInternalServerError, "template_missing"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// hashQuestion returns SHA-256 hex of the normalized (lowercased, trimmed) question.
func hashQuestion(question string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question))))
	return fmt.Sprintf("%x", h)
}
