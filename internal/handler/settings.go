package handler

import (
	"math/rand/v2"
	"net/http"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/templates"
)

// SettingsHandler serves client-facing settings.
type SettingsHandler struct {
	templates templates.Provider
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(p templates.Provider) *SettingsHandler {
	return &SettingsHandler{templates: p}
}

// Get handles GET /v1/settings. The introduction message is picked at random
// from the configured set.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var intro string
	if intros := h.templates.IntroductionMessages(); len(intros) > 0 {
		intro = intros[rand.IntN(len(intros))]
	}
	writeJSON(w, http.StatusOK, model.SettingsResponse{IntroductionMessage: intro})
}
