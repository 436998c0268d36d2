package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/model"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/vectorstore"
)

// Secondary uploads are split into chunks of this many characters.
const (
	uploadChunkSize    = 1000
	uploadChunkOverlap = 100
)

// SourceHandler handles source listing and upload endpoints.
type SourceHandler struct {
	primary   vectorstore.Store
	secondary vectorstore.Store
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(primary, secondary vectorstore.Store) *SourceHandler {
	return &SourceHandler{primary: primary, secondary: secondary}
}

func (h *SourceHandler) collection(r *http.Request) (vectorstore.Store, error) {
	v := r.URL.Query().Get("secondary")
	if v == "" {
		return h.primary, nil
	}
	secondary, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	if secondary {
		return h.secondary, nil
	}
	return h.primary, nil
}

// List handles GET /v1/sources?secondary=...
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	store, err := h.collection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "secondary must be a boolean")
		return
	}

	sources, err := store.ListSources(r.Context())
	if err != nil {
		slog.Error("failed to list sources", "collection", store.Name(), "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "failed to list sources")
		return
	}
	if sources == nil {
		sources = []string{}
	}

	writeJSON(w, http.StatusOK, model.SourcesResponse{
		Collection: store.Name(),
		Sources:    sources,
	})
}

// Exists handles GET /v1/sources/exists?name=...
// Only the primary collection is checked.
func (h *SourceHandler) Exists(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name query parameter is required")
		return
	}

	found, err := h.primary.SourcesExist(r.Context(), []string{name})
	if err != nil {
		slog.Error("failed to check source", "name", name, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "failed to check source")
		return
	}

	writeJSON(w, http.StatusOK, model.SourceExistsResponse{
		Name:   name,
		Exists: len(found) == 1 && found[0],
	})
}

// Upload handles PUT /v1/sources/upload?secondary=...
// The body is a JSON array of documents. Primary uploads are stored whole;
// secondary uploads are split into numbered chunks.
func (h *SourceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	store, err := h.collection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "secondary must be a boolean")
		return
	}

	var docs []model.SourceUpload
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "at least one document is required")
		return
	}
	for i, d := range docs {
		if strings.TrimSpace(d.SourceName) == "" || strings.TrimSpace(d.Content) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "document "+strconv.Itoa(i)+" needs source_name and content")
			return
		}
	}

	chunks, err := buildChunks(docs, store == h.secondary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to split documents")
		return
	}

	if err := store.AddChunks(r.Context(), chunks); err != nil {
		slog.Error("failed to add chunks", "collection", store.Name(), "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "failed to store documents")
		return
	}

	slog.Info("sources uploaded", "collection", store.Name(), "documents", len(docs), "chunks", len(chunks))
	writeJSON(w, http.StatusOK, model.UploadResponse{
		Collection: store.Name(),
		Documents:  len(docs),
		Chunks:     len(chunks),
	})
}

// buildChunks turns uploads into stored chunks. When split is set each
// document is cut into overlapping chunks numbered from zero.
func buildChunks(docs []model.SourceUpload, split bool) ([]model.StoredChunk, error) {
	if !split {
		chunks := make([]model.StoredChunk, len(docs))
		for i, d := range docs {
			chunks[i] = model.StoredChunk{Source: d.SourceName, Content: d.Content}
		}
		return chunks, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(uploadChunkSize),
		textsplitter.WithChunkOverlap(uploadChunkOverlap),
	)
	var chunks []model.StoredChunk
	for _, d := range docs {
		parts, err := splitter.SplitText(d.Content)
		if err != nil {
			return nil, err
		}
		for n, part := range parts {
			chunks = append(chunks, model.StoredChunk{
				Source:   d.SourceName,
				Content:  part,
				ChunkNum: n,
			})
		}
	}
	return chunks, nil
}
