package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ragline/internal/ingestion"
	"ragline/internal/middleware"
	"ragline/internal/rag"
	"ragline/internal/worker"
)

const maxBodyBytes = 10 << 20

type Ingestor interface {
	Ingest(ctx context.Context, text, source string) (ingestion.Result, error)
}

type Reader interface {
	Get(ctx context.Context, id string) (*rag.Document, error)
	List(ctx context.Context, limit int) ([]rag.Document, error)
}

type Handler struct {
	ingestor     Ingestor
	docs         Reader
	pub          worker.Publisher
	storeTimeout time.Duration
}

func NewHandler(i Ingestor, docs Reader, pub worker.Publisher, storeTimeout time.Duration) *Handler {
	return &Handler{ingestor: i, docs: docs, pub: pub, storeTimeout: storeTimeout}
}

type IngestRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(ctx, w, string(rag.KindValidation), "invalid request body", http.StatusBadRequest, nil)
		return
	}
	if req.Text == "" {
		h.writeError(ctx, w, string(rag.KindValidation), "Text is required", http.StatusBadRequest, nil)
		return
	}

	res, err := h.ingestor.Ingest(ctx, req.Text, req.Source)
	if err != nil {
		kind := rag.KindOf(err)
		slog.ErrorContext(ctx, "ingest failed", "error", err, "kind", kind, "document_id", res.DocumentID, "indexed", res.NumberOfEmbeddings)

		var data interface{}
		if res.DocumentID != "" {
			data = res
		}
		h.writeError(ctx, w, string(kind), rag.ErrorMessage(err), rag.HTTPStatus(kind), data)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Document ingested successfully",
		"data":    res,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			h.writeError(ctx, w, string(rag.KindValidation), "limit must be between 1 and 100", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	sctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	docs, err := h.docs.List(sctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list documents", "error", err)
		h.writeError(ctx, w, string(rag.KindStore), rag.PublicMessage(rag.KindStore), http.StatusInternalServerError, nil)
		return
	}
	if docs == nil {
		docs = []rag.Document{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	doc, ok := h.load(ctx, w, id)
	if !ok {
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": doc})
}

// Reindex queues the document for the reindex worker.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if _, ok := h.load(ctx, w, id); !ok {
		return
	}

	if err := worker.PublishReindex(ctx, h.pub, worker.PublishTimeout, id); err != nil {
		slog.ErrorContext(ctx, "failed to publish reindex task", "document_id", id, "error", err)
		h.writeError(ctx, w, string(rag.KindInternal), "failed to queue reindex", http.StatusInternalServerError, nil)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Reindex queued",
		"data":    map[string]string{"id": id},
	})
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, id string) (*rag.Document, bool) {
	sctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	doc, err := h.docs.Get(sctx, id)
	if errors.Is(err, rag.ErrNotFound) {
		h.writeError(ctx, w, string(rag.KindNotFound), "Document not found", http.StatusNotFound, nil)
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load document", "document_id", id, "error", err)
		h.writeError(ctx, w, string(rag.KindStore), rag.PublicMessage(rag.KindStore), http.StatusInternalServerError, nil)
		return nil, false
	}
	return doc, true
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if data != nil {
		resp["data"] = data
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
