package ask

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"ragline/internal/middleware"
	"ragline/internal/rag"
	"ragline/internal/retrieval"
	"ragline/internal/settings"
)

type Service interface {
	Ask(ctx context.Context, question string) (string, error)
	AskWithContext(ctx context.Context, question string, topK int) (*retrieval.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]rag.RetrievalResult, error)
	DefaultMode(ctx context.Context) string
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type AskRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
	TopK    int    `json:"topK,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, rag.Validation("ask", "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(ctx, w, rag.Validation("ask", "Message is required"))
		return
	}
	if req.TopK < 0 {
		h.writeError(ctx, w, rag.Validation("ask", "topK must be positive"))
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = h.svc.DefaultMode(ctx)
	}

	switch mode {
	case settings.ModePlain:
		reply, err := h.svc.Ask(ctx, req.Message)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		h.writeJSON(ctx, w, map[string]interface{}{"reply": reply})
	case settings.ModeRAG:
		ans, err := h.svc.AskWithContext(ctx, req.Message, req.TopK)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		h.writeJSON(ctx, w, map[string]interface{}{
			"success": true,
			"answer":  ans.Answer,
			"context": ans.Context,
		})
	default:
		h.writeError(ctx, w, rag.Validation("ask", "mode must be plain or rag"))
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, rag.Validation("search", "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(ctx, w, rag.Validation("search", "Query is required"))
		return
	}
	if req.TopK < 0 {
		h.writeError(ctx, w, rag.Validation("search", "topK must be positive"))
		return
	}

	results, err := h.svc.Search(ctx, req.Query, req.TopK)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, map[string]interface{}{"success": true, "results": results})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError maps err to its kind. Upstream detail is logged, never returned.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := rag.KindOf(err)
	status := rag.HTTPStatus(kind)
	msg := rag.ErrorMessage(err)
	if kind != rag.KindValidation {
		slog.ErrorContext(ctx, "request failed", "error", err, "kind", kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    string(kind),
			"message": msg,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
