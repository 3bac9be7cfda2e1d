package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCorrelationID_GeneratesID(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CorrelationIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected generated uuid in context, got %q", seen)
	}
	if got := w.Header().Get(HeaderCorrelationID); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}
}

func TestCorrelationID_HeaderHandling(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{"plain id", "abc-123", true},
		{"uuid", "0b9f3c52-8f36-4a3e-9a4c-1f1b0c6f0e11", true},
		{"dotted and colon", "batch:7.chunk_2", true},
		{"newline injection", "abc\ninjected=1", false},
		{"spaces", "abc 123", false},
		{"too long", strings.Repeat("a", maxCorrelationIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetCorrelationID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/ask", nil)
			req.Header.Set(HeaderCorrelationID, tt.incoming)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if tt.reused && seen != tt.incoming {
				t.Errorf("expected incoming id %q to be kept, got %q", tt.incoming, seen)
			}
			if !tt.reused && seen == tt.incoming {
				t.Errorf("expected unsafe id %q to be replaced", tt.incoming)
			}
			if w.Header().Get(HeaderCorrelationID) != seen {
				t.Errorf("response header not echoed")
			}
		})
	}
}

func TestCorrelationID_EchoedOnErrorResponses(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set(HeaderCorrelationID, "req-9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError || w.Header().Get(HeaderCorrelationID) != "req-9" {
		t.Errorf("got status %d header %q", w.Code, w.Header().Get(HeaderCorrelationID))
	}
}

func TestRoute(t *testing.T) {
	var route string
	mux := http.NewServeMux()
	mux.Handle("GET /documents/{id}", CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route = Route(r)
	})))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/documents/42", nil))
	if route != "GET /documents/{id}" {
		t.Errorf("expected pattern, got %q", route)
	}

	bare := httptest.NewRequest(http.MethodGet, "/health", nil)
	if Route(bare) != "/health" {
		t.Errorf("expected path fallback, got %q", Route(bare))
	}
}

func TestGetCorrelationID_Missing(t *testing.T) {
	if _, ok := CorrelationIDFrom(context.Background()); ok {
		t.Error("expected no id")
	}
	if GetCorrelationID(context.Background()) != "unknown" {
		t.Error("expected placeholder")
	}
}
