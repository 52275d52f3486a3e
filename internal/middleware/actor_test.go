package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/settingsd/internal/logger"
	"github.com/Strob0t/settingsd/internal/middleware"
)

func TestActorFromHeader(t *testing.T) {
	var got string
	handler := middleware.Actor(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = logger.ActorID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Actor-ID", " rep-42 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "rep-42" {
		t.Fatalf("expected rep-42, got %q", got)
	}
}

func TestActorMissingHeader(t *testing.T) {
	var got = "unset"
	handler := middleware.Actor(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = logger.ActorID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got != "" {
		t.Fatalf("expected empty actor, got %q", got)
	}
}

func TestRequireActor(t *testing.T) {
	handler := middleware.Actor(middleware.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"with actor", "rep-1", http.StatusNoContent},
		{"without actor", "", http.StatusUnauthorized},
		{"blank actor", "   ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set("X-Actor-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
