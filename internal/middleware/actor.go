package middleware

import (
	"net/http"
	"strings"

	"github.com/Strob0t/settingsd/internal/logger"
)

// HeaderActorID carries the authenticated caller's id, set by the upstream gateway.
const HeaderActorID = "X-Actor-ID"

// Actor is middleware that stores the X-Actor-ID header in the request
// context. A missing header leaves the actor empty; authorization downstream
// treats an empty actor as nobody.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(logger.WithActorID(r.Context(), id)))
	})
}

// RequireActor rejects requests without an actor id with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.ActorID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"X-Actor-ID header is required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
