package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/settingsd/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. Mutations
// require an actor and pass through limiter when it is non-nil.
func MountRoutes(r chi.Router, h *Handlers, limiter *middleware.RateLimiter) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
		})

		// Reads
		r.Get("/businesses/{businessID}/settings", h.GetBusinessSettings)
		r.Get("/reps/{repID}/settings", h.GetRepSettings)
		r.Get("/reps/{repID}/effective-settings", h.GetEffectiveSettings)

		// Mutations
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor)
			if limiter != nil {
				r.Use(limiter.Handler)
			}

			r.Patch("/businesses/{businessID}/settings", h.UpdateBusinessSettings)
			r.Post("/businesses/{businessID}/settings/dnd/extend", h.ExtendDndMode)
			r.Patch("/reps/{repID}/settings", h.UpdateRepSettings)

			r.With(h.requireSupport).Post("/admin/dnd/expire", h.ExpireDndModes)
		})
	})
}
