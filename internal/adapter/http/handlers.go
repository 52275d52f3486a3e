package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/settingsd/internal/domain/settings"
	"github.com/Strob0t/settingsd/internal/logger"
	"github.com/Strob0t/settingsd/internal/port/directory"
	"github.com/Strob0t/settingsd/internal/service"
)

// SettingsService is the subset of service.SettingsService the handlers use.
type SettingsService interface {
	GetBusinessSettings(ctx context.Context, businessID string) (*settings.BusinessSettingsView, error)
	UpdateBusinessSettings(ctx context.Context, businessID string, req *settings.UpdateBusinessRequest, actorID string) (*settings.BusinessSettingsView, error)
	ExtendDndMode(ctx context.Context, businessID string, additionalHours int, actorID string) (*settings.BusinessSettingsView, error)
	ProcessExpiredDndModes(ctx context.Context) (service.ExpiryReport, error)
	GetRepSettings(ctx context.Context, repID string) (*settings.RepSettings, error)
	UpdateRepSettings(ctx context.Context, repID string, req *settings.UpdateRepRequest, actorID string) (*settings.RepSettings, error)
	GetEffectiveSettings(ctx context.Context, repID string) (*settings.EffectiveSettings, error)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Settings           SettingsService
	Directory          directory.Directory // admin endpoints require a support actor
	HealthChecks       map[string]HealthCheck
	MaxRequestBodySize int64
}

// extendDndRequest is the body of POST .../settings/dnd/extend.
type extendDndRequest struct {
	AdditionalHours int `json:"additional_hours"`
}

// --- Business settings ---

// GetBusinessSettings handles GET /api/v1/businesses/{businessID}/settings
func (h *Handlers) GetBusinessSettings(w http.ResponseWriter, r *http.Request) {
	v, err := h.Settings.GetBusinessSettings(r.Context(), urlParam(r, "businessID"))
	if err != nil {
		writeDomainError(w, err, "business settings not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdateBusinessSettings handles PATCH /api/v1/businesses/{businessID}/settings
func (h *Handlers) UpdateBusinessSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[settings.UpdateBusinessRequest](w, r, h.MaxRequestBodySize)
	if !ok {
		return
	}

	v, err := h.Settings.UpdateBusinessSettings(r.Context(), urlParam(r, "businessID"), &req, logger.ActorID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "business settings not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ExtendDndMode handles POST /api/v1/businesses/{businessID}/settings/dnd/extend
func (h *Handlers) ExtendDndMode(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[extendDndRequest](w, r, h.MaxRequestBodySize)
	if !ok {
		return
	}

	v, err := h.Settings.ExtendDndMode(r.Context(), urlParam(r, "businessID"), req.AdditionalHours, logger.ActorID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "business settings not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// --- Representative settings ---

// GetRepSettings handles GET /api/v1/reps/{repID}/settings
func (h *Handlers) GetRepSettings(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Settings.GetRepSettings(r.Context(), urlParam(r, "repID"))
	if err != nil {
		writeDomainError(w, err, "rep settings not found")
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// UpdateRepSettings handles PATCH /api/v1/reps/{repID}/settings
func (h *Handlers) UpdateRepSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[settings.UpdateRepRequest](w, r, h.MaxRequestBodySize)
	if !ok {
		return
	}

	rs, err := h.Settings.UpdateRepSettings(r.Context(), urlParam(r, "repID"), &req, logger.ActorID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "rep settings not found")
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// GetEffectiveSettings handles GET /api/v1/reps/{repID}/effective-settings
func (h *Handlers) GetEffectiveSettings(w http.ResponseWriter, r *http.Request) {
	es, err := h.Settings.GetEffectiveSettings(r.Context(), urlParam(r, "repID"))
	if err != nil {
		writeDomainError(w, err, "rep settings not found")
		return
	}
	writeJSON(w, http.StatusOK, es)
}

// --- Admin ---

// ExpireDndModes handles POST /api/v1/admin/dnd/expire
func (h *Handlers) ExpireDndModes(w http.ResponseWriter, r *http.Request) {
	report, err := h.Settings.ProcessExpiredDndModes(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// requireSupport rejects callers who do not hold the support role.
func (h *Handlers) requireSupport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := logger.ActorID(r.Context())
		ok, err := h.Directory.IsSupportActor(r.Context(), actor)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "directory unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Health ---

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. It reports 503 when any dependency check fails.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.HealthChecks))}
	status := http.StatusOK
	for name, check := range h.HealthChecks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
