package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type SystemHandler struct {
	DB Pinger
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			writeJSON(w, map[string]string{"status": "unavailable", "service": "talentflow", "error": err.Error()}, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok", "service": "talentflow"}, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
