package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/web/templates"
)

// handleDashboardPage renders the landing page, or its data as JSON.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limiter := s.service.LimiterStatus()
	data := templates.DashboardData{
		ActiveWrites:  limiter.Active,
		MaxWrites:     limiter.MaxConcurrent,
		StoreHealthy:  true,
		UploadMaxSize: formatBytes(s.cfg.Upload.MaxFileSize),
	}
	if err := s.service.Health(ctx); err != nil {
		logging.FromContext(ctx).Warn("store health check failed", "error", err)
		data.StoreHealthy = false
		data.StoreError = "the record store did not respond"
	}
	for _, t := range s.service.ReferenceTables() {
		data.References = append(data.References, templates.ReferenceLink{Key: t.Key, Label: t.Table})
	}

	if wantsJSON(r) {
		writeJSON(w, data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(data).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render dashboard", "error", err)
	}
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Writes int    `json:"active_writes"`
}

// handleHealth reports liveness and store reachability. An unreachable store
// answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: "ok", Writes: s.service.LimiterStatus().Active}
	if err := s.service.Health(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		resp.Status, resp.Store = "degraded", "unreachable"
		writeJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, resp)
}
