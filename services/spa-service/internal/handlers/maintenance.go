package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/cache"
)

// MaintenanceHandler exposes operational knobs for the dashboard cache:
// warming after a deploy or Redis flush, and inspecting key state when the
// floor view looks stale.
type MaintenanceHandler struct {
	dash   *cache.Dashboard
	logger *slog.Logger
}

func NewMaintenanceHandler(dash *cache.Dashboard, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{dash: dash, logger: logger}
}

func (h *MaintenanceHandler) WarmCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.dash.WarmAll(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("dashboard cache warmed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "warmed"})
}

func (h *MaintenanceHandler) CacheDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	statuses, err := h.dash.Debug(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}
