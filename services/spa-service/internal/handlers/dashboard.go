package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/cache"
)

// DashboardHandler serves the cashier's shop-floor views. Every endpoint
// reads through the shared cache and reports the outcome in an X-Cache
// header so staleness questions can be answered from the browser.
type DashboardHandler struct {
	dash   *cache.Dashboard
	logger *slog.Logger
}

func NewDashboardHandler(dash *cache.Dashboard, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dash: dash, logger: logger}
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "hit")
		return
	}
	w.Header().Set("X-Cache", "miss")
}

// Snapshot bundles all four views in one response for the initial page load.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	visits, _, err := h.dash.ActiveVisits(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	staff, _, err := h.dash.AvailableStaff(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rooms, _, err := h.dash.AvailableRooms(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	busy, _, err := h.dash.Busy(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_visits":   visits,
		"available_staff": staff,
		"available_rooms": rooms,
		"busy":            busy,
	})
}

func (h *DashboardHandler) ActiveVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	visits, hit, err := h.dash.ActiveVisits(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, visits)
}

func (h *DashboardHandler) AvailableStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staff, hit, err := h.dash.AvailableStaff(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, staff)
}

func (h *DashboardHandler) AvailableRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rooms, hit, err := h.dash.AvailableRooms(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, rooms)
}

func (h *DashboardHandler) Busy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	busy, hit, err := h.dash.Busy(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, busy)
}
