package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

type CatalogHandler struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewCatalogHandler(store *storage.Store, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{store: store, logger: logger}
}

// Services lists what can currently be booked; retired services are excluded
// but their historical bookings keep referencing them.
func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	services, err := h.store.ListActiveServices(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *CatalogHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}
