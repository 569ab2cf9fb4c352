package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses: missing rows to 404,
// double bookings and lifecycle violations to 409, bad input to 400.
// Anything else is a 500 with the details kept in the log, not the body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case model.IsNotFound(err):
		http.Error(w, "not found", http.StatusNotFound)
	case model.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case model.IsInvalidState(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case model.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// queryID parses a required int64 query parameter; 0 with false means the
// caller should reply 400.
func queryID(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
