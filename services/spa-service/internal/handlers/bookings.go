package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/availability"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/booking"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

type BookingHandler struct {
	bookings *booking.Manager
	engine   *availability.Engine
	store    *storage.Store
	logger   *slog.Logger
}

func NewBookingHandler(bookings *booking.Manager, engine *availability.Engine, store *storage.Store, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, engine: engine, store: store, logger: logger}
}

type createBookingRequest struct {
	TID              int64   `json:"tid"`
	SID              int64   `json:"sid"`
	TherapistEID     int64   `json:"therapist_eid"`
	RID              int64   `json:"rid"`
	ScheduledStart   string  `json:"scheduled_start"`
	ItemDiscount     float64 `json:"item_discount"`
	ItemDiscountType string  `json:"item_discount_type"`
}

type createBookingResponse struct {
	TTID int64 `json:"ttid"`
}

type editBookingRequest struct {
	TTID             int64   `json:"ttid"`
	SID              int64   `json:"sid"`
	TherapistEID     int64   `json:"therapist_eid"`
	RID              int64   `json:"rid"`
	ScheduledStart   string  `json:"scheduled_start"`
	ItemDiscount     float64 `json:"item_discount"`
	ItemDiscountType string  `json:"item_discount_type"`
}

type itemIDRequest struct {
	TTID int64 `json:"ttid"`
}

type itemTimestampResponse struct {
	TTID int64  `json:"ttid"`
	At   string `json:"at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TID <= 0 || req.SID <= 0 || req.TherapistEID <= 0 || req.RID <= 0 {
		http.Error(w, "tid, sid, therapist_eid and rid are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		http.Error(w, "invalid scheduled_start", http.StatusBadRequest)
		return
	}

	ttid, err := h.bookings.Create(r.Context(), booking.CreateParams{
		TID:              req.TID,
		SID:              req.SID,
		TherapistEID:     req.TherapistEID,
		RoomRID:          req.RID,
		ScheduledStart:   start,
		ItemDiscount:     req.ItemDiscount,
		ItemDiscountType: req.ItemDiscountType,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBookingResponse{TTID: ttid})
}

func (h *BookingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req editBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TTID <= 0 || req.SID <= 0 || req.TherapistEID <= 0 || req.RID <= 0 {
		http.Error(w, "ttid, sid, therapist_eid and rid are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.ScheduledStart)
	if err != nil {
		http.Error(w, "invalid scheduled_start", http.StatusBadRequest)
		return
	}

	err = h.bookings.Edit(r.Context(), req.TTID, booking.EditParams{
		SID:              req.SID,
		TherapistEID:     req.TherapistEID,
		RoomRID:          req.RID,
		ScheduledStart:   start,
		ItemDiscount:     req.ItemDiscount,
		ItemDiscountType: req.ItemDiscountType,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req itemIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TTID <= 0 {
		http.Error(w, "ttid is required", http.StatusBadRequest)
		return
	}
	if err := h.bookings.Delete(r.Context(), req.TTID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req itemIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TTID <= 0 {
		http.Error(w, "ttid is required", http.StatusBadRequest)
		return
	}
	startedAt, err := h.bookings.Start(r.Context(), req.TTID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemTimestampResponse{TTID: req.TTID, At: startedAt.UTC().Format(time.RFC3339)})
}

func (h *BookingHandler) End(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req itemIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TTID <= 0 {
		http.Error(w, "ttid is required", http.StatusBadRequest)
		return
	}
	endedAt, err := h.bookings.End(r.Context(), req.TTID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemTimestampResponse{TTID: req.TTID, At: endedAt.UTC().Format(time.RFC3339)})
}

// Options lists the therapists and rooms free for a prospective booking: the
// caller names the service and start time, the window is start plus the
// service's duration.
func (h *BookingHandler) Options(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sid, ok := queryID(r, "sid")
	if !ok {
		http.Error(w, "sid is required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}

	svc, err := h.store.GetService(r.Context(), sid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	therapists, err := h.engine.FreeTherapists(r.Context(), svc.RoleType, start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rooms, err := h.engine.FreeRooms(r.Context(), start, end, 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled_end": end.UTC().Format(time.RFC3339),
		"therapists":    therapists,
		"rooms":         rooms,
	})
}

// EditOptions is Options for an existing scheduled item: same window, but the
// item's own reservation does not block its current therapist or room.
func (h *BookingHandler) EditOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ttid, ok := queryID(r, "ttid")
	if !ok {
		http.Error(w, "ttid is required", http.StatusBadRequest)
		return
	}
	opts, err := h.bookings.EditOptions(r.Context(), ttid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}
