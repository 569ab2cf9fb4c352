package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/booking"
)

type DraftHandler struct {
	drafts *booking.DraftStore
	logger *slog.Logger
}

func NewDraftHandler(drafts *booking.DraftStore, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{drafts: drafts, logger: logger}
}

func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TID int64 `json:"tid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TID <= 0 {
		http.Error(w, "tid is required", http.StatusBadRequest)
		return
	}
	draft, err := h.drafts.Create(r.Context(), req.TID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	draftID := strings.TrimSpace(r.URL.Query().Get("draft_id"))
	if draftID == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}
	draft, err := h.drafts.Get(r.Context(), draftID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

type updateDraftRequest struct {
	DraftID          string  `json:"draft_id"`
	SID              int64   `json:"sid"`
	TherapistEID     int64   `json:"therapist_eid"`
	RID              int64   `json:"rid"`
	ScheduledStart   string  `json:"scheduled_start"`
	ItemDiscount     float64 `json:"item_discount"`
	ItemDiscountType string  `json:"item_discount_type"`
}

// Update saves whatever the wizard has filled in so far; empty fields stay
// empty until a later step fills them.
func (h *DraftHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req updateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.DraftID) == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}

	draft, err := h.drafts.Get(r.Context(), req.DraftID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	draft.SID = req.SID
	draft.TherapistEID = req.TherapistEID
	draft.RoomRID = req.RID
	draft.ItemDiscount = req.ItemDiscount
	draft.ItemDiscountType = req.ItemDiscountType
	if req.ScheduledStart != "" {
		start, err := time.Parse(time.RFC3339, req.ScheduledStart)
		if err != nil {
			http.Error(w, "invalid scheduled_start", http.StatusBadRequest)
			return
		}
		draft.ScheduledStart = &start
	} else {
		draft.ScheduledStart = nil
	}

	if err := h.drafts.Update(r.Context(), draft); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *DraftHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		DraftID string `json:"draft_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.DraftID) == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}
	if err := h.drafts.Delete(r.Context(), req.DraftID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}
