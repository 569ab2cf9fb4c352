package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/visit"
)

type VisitHandler struct {
	visits *visit.Manager
	logger *slog.Logger
}

func NewVisitHandler(visits *visit.Manager, logger *slog.Logger) *VisitHandler {
	return &VisitHandler{visits: visits, logger: logger}
}

type openVisitRequest struct {
	CID        int64 `json:"cid"`
	CashierEID int64 `json:"cashier_eid"`
}

type openVisitResponse struct {
	TID int64 `json:"tid"`
}

type recordPaymentsRequest struct {
	TID      int64                `json:"tid"`
	Payments []visit.PaymentInput `json:"payments"`
}

type visitStateResponse struct {
	TID         int64   `json:"tid"`
	Status      string  `json:"status"`
	TotalPaid   float64 `json:"total_paid"`
	Outstanding float64 `json:"outstanding"`
	ExitTime    string  `json:"exit_time,omitempty"`
}

func toVisitStateResponse(txn model.Transaction) visitStateResponse {
	resp := visitStateResponse{
		TID:         txn.TID,
		Status:      txn.Status,
		TotalPaid:   txn.TotalPaid,
		Outstanding: txn.Outstanding(),
	}
	if txn.ExitTime != nil {
		resp.ExitTime = txn.ExitTime.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *VisitHandler) Open(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req openVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.CID <= 0 || req.CashierEID <= 0 {
		http.Error(w, "cid and cashier_eid are required", http.StatusBadRequest)
		return
	}
	tid, err := h.visits.Open(r.Context(), req.CID, req.CashierEID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, openVisitResponse{TID: tid})
}

func (h *VisitHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, ok := queryID(r, "tid")
	if !ok {
		http.Error(w, "tid is required", http.StatusBadRequest)
		return
	}
	detail, err := h.visits.GetDetail(r.Context(), tid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *VisitHandler) RecordPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req recordPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.TID <= 0 {
		http.Error(w, "tid is required", http.StatusBadRequest)
		return
	}
	txn, err := h.visits.RecordPayments(r.Context(), req.TID, req.Payments)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitStateResponse(txn))
}

func (h *VisitHandler) RecordExit(w http.ResponseWriter, r *http.Request) {
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
	txn, err := h.visits.RecordExit(r.Context(), req.TID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitStateResponse(txn))
}
