package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

type CustomerHandler struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewCustomerHandler(store *storage.Store, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{store: store, logger: logger}
}

type createCustomerRequest struct {
	NRIC         string `json:"nric_fin_passport_no"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobile_number"`
	CountryCode  string `json:"country_code"`
}

type customerResponse struct {
	CID          int64  `json:"cid"`
	NRIC         string `json:"nric_fin_passport_no"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobile_number"`
	CountryCode  string `json:"country_code"`
}

func toCustomerResponse(c model.Customer) customerResponse {
	return customerResponse{
		CID:          c.CID,
		NRIC:         c.NRIC,
		Name:         c.Name,
		Gender:       c.Gender,
		MobileNumber: c.MobileNumber,
		CountryCode:  c.CountryCode,
	}
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.NRIC = strings.TrimSpace(req.NRIC)
	req.Name = strings.TrimSpace(req.Name)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.NRIC == "" || req.Name == "" || req.MobileNumber == "" {
		http.Error(w, "nric_fin_passport_no, name and mobile_number are required", http.StatusBadRequest)
		return
	}

	customer := model.Customer{
		NRIC:         req.NRIC,
		Name:         req.Name,
		Gender:       strings.TrimSpace(req.Gender),
		MobileNumber: req.MobileNumber,
		CountryCode:  strings.TrimSpace(req.CountryCode),
	}
	cid, err := h.store.CreateCustomer(r.Context(), &customer)
	if err != nil {
		if storage.IsConstraintViolation(err) {
			http.Error(w, "customer with this nric already exists", http.StatusConflict)
			return
		}
		writeError(w, h.logger, err)
		return
	}
	customer.CID = cid
	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (h *CustomerHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cid, ok := queryID(r, "cid")
	if !ok {
		http.Error(w, "cid is required", http.StatusBadRequest)
		return
	}
	customer, err := h.store.GetCustomer(r.Context(), cid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// Search looks customers up by name or mobile as the cashier types; "by"
// defaults to name.
func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	by := r.URL.Query().Get("by")
	if by != "" && by != "name" && by != "mobile" {
		http.Error(w, "by must be name or mobile", http.StatusBadRequest)
		return
	}

	customers, err := h.store.SearchCustomers(r.Context(), query, by)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CustomerHandler) NationCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	codes, err := h.store.ListNationCodes(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	type codeItem struct {
		CountryCode string `json:"country_code"`
		CountryName string `json:"country_name"`
	}
	out := make([]codeItem, 0, len(codes))
	for _, c := range codes {
		out = append(out, codeItem{CountryCode: c.CountryCode, CountryName: c.CountryName})
	}
	writeJSON(w, http.StatusOK, out)
}
