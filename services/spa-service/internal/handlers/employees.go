package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

// EmployeeHandler covers staff administration. Employment dates are plain
// calendar dates ("2026-08-28"); ending employment truncates every role
// that would otherwise outlive it, in the same store transaction.
type EmployeeHandler struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewEmployeeHandler(store *storage.Store, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{store: store, logger: logger}
}

const dateLayout = "2006-01-02"

type employeeRequest struct {
	EID             int64  `json:"eid,omitempty"`
	NRIC            string `json:"nric_fin_passport_no"`
	Name            string `json:"name"`
	WorkName        string `json:"work_name"`
	Gender          string `json:"gender"`
	MobileNumber    string `json:"mobile_number"`
	CountryCode     string `json:"country_code"`
	EmploymentStart string `json:"employment_start"`
	EmploymentEnd   string `json:"employment_end,omitempty"`
	// Create only: role assigned from day one ("therapist", "cashier", ...).
	InitialRole string `json:"initial_role,omitempty"`
}

func (req *employeeRequest) toModel() (model.Employee, error) {
	req.NRIC = strings.TrimSpace(req.NRIC)
	req.Name = strings.TrimSpace(req.Name)
	req.WorkName = strings.TrimSpace(req.WorkName)
	if req.NRIC == "" || req.Name == "" || req.WorkName == "" {
		return model.Employee{}, &model.ValidationError{Reason: "nric_fin_passport_no, name and work_name are required"}
	}
	start, err := time.Parse(dateLayout, req.EmploymentStart)
	if err != nil {
		return model.Employee{}, &model.ValidationError{Reason: "invalid employment_start"}
	}
	e := model.Employee{
		EID:             req.EID,
		NRIC:            req.NRIC,
		Name:            req.Name,
		WorkName:        req.WorkName,
		Gender:          strings.TrimSpace(req.Gender),
		MobileNumber:    strings.TrimSpace(req.MobileNumber),
		CountryCode:     strings.TrimSpace(req.CountryCode),
		EmploymentStart: start,
	}
	if req.EmploymentEnd != "" {
		end, err := time.Parse(dateLayout, req.EmploymentEnd)
		if err != nil {
			return model.Employee{}, &model.ValidationError{Reason: "invalid employment_end"}
		}
		if end.Before(start) {
			return model.Employee{}, &model.ValidationError{Reason: "employment_end must not be before employment_start"}
		}
		e.EmploymentEnd = &end
	}
	return e, nil
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	employee, err := req.toModel()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	var initialRole model.RoleDefinition
	if role := strings.TrimSpace(req.InitialRole); role != "" {
		initialRole, err = h.store.GetRoleDefinitionByType(ctx, role)
		if err != nil {
			if model.IsNotFound(err) {
				http.Error(w, "unknown initial_role", http.StatusBadRequest)
				return
			}
			writeError(w, h.logger, err)
			return
		}
	}

	tx, err := h.store.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eid, err := h.store.CreateEmployee(ctx, tx, &employee)
	if err != nil {
		if storage.IsConstraintViolation(err) {
			http.Error(w, "employee with this nric already exists", http.StatusConflict)
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if initialRole.RDID != 0 {
		if _, err := h.store.AddRole(ctx, tx, eid, initialRole.RDID, employee.EmploymentStart, employee.EmploymentEnd); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}
	employee.EID = eid
	writeJSON(w, http.StatusCreated, employee)
}

// Update rewrites the employee record. Setting or moving employment_end
// earlier cascades to the role assignments: no role may end after the
// employment does.
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.EID <= 0 {
		http.Error(w, "eid is required", http.StatusBadRequest)
		return
	}
	employee, err := req.toModel()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.UpdateEmployee(ctx, tx, &employee); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var rolesEnded int64
	if employee.EmploymentEnd != nil {
		rolesEnded, err = h.store.TruncateRolesAfter(ctx, tx, employee.EID, *employee.EmploymentEnd)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if rolesEnded > 0 {
		h.logger.Info("roles truncated to employment end", "eid", employee.EID, "count", rolesEnded)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"eid":         employee.EID,
		"roles_ended": rolesEnded,
	})
}

func (h *EmployeeHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	eid, ok := queryID(r, "eid")
	if !ok {
		http.Error(w, "eid is required", http.StatusBadRequest)
		return
	}
	employee, err := h.store.GetEmployee(r.Context(), eid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	roles, err := h.store.ListRoles(r.Context(), eid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"employee": employee,
		"roles":    roles,
	})
}

type addRoleRequest struct {
	EID       int64  `json:"eid"`
	RoleType  string `json:"role_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

func (h *EmployeeHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.EID <= 0 || strings.TrimSpace(req.RoleType) == "" {
		http.Error(w, "eid and role_type are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		if parsed.Before(start) {
			http.Error(w, "end_date must not be before start_date", http.StatusBadRequest)
			return
		}
		end = &parsed
	}

	ctx := r.Context()
	employee, err := h.store.GetEmployee(ctx, req.EID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if employee.EmploymentEnd != nil && !employee.EmploymentEnd.After(time.Now()) {
		writeError(w, h.logger, &model.InvalidStateError{Reason: "employment has ended"})
		return
	}
	rd, err := h.store.GetRoleDefinitionByType(ctx, strings.TrimSpace(req.RoleType))
	if err != nil {
		if model.IsNotFound(err) {
			http.Error(w, "unknown role_type", http.StatusBadRequest)
			return
		}
		writeError(w, h.logger, err)
		return
	}

	tx, err := h.store.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rid, err := h.store.AddRole(ctx, tx, req.EID, rd.RDID, start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"rid": rid})
}

func (h *EmployeeHandler) EndRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		RID int64 `json:"rid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.RID <= 0 {
		http.Error(w, "rid is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.EndRole(ctx, tx, req.RID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}
