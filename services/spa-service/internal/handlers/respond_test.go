package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: model.ErrNotFound, want: http.StatusNotFound},
		{name: "wrapped not found", err: errors.Join(errors.New("lookup"), model.ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: &model.ConflictError{Resource: model.ResourceRoom, ServiceName: "Hot Stone", Start: time.Now(), End: time.Now().Add(time.Hour)}, want: http.StatusConflict},
		{name: "invalid state", err: &model.InvalidStateError{Reason: "service already started"}, want: http.StatusConflict},
		{name: "validation", err: &model.ValidationError{Reason: "discount must not be negative"}, want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("pool exhausted"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := httptest.NewRecorder()
			writeError(rw, discardLogger(), tc.err)
			if rw.Code != tc.want {
				t.Fatalf("status = %d, want %d", rw.Code, tc.want)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rw := httptest.NewRecorder()
	writeError(rw, discardLogger(), errors.New("connect to 10.0.0.3:5432 refused"))
	if strings.Contains(rw.Body.String(), "10.0.0.3") {
		t.Fatalf("internal error leaked into response: %s", rw.Body.String())
	}
}

func TestQueryID(t *testing.T) {
	cases := []struct {
		url  string
		want int64
		ok   bool
	}{
		{url: "http://example.com?tid=42", want: 42, ok: true},
		{url: "http://example.com", ok: false},
		{url: "http://example.com?tid=abc", ok: false},
		{url: "http://example.com?tid=-1", ok: false},
		{url: "http://example.com?tid=0", ok: false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		got, ok := queryID(req, "tid")
		if ok != tc.ok || got != tc.want {
			t.Fatalf("queryID(%s) = (%d, %v), want (%d, %v)", tc.url, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCustomerSearchRequiresQuery(t *testing.T) {
	h := NewCustomerHandler(nil, discardLogger())

	rw := httptest.NewRecorder()
	h.Search(rw, httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/customers/search", nil))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("missing q: status = %d, want 400", rw.Code)
	}

	rw = httptest.NewRecorder()
	h.Search(rw, httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/customers/search?q=mai&by=email", nil))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("bad by: status = %d, want 400", rw.Code)
	}

	rw = httptest.NewRecorder()
	h.Search(rw, httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/customers/search?q=mai", nil))
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: status = %d, want 405", rw.Code)
	}
}

func TestBookingCreateRejectsBadInput(t *testing.T) {
	h := NewBookingHandler(nil, nil, nil, discardLogger())

	rw := httptest.NewRecorder()
	body := strings.NewReader(`{"tid":1,"sid":2,"therapist_eid":3,"rid":4,"scheduled_start":"28-08-2026 14:00"}`)
	h.Create(rw, httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/bookings", body))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("bad timestamp: status = %d, want 400", rw.Code)
	}

	rw = httptest.NewRecorder()
	body = strings.NewReader(`{"sid":2,"therapist_eid":3,"rid":4,"scheduled_start":"2026-08-28T14:00:00Z"}`)
	h.Create(rw, httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/bookings", body))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("missing tid: status = %d, want 400", rw.Code)
	}
}

func TestEmployeeRequestValidation(t *testing.T) {
	req := employeeRequest{
		NRIC:            "S1234567A",
		Name:            "Mai Chen",
		WorkName:        "Mai",
		EmploymentStart: "2026-01-01",
		EmploymentEnd:   "2025-12-01",
	}
	if _, err := req.toModel(); err == nil {
		t.Fatal("employment_end before start should be rejected")
	}

	req.EmploymentEnd = "2026-12-01"
	e, err := req.toModel()
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}
	if e.EmploymentEnd == nil || e.EmploymentEnd.Format(dateLayout) != "2026-12-01" {
		t.Fatalf("unexpected employment_end: %+v", e.EmploymentEnd)
	}
}
