package model

import "time"

// Visit status values. A visit is "live" (shows on the cashier dashboard)
// while its status is pending/partial/paid and no exit has been recorded.
// A fully paid visit whose customer has not left yet keeps its prior status;
// completion is gated on the exit being recorded.
const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusCompleted = "completed"
)

// LiveStatuses are the statuses counted as active on the shop floor.
var LiveStatuses = []string{StatusPending, StatusPartial, StatusPaid}

// Item lifecycle, derived from the actual_* timestamps rather than stored.
type ItemState string

const (
	ItemScheduled  ItemState = "scheduled"
	ItemInProgress ItemState = "in_progress"
	ItemCompleted  ItemState = "completed"
)

// Discount types applied per item or per bill.
const (
	DiscountNone    = "none"
	DiscountFlat    = "flat"
	DiscountPercent = "percent"
)

// Payment methods accepted at the counter.
const (
	PayCash    = "cash"
	PayCard    = "card"
	PayQR      = "qr"
	PayVoucher = "voucher"
)

// Resource kinds checked for double-booking.
const (
	ResourceTherapist = "therapist"
	ResourceRoom      = "room"
	ResourceCustomer  = "customer"
)

type Customer struct {
	CID          int64  `json:"cid"`
	NRIC         string `json:"nric_fin_passport_no"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	MobileNumber string `json:"mobile_number"`
	CountryCode  string `json:"country_code"`
}

type Employee struct {
	EID             int64      `json:"eid"`
	NRIC            string     `json:"nric_fin_passport_no"`
	Name            string     `json:"name"`
	WorkName        string     `json:"work_name"`
	Gender          string     `json:"gender"`
	MobileNumber    string     `json:"mobile_number"`
	CountryCode     string     `json:"country_code"`
	EmploymentStart time.Time  `json:"employment_start"`
	EmploymentEnd   *time.Time `json:"employment_end,omitempty"`
}

type RoleDefinition struct {
	RDID     int64  `json:"rdid"`
	RoleType string `json:"role_type"`
}

// Role is one role assignment interval. Overlapping intervals for the same
// employee are allowed; "active" means start_date <= today and end_date is
// null or after today.
type Role struct {
	RID       int64      `json:"rid"`
	EID       int64      `json:"eid"`
	RDID      int64      `json:"rdid"`
	RoleType  string     `json:"role_type"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type Room struct {
	RID      int64  `json:"rid"`
	RoomName string `json:"room_name"`
}

type Service struct {
	SID             int64      `json:"sid"`
	Name            string     `json:"name"`
	BaseCost        float64    `json:"base_cost"`
	DurationMinutes int        `json:"duration_minutes"`
	RDID            int64      `json:"rdid"`
	RoleType        string     `json:"role_type"`
	ActiveUntil     *time.Time `json:"active_until,omitempty"`
}

type Transaction struct {
	TID              int64      `json:"tid"`
	CID              int64      `json:"cid"`
	CashierEID       int64      `json:"cashier_eid"`
	EntryTime        time.Time  `json:"entry_time"`
	ExitTime         *time.Time `json:"exit_time,omitempty"`
	Status           string     `json:"status"`
	TotalCost        float64    `json:"total_cost"`
	TotalDiscount    float64    `json:"total_discount"`
	TotalPaid        float64    `json:"total_paid"`
	BillDiscount     float64    `json:"bill_discount"`
	BillDiscountType string     `json:"bill_discount_type"`
}

// Outstanding is the balance still owed; never negative.
func (t *Transaction) Outstanding() float64 {
	out := t.TotalCost - t.TotalDiscount - t.TotalPaid
	if out < 0 {
		return 0
	}
	return out
}

func (t *Transaction) IsLive() bool {
	if t.ExitTime != nil {
		return false
	}
	for _, s := range LiveStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

type TransactionItem struct {
	TTID             int64      `json:"ttid"`
	TID              int64      `json:"tid"`
	SID              int64      `json:"sid"`
	TherapistEID     int64      `json:"therapist_eid"`
	RID              int64      `json:"rid"`
	ScheduledStart   time.Time  `json:"scheduled_start"`
	ScheduledEnd     time.Time  `json:"scheduled_end"`
	ActualStart      *time.Time `json:"actual_start,omitempty"`
	ActualEnd        *time.Time `json:"actual_end,omitempty"`
	Cost             float64    `json:"cost"`
	ItemDiscount     float64    `json:"item_discount"`
	ItemDiscountType string     `json:"item_discount_type"`
}

func (i *TransactionItem) State() ItemState {
	switch {
	case i.ActualStart == nil:
		return ItemScheduled
	case i.ActualEnd == nil:
		return ItemInProgress
	default:
		return ItemCompleted
	}
}

type Payment struct {
	PID         int64     `json:"pid"`
	TID         int64     `json:"tid"`
	Method      string    `json:"method"`
	Amount      float64   `json:"amount"`
	PaymentTime time.Time `json:"payment_time"`
}

type NationCode struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
}
