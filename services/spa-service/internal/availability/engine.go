// Package availability computes free therapists, free rooms and the busy
// board from the current set of live bookings. Nothing here is stored: a
// stored free/busy flag would go stale the moment a service starts or ends,
// so every answer is derived from the ledger at read time.
package availability

import (
	"context"
	"time"

	"github.com/iamacowMooMoo/spaops/libs/db"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

type Engine struct {
	pool *db.Pool
}

func NewEngine(pool *db.Pool) *Engine {
	return &Engine{pool: pool}
}

// StaffEntry is one free staff member on the dashboard or in a booking's
// therapist picker.
type StaffEntry struct {
	EID      int64  `json:"eid"`
	WorkName string `json:"work_name"`
	RoleType string `json:"role_type"`
}

// BusyEntry is one in-progress booking on the busy board. MinutesLeft is
// scheduled_end minus now and goes negative when a service runs over.
type BusyEntry struct {
	TherapistName string    `json:"therapist_name"`
	RoomName      string    `json:"room_name"`
	CustomerName  string    `json:"customer_name"`
	ScheduledEnd  time.Time `json:"scheduled_end"`
	MinutesLeft   float64   `json:"minutes_left"`
}

// FreeTherapists returns employees who hold an active role of the given type,
// are still employed, and have no live booking overlapping [start,end).
// Booking creation calls this with the target interval, not with now.
func (e *Engine) FreeTherapists(ctx context.Context, roleType string, start, end time.Time) ([]StaffEntry, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT DISTINCT e.eid, e.work_name, rd.role_type
		FROM employees e
		JOIN roles r ON e.eid = r.eid
			AND r.start_date <= CURRENT_DATE
			AND (r.end_date IS NULL OR r.end_date > CURRENT_DATE)
		JOIN role_definition rd ON r.rdid = rd.rdid
		WHERE rd.role_type = $1
		AND (e.employment_end IS NULL OR e.employment_end > CURRENT_DATE)
		AND NOT EXISTS (
			SELECT 1 FROM transaction_items ti
			WHERE ti.therapist_eid = e.eid
			AND ti.scheduled_start < $3
			AND ti.scheduled_end > $2
			AND ti.actual_end IS NULL
		)
		ORDER BY e.work_name
	`, roleType, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStaff(rows)
}

// FreeTherapistsExcluding is FreeTherapists without the role filter and with
// one item ignored, for the edit-options picker.
func (e *Engine) FreeTherapistsExcluding(ctx context.Context, start, end time.Time, excludeTTID int64) ([]StaffEntry, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT DISTINCT e.eid, e.work_name, rd.role_type
		FROM employees e
		JOIN roles r ON e.eid = r.eid
			AND r.start_date <= CURRENT_DATE
			AND (r.end_date IS NULL OR r.end_date > CURRENT_DATE)
		JOIN role_definition rd ON r.rdid = rd.rdid
		WHERE (e.employment_end IS NULL OR e.employment_end >= CURRENT_DATE)
		AND NOT EXISTS (
			SELECT 1 FROM transaction_items ti
			WHERE ti.therapist_eid = e.eid
			AND ti.scheduled_start < $2
			AND ti.scheduled_end > $1
			AND ti.actual_end IS NULL
			AND ti.ttid <> $3
		)
		ORDER BY e.work_name
	`, start, end, excludeTTID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStaff(rows)
}

// FreeRooms returns rooms with no live booking overlapping [start,end).
// excludeTTID ignores one item (0 for none).
func (e *Engine) FreeRooms(ctx context.Context, start, end time.Time, excludeTTID int64) ([]model.Room, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT rid, room_name
		FROM room
		WHERE rid NOT IN (
			SELECT DISTINCT rid
			FROM transaction_items
			WHERE scheduled_start < $2
			AND scheduled_end > $1
			AND actual_end IS NULL
			AND ttid <> $3
		)
		ORDER BY room_name
	`, start, end, excludeTTID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRooms(rows)
}

// AvailableStaffNow is the dashboard view: active-role employees with no
// booking covering this instant, grouped by role type.
func (e *Engine) AvailableStaffNow(ctx context.Context) ([]StaffEntry, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT e.eid, e.work_name, rd.role_type
		FROM employees e
		JOIN roles r ON e.eid = r.eid
			AND r.start_date <= CURRENT_DATE
			AND (r.end_date IS NULL OR r.end_date > CURRENT_DATE)
		JOIN role_definition rd ON r.rdid = rd.rdid
		WHERE NOT EXISTS (
			SELECT 1 FROM transaction_items ti
			WHERE ti.therapist_eid = e.eid
			AND ti.scheduled_start <= now()
			AND ti.scheduled_end >= now()
			AND ti.actual_end IS NULL
		)
		AND (e.employment_end IS NULL OR e.employment_end >= CURRENT_DATE)
		ORDER BY rd.role_type, e.work_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStaff(rows)
}

// AvailableRoomsNow is the dashboard view of rooms free at this instant.
func (e *Engine) AvailableRoomsNow(ctx context.Context) ([]model.Room, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT rid, room_name
		FROM room
		WHERE rid NOT IN (
			SELECT DISTINCT rid
			FROM transaction_items
			WHERE scheduled_start <= now()
			AND scheduled_end >= now()
			AND actual_end IS NULL
		)
		ORDER BY room_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRooms(rows)
}

// BusyNow lists in-progress bookings with who, where, for whom and the
// minutes remaining on the schedule.
func (e *Engine) BusyNow(ctx context.Context) ([]BusyEntry, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT e.work_name, r.room_name, c.name, ti.scheduled_end,
			(EXTRACT(EPOCH FROM (ti.scheduled_end - now()))/60)::float8
		FROM transaction_items ti
		JOIN employees e ON ti.therapist_eid = e.eid
		JOIN room r ON ti.rid = r.rid
		JOIN transactions t ON ti.tid = t.tid
		JOIN customers c ON t.cid = c.cid
		WHERE ti.scheduled_start <= now()
		AND ti.scheduled_end >= now()
		AND ti.actual_end IS NULL
		ORDER BY ti.scheduled_end
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusyEntry
	for rows.Next() {
		var b BusyEntry
		if err := rows.Scan(&b.TherapistName, &b.RoomName, &b.CustomerName, &b.ScheduledEnd, &b.MinutesLeft); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type staffRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanStaff(rows staffRows) ([]StaffEntry, error) {
	var out []StaffEntry
	for rows.Next() {
		var s StaffEntry
		if err := rows.Scan(&s.EID, &s.WorkName, &s.RoleType); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanRooms(rows staffRows) ([]model.Room, error) {
	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.RID, &r.RoomName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
