// Package conflict decides whether a proposed (resource, interval) booking
// collides with a live booking for the same resource. Intervals are half-open:
// [start,end) conflicts with [b.start,b.end) iff b.start < end && b.end >
// start, so touching endpoints do not conflict. Only items whose actual_end is
// null count as obstacles; a finished service frees its resource immediately
// regardless of its original schedule.
package conflict

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

// overlaps is the in-process mirror of the SQL predicate the checks run;
// the test keeps the two in agreement.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

// Check runs the three independent resource checks for a proposed booking:
// the customer (across all of their transactions), then the chosen therapist
// and room. excludeTTID lets an edit ignore its own prior booking; pass 0 for
// a new item. Returns a *model.ConflictError describing the colliding booking
// or nil. Runs on the caller's store transaction so the check and the insert
// commit under the same isolation.
func (c *Checker) Check(ctx context.Context, tx pgx.Tx, cid, therapistEID, roomRID int64, start, end time.Time, excludeTTID int64) error {
	if err := c.CustomerConflict(ctx, tx, cid, start, end, excludeTTID); err != nil {
		return err
	}
	if err := c.TherapistConflict(ctx, tx, therapistEID, start, end, excludeTTID); err != nil {
		return err
	}
	return c.RoomConflict(ctx, tx, roomRID, start, end, excludeTTID)
}

func (c *Checker) TherapistConflict(ctx context.Context, tx pgx.Tx, eid int64, start, end time.Time, excludeTTID int64) error {
	return scanConflict(tx.QueryRow(ctx, `
		SELECT s.name, ti.scheduled_start, ti.scheduled_end
		FROM transaction_items ti
		JOIN services s ON ti.sid = s.sid
		WHERE ti.therapist_eid = $1
		AND ti.scheduled_start < $3
		AND ti.scheduled_end > $2
		AND ti.actual_end IS NULL
		AND ti.ttid <> $4
		LIMIT 1
	`, eid, start, end, excludeTTID), model.ResourceTherapist)
}

func (c *Checker) RoomConflict(ctx context.Context, tx pgx.Tx, rid int64, start, end time.Time, excludeTTID int64) error {
	return scanConflict(tx.QueryRow(ctx, `
		SELECT s.name, ti.scheduled_start, ti.scheduled_end
		FROM transaction_items ti
		JOIN services s ON ti.sid = s.sid
		WHERE ti.rid = $1
		AND ti.scheduled_start < $3
		AND ti.scheduled_end > $2
		AND ti.actual_end IS NULL
		AND ti.ttid <> $4
		LIMIT 1
	`, rid, start, end, excludeTTID), model.ResourceRoom)
}

// CustomerConflict scans every transaction of the customer, not just the one
// being booked against: a customer cannot sit in two services at once even
// across visits.
func (c *Checker) CustomerConflict(ctx context.Context, tx pgx.Tx, cid int64, start, end time.Time, excludeTTID int64) error {
	return scanConflict(tx.QueryRow(ctx, `
		SELECT s.name, ti.scheduled_start, ti.scheduled_end
		FROM transaction_items ti
		JOIN transactions t ON ti.tid = t.tid
		JOIN services s ON ti.sid = s.sid
		WHERE t.cid = $1
		AND ti.scheduled_start < $3
		AND ti.scheduled_end > $2
		AND ti.actual_end IS NULL
		AND ti.ttid <> $4
		LIMIT 1
	`, cid, start, end, excludeTTID), model.ResourceCustomer)
}

func scanConflict(row pgx.Row, resource string) error {
	var serviceName string
	var cstart, cend time.Time
	err := row.Scan(&serviceName, &cstart, &cend)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return &model.ConflictError{
		Resource:    resource,
		ServiceName: serviceName,
		Start:       cstart,
		End:         cend,
	}
}
