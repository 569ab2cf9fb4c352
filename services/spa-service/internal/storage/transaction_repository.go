package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

// ActiveVisit is one row of the cashier dashboard's active-transactions view.
type ActiveVisit struct {
	TID          int64      `json:"tid"`
	CID          int64      `json:"cid"`
	CustomerName string     `json:"customer_name"`
	EntryTime    time.Time  `json:"entry_time"`
	ExpectedExit *time.Time `json:"expected_exit,omitempty"`
	Outstanding  float64    `json:"outstanding"`
	Status       string     `json:"status"`
}

// ItemDetail is a transaction item joined with its service, therapist and
// room names for the visit detail view.
type ItemDetail struct {
	TTID             int64      `json:"ttid"`
	SID              int64      `json:"sid"`
	ServiceName      string     `json:"service_name"`
	TherapistEID     int64      `json:"therapist_eid"`
	TherapistName    string     `json:"therapist_name"`
	RID              int64      `json:"rid"`
	RoomName         string     `json:"room_name"`
	Cost             float64    `json:"cost"`
	ItemDiscount     float64    `json:"item_discount"`
	ItemDiscountType string     `json:"item_discount_type"`
	ScheduledStart   time.Time  `json:"scheduled_start"`
	ScheduledEnd     time.Time  `json:"scheduled_end"`
	ActualStart      *time.Time `json:"actual_start,omitempty"`
	ActualEnd        *time.Time `json:"actual_end,omitempty"`
	State            string     `json:"state"`
}

func (s *Store) CreateTransaction(ctx context.Context, tx pgx.Tx, cid, cashierEID int64) (int64, error) {
	var tid int64
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions
			(cid, cashier_eid, entry_time, status,
			 total_cost, total_discount, total_paid,
			 billlevel_discount, billlevel_discount_type)
		VALUES ($1, $2, now(), $3, 0, 0, 0, 0, $4)
		RETURNING tid
	`, cid, cashierEID, model.StatusPending, model.DiscountNone).Scan(&tid)
	if err != nil {
		return 0, err
	}
	return tid, nil
}

const transactionColumns = `
	tid, cid, cashier_eid, entry_time, exit_time, status,
	total_cost::float8, total_discount::float8, total_paid::float8,
	billlevel_discount::float8, billlevel_discount_type`

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.TID, &t.CID, &t.CashierEID, &t.EntryTime, &t.ExitTime, &t.Status,
		&t.TotalCost, &t.TotalDiscount, &t.TotalPaid, &t.BillDiscount, &t.BillDiscountType)
	if isNoRows(err) {
		return model.Transaction{}, model.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, tid int64) (model.Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE tid = $1
	`, tid))
}

// GetTransactionForUpdate row-locks the transaction so concurrent mutations
// against the same visit serialize at the store.
func (s *Store) GetTransactionForUpdate(ctx context.Context, tx pgx.Tx, tid int64) (model.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE tid = $1
		FOR UPDATE
	`, tid))
}

// LockBookingResources row-locks the customer, therapist and room a booking
// contends on, always in that order so concurrent bookings sharing any
// resource serialize instead of deadlocking. Locking only the parent
// transaction row is not enough: two bookings for the same therapist in
// different visits would lock different rows and both pass the overlap reads
// under read committed.
func (s *Store) LockBookingResources(ctx context.Context, tx pgx.Tx, cid, therapistEID, roomRID int64) error {
	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM customers WHERE cid = $1 FOR UPDATE`, cid).Scan(&one); err != nil {
		if isNoRows(err) {
			return model.ErrNotFound
		}
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT 1 FROM employees WHERE eid = $1 FOR UPDATE`, therapistEID).Scan(&one); err != nil {
		if isNoRows(err) {
			return model.ErrNotFound
		}
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT 1 FROM room WHERE rid = $1 FOR UPDATE`, roomRID).Scan(&one); err != nil {
		if isNoRows(err) {
			return model.ErrNotFound
		}
		return err
	}
	return nil
}

// ListActiveVisits returns live visits (pending/partial/paid, not exited)
// with expected exit = latest scheduled end among the visit's items and the
// outstanding balance computed store-side, never negative.
func (s *Store) ListActiveVisits(ctx context.Context) ([]ActiveVisit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.tid, c.cid, c.name, t.entry_time,
			(SELECT MAX(ti.scheduled_end)
			 FROM transaction_items ti
			 WHERE ti.tid = t.tid) AS expected_exit,
			GREATEST(0, t.total_cost - t.total_discount - t.total_paid)::float8 AS outstanding,
			t.status
		FROM transactions t
		JOIN customers c ON t.cid = c.cid
		WHERE t.status = ANY($1)
		AND t.exit_time IS NULL
		ORDER BY t.entry_time DESC
	`, model.LiveStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveVisit
	for rows.Next() {
		var v ActiveVisit
		if err := rows.Scan(&v.TID, &v.CID, &v.CustomerName, &v.EntryTime, &v.ExpectedExit, &v.Outstanding, &v.Status); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) InsertItem(ctx context.Context, tx pgx.Tx, it *model.TransactionItem) (int64, error) {
	var ttid int64
	err := tx.QueryRow(ctx, `
		INSERT INTO transaction_items
			(tid, sid, therapist_eid, rid, scheduled_start, scheduled_end, cost, item_discount, item_discount_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ttid
	`, it.TID, it.SID, it.TherapistEID, it.RID, it.ScheduledStart, it.ScheduledEnd,
		it.Cost, it.ItemDiscount, it.ItemDiscountType).Scan(&ttid)
	if err != nil {
		return 0, err
	}
	return ttid, nil
}

const itemColumns = `
	ttid, tid, sid, therapist_eid, rid, scheduled_start, scheduled_end,
	actual_start, actual_end, cost::float8, item_discount::float8, item_discount_type`

func scanItem(row pgx.Row) (model.TransactionItem, error) {
	var it model.TransactionItem
	err := row.Scan(&it.TTID, &it.TID, &it.SID, &it.TherapistEID, &it.RID,
		&it.ScheduledStart, &it.ScheduledEnd, &it.ActualStart, &it.ActualEnd,
		&it.Cost, &it.ItemDiscount, &it.ItemDiscountType)
	if isNoRows(err) {
		return model.TransactionItem{}, model.ErrNotFound
	}
	if err != nil {
		return model.TransactionItem{}, err
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, ttid int64) (model.TransactionItem, error) {
	return scanItem(s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM transaction_items
		WHERE ttid = $1
	`, ttid))
}

func (s *Store) GetItemForUpdate(ctx context.Context, tx pgx.Tx, ttid int64) (model.TransactionItem, error) {
	return scanItem(tx.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM transaction_items
		WHERE ttid = $1
		FOR UPDATE
	`, ttid))
}

func (s *Store) UpdateItem(ctx context.Context, tx pgx.Tx, it *model.TransactionItem) error {
	tag, err := tx.Exec(ctx, `
		UPDATE transaction_items
		SET sid = $2, therapist_eid = $3, rid = $4,
			scheduled_start = $5, scheduled_end = $6,
			cost = $7, item_discount = $8, item_discount_type = $9
		WHERE ttid = $1
	`, it.TTID, it.SID, it.TherapistEID, it.RID, it.ScheduledStart, it.ScheduledEnd,
		it.Cost, it.ItemDiscount, it.ItemDiscountType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, tx pgx.Tx, ttid int64) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM transaction_items WHERE ttid = $1
	`, ttid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) MarkItemStarted(ctx context.Context, tx pgx.Tx, ttid int64) (time.Time, error) {
	var startedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE transaction_items
		SET actual_start = now()
		WHERE ttid = $1
		RETURNING actual_start
	`, ttid).Scan(&startedAt)
	return startedAt, err
}

func (s *Store) MarkItemEnded(ctx context.Context, tx pgx.Tx, ttid int64) (time.Time, error) {
	var endedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE transaction_items
		SET actual_end = now()
		WHERE ttid = $1
		RETURNING actual_end
	`, ttid).Scan(&endedAt)
	return endedAt, err
}

// AdjustTotals applies deltas to the transaction's running cost and discount
// aggregates in the same store transaction as the item mutation they reflect.
func (s *Store) AdjustTotals(ctx context.Context, tx pgx.Tx, tid int64, costDelta, discountDelta float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET total_cost = total_cost + $2,
			total_discount = total_discount + $3
		WHERE tid = $1
	`, tid, costDelta, discountDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, tid int64) ([]ItemDetail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ti.ttid, s.sid, s.name, e.eid, e.work_name, r.rid, r.room_name,
			ti.cost::float8, ti.item_discount::float8, ti.item_discount_type,
			ti.scheduled_start, ti.scheduled_end, ti.actual_start, ti.actual_end
		FROM transaction_items ti
		JOIN services s ON ti.sid = s.sid
		JOIN employees e ON ti.therapist_eid = e.eid
		JOIN room r ON ti.rid = r.rid
		WHERE ti.tid = $1
		ORDER BY ti.scheduled_start
	`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemDetail
	for rows.Next() {
		var d ItemDetail
		if err := rows.Scan(&d.TTID, &d.SID, &d.ServiceName, &d.TherapistEID, &d.TherapistName,
			&d.RID, &d.RoomName, &d.Cost, &d.ItemDiscount, &d.ItemDiscountType,
			&d.ScheduledStart, &d.ScheduledEnd, &d.ActualStart, &d.ActualEnd); err != nil {
			return nil, err
		}
		it := model.TransactionItem{ActualStart: d.ActualStart, ActualEnd: d.ActualEnd}
		d.State = string(it.State())
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) InsertPayment(ctx context.Context, tx pgx.Tx, tid int64, method string, amount float64) (int64, error) {
	var pid int64
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (tid, payment_method, payment_amount, payment_time)
		VALUES ($1, $2, $3, now())
		RETURNING pid
	`, tid, method, amount).Scan(&pid)
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// SumPayments recomputes the paid aggregate from the payments table. The
// source relied on store triggers for this; here it is explicit application
// logic run inside the payment transaction.
func (s *Store) SumPayments(ctx context.Context, tx pgx.Tx, tid int64) (float64, error) {
	var total float64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(payment_amount), 0)::float8
		FROM payments
		WHERE tid = $1
	`, tid).Scan(&total)
	return total, err
}

func (s *Store) SetTotalPaid(ctx context.Context, tx pgx.Tx, tid int64, total float64) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET total_paid = $2 WHERE tid = $1
	`, tid, total)
	return err
}

func (s *Store) SetStatus(ctx context.Context, tx pgx.Tx, tid int64, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2 WHERE tid = $1
	`, tid, status)
	return err
}

func (s *Store) RecordExit(ctx context.Context, tx pgx.Tx, tid int64, status string) (time.Time, error) {
	var exitTime time.Time
	err := tx.QueryRow(ctx, `
		UPDATE transactions
		SET exit_time = now(), status = $2
		WHERE tid = $1
		RETURNING exit_time
	`, tid, status).Scan(&exitTime)
	return exitTime, err
}

func (s *Store) ListPayments(ctx context.Context, tid int64) ([]model.Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pid, tid, payment_method, payment_amount::float8, payment_time
		FROM payments
		WHERE tid = $1
		ORDER BY payment_time DESC
	`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.PID, &p.TID, &p.Method, &p.Amount, &p.PaymentTime); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
