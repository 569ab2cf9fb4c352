// Package booking owns the service-item lifecycle: Scheduled -> InProgress ->
// Completed, with deletion allowed only while Scheduled. Every mutation runs
// inside one store transaction spanning the conflict reads, the write and the
// transaction-total adjustment, then refreshes the dashboard cache as a
// best-effort step after commit.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/availability"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/outbox"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

// Store is the slice of the ledger store the booking manager needs.
// *storage.Store satisfies it.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetService(ctx context.Context, sid int64) (model.Service, error)
	GetRoom(ctx context.Context, rid int64) (model.Room, error)
	GetEmployee(ctx context.Context, eid int64) (model.Employee, error)
	EmployeeHasActiveRole(ctx context.Context, eid int64, roleType string) (bool, error)
	ListActiveServices(ctx context.Context) ([]model.Service, error)
	GetTransactionForUpdate(ctx context.Context, tx pgx.Tx, tid int64) (model.Transaction, error)
	LockBookingResources(ctx context.Context, tx pgx.Tx, cid, therapistEID, roomRID int64) error
	GetItem(ctx context.Context, ttid int64) (model.TransactionItem, error)
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, ttid int64) (model.TransactionItem, error)
	InsertItem(ctx context.Context, tx pgx.Tx, item *model.TransactionItem) (int64, error)
	UpdateItem(ctx context.Context, tx pgx.Tx, item *model.TransactionItem) error
	DeleteItem(ctx context.Context, tx pgx.Tx, ttid int64) error
	MarkItemStarted(ctx context.Context, tx pgx.Tx, ttid int64) (time.Time, error)
	MarkItemEnded(ctx context.Context, tx pgx.Tx, ttid int64) (time.Time, error)
	AdjustTotals(ctx context.Context, tx pgx.Tx, tid int64, costDelta, discountDelta float64) error
}

// ConflictChecker runs the overlap reads inside the caller's transaction.
// *conflict.Checker satisfies it.
type ConflictChecker interface {
	Check(ctx context.Context, tx pgx.Tx, cid, therapistEID, roomRID int64, start, end time.Time, excludeTTID int64) error
}

// AvailabilityLister provides the free-resource lists for the edit form.
// *availability.Engine satisfies it.
type AvailabilityLister interface {
	FreeTherapistsExcluding(ctx context.Context, start, end time.Time, excludeTTID int64) ([]availability.StaffEntry, error)
	FreeRooms(ctx context.Context, start, end time.Time, excludeTTID int64) ([]model.Room, error)
}

// CacheRefresher rebuilds the dashboard entries after a committed mutation.
// *cache.Dashboard satisfies it.
type CacheRefresher interface {
	RefreshAvailability(ctx context.Context) error
	RefreshTransactions(ctx context.Context) error
}

// EventSink stores an outbox event in the same transaction as the mutation.
// *outbox.Repository satisfies it.
type EventSink interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Manager struct {
	store   Store
	checker ConflictChecker
	engine  AvailabilityLister
	dash    CacheRefresher
	outbox  EventSink
	logger  *slog.Logger
}

func NewManager(store Store, checker ConflictChecker, engine AvailabilityLister, dash CacheRefresher, outboxRepo EventSink, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		checker: checker,
		engine:  engine,
		dash:    dash,
		outbox:  outboxRepo,
		logger:  logger,
	}
}

type CreateParams struct {
	TID              int64
	SID              int64
	TherapistEID     int64
	RoomRID          int64
	ScheduledStart   time.Time
	ItemDiscount     float64
	ItemDiscountType string
}

type EditParams struct {
	SID              int64
	TherapistEID     int64
	RoomRID          int64
	ScheduledStart   time.Time
	ItemDiscount     float64
	ItemDiscountType string
}

// Create books a service item. The therapist and room are caller-selected
// (the cashier picks from the availability lists); conflicts are re-checked
// here, inside the store transaction, to close the race between "list
// fetched" and "booking submitted".
func (m *Manager) Create(ctx context.Context, p CreateParams) (int64, error) {
	svc, err := m.store.GetService(ctx, p.SID)
	if err != nil {
		return 0, err
	}
	if svc.ActiveUntil != nil && svc.ActiveUntil.Before(today()) {
		return 0, &model.ValidationError{Reason: fmt.Sprintf("service %q is no longer offered", svc.Name)}
	}
	if _, err := m.store.GetRoom(ctx, p.RoomRID); err != nil {
		return 0, err
	}
	if _, err := m.store.GetEmployee(ctx, p.TherapistEID); err != nil {
		return 0, err
	}
	hasRole, err := m.store.EmployeeHasActiveRole(ctx, p.TherapistEID, svc.RoleType)
	if err != nil {
		return 0, err
	}
	if !hasRole {
		return 0, &model.ValidationError{Reason: fmt.Sprintf("therapist does not hold an active %s role", svc.RoleType)}
	}

	discount, err := effectiveDiscount(svc.BaseCost, p.ItemDiscount, p.ItemDiscountType)
	if err != nil {
		return 0, err
	}
	end := p.ScheduledStart.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn, err := m.store.GetTransactionForUpdate(ctx, tx, p.TID)
	if err != nil {
		return 0, err
	}
	if !txn.IsLive() {
		return 0, &model.InvalidStateError{Reason: "visit is closed"}
	}
	// Lock the contended resources before the overlap reads: without this,
	// two concurrent bookings for the same therapist in different visits
	// would each pass the check and both commit.
	if err := m.store.LockBookingResources(ctx, tx, txn.CID, p.TherapistEID, p.RoomRID); err != nil {
		return 0, err
	}
	if err := m.checker.Check(ctx, tx, txn.CID, p.TherapistEID, p.RoomRID, p.ScheduledStart, end, 0); err != nil {
		return 0, err
	}

	item := &model.TransactionItem{
		TID:              p.TID,
		SID:              p.SID,
		TherapistEID:     p.TherapistEID,
		RID:              p.RoomRID,
		ScheduledStart:   p.ScheduledStart,
		ScheduledEnd:     end,
		Cost:             svc.BaseCost,
		ItemDiscount:     p.ItemDiscount,
		ItemDiscountType: normalizeDiscountType(p.ItemDiscountType),
	}
	ttid, err := m.store.InsertItem(ctx, tx, item)
	if err != nil {
		if storage.IsConstraintViolation(err) {
			return 0, &model.ConflictError{Resource: model.ResourceTherapist, ServiceName: svc.Name, Start: p.ScheduledStart, End: end}
		}
		return 0, err
	}
	if err := m.store.AdjustTotals(ctx, tx, p.TID, svc.BaseCost, discount); err != nil {
		return 0, err
	}
	if err := m.emit(ctx, tx, outbox.EventBookingCreated, ttid, map[string]any{
		"ttid":            ttid,
		"tid":             p.TID,
		"sid":             p.SID,
		"therapist_eid":   p.TherapistEID,
		"rid":             p.RoomRID,
		"scheduled_start": p.ScheduledStart.UTC().Format(time.RFC3339),
		"scheduled_end":   end.UTC().Format(time.RFC3339),
		"cost":            svc.BaseCost,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	m.refreshCaches(ctx, true)
	return ttid, nil
}

// Edit replaces every caller-editable field of a scheduled item. The end time
// is always recomputed from the new start and the new service's duration.
func (m *Manager) Edit(ctx context.Context, ttid int64, p EditParams) error {
	svc, err := m.store.GetService(ctx, p.SID)
	if err != nil {
		return err
	}
	if _, err := m.store.GetRoom(ctx, p.RoomRID); err != nil {
		return err
	}
	if _, err := m.store.GetEmployee(ctx, p.TherapistEID); err != nil {
		return err
	}
	newDiscount, err := effectiveDiscount(svc.BaseCost, p.ItemDiscount, p.ItemDiscountType)
	if err != nil {
		return err
	}
	end := p.ScheduledStart.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, err := m.store.GetItemForUpdate(ctx, tx, ttid)
	if err != nil {
		return err
	}
	if err := guardScheduled(&item, "edit"); err != nil {
		return err
	}
	txn, err := m.store.GetTransactionForUpdate(ctx, tx, item.TID)
	if err != nil {
		return err
	}
	if err := m.store.LockBookingResources(ctx, tx, txn.CID, p.TherapistEID, p.RoomRID); err != nil {
		return err
	}
	if err := m.checker.Check(ctx, tx, txn.CID, p.TherapistEID, p.RoomRID, p.ScheduledStart, end, ttid); err != nil {
		return err
	}

	oldDiscount, err := effectiveDiscount(item.Cost, item.ItemDiscount, item.ItemDiscountType)
	if err != nil {
		return err
	}

	updated := item
	updated.SID = p.SID
	updated.TherapistEID = p.TherapistEID
	updated.RID = p.RoomRID
	updated.ScheduledStart = p.ScheduledStart
	updated.ScheduledEnd = end
	updated.Cost = svc.BaseCost
	updated.ItemDiscount = p.ItemDiscount
	updated.ItemDiscountType = normalizeDiscountType(p.ItemDiscountType)
	if err := m.store.UpdateItem(ctx, tx, &updated); err != nil {
		return err
	}
	if err := m.store.AdjustTotals(ctx, tx, item.TID, svc.BaseCost-item.Cost, newDiscount-oldDiscount); err != nil {
		return err
	}
	if err := m.emit(ctx, tx, outbox.EventBookingUpdated, ttid, map[string]any{
		"ttid":            ttid,
		"tid":             item.TID,
		"sid":             p.SID,
		"therapist_eid":   p.TherapistEID,
		"rid":             p.RoomRID,
		"scheduled_start": p.ScheduledStart.UTC().Format(time.RFC3339),
		"scheduled_end":   end.UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	m.refreshCaches(ctx, true)
	return nil
}

// Delete removes a scheduled item and reverses its contribution to the
// visit's totals, so a create-then-delete round trip nets zero.
func (m *Manager) Delete(ctx context.Context, ttid int64) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, err := m.store.GetItemForUpdate(ctx, tx, ttid)
	if err != nil {
		return err
	}
	if err := guardScheduled(&item, "delete"); err != nil {
		return err
	}
	discount, err := effectiveDiscount(item.Cost, item.ItemDiscount, item.ItemDiscountType)
	if err != nil {
		return err
	}
	if err := m.store.DeleteItem(ctx, tx, ttid); err != nil {
		return err
	}
	if err := m.store.AdjustTotals(ctx, tx, item.TID, -item.Cost, -discount); err != nil {
		return err
	}
	if err := m.emit(ctx, tx, outbox.EventBookingDeleted, ttid, map[string]any{
		"ttid": ttid,
		"tid":  item.TID,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	m.refreshCaches(ctx, true)
	return nil
}

// Start records the actual start time. Allowed only once, from Scheduled.
func (m *Manager) Start(ctx context.Context, ttid int64) (time.Time, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, err := m.store.GetItemForUpdate(ctx, tx, ttid)
	if err != nil {
		return time.Time{}, err
	}
	if item.ActualStart != nil {
		return time.Time{}, &model.InvalidStateError{Reason: "service already started"}
	}
	startedAt, err := m.store.MarkItemStarted(ctx, tx, ttid)
	if err != nil {
		return time.Time{}, err
	}
	if err := m.emit(ctx, tx, outbox.EventBookingStarted, ttid, map[string]any{
		"ttid":         ttid,
		"tid":          item.TID,
		"actual_start": startedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}

	m.refreshCaches(ctx, false)
	return startedAt, nil
}

// End records the actual end time. The item must be in progress; ending frees
// the therapist and room immediately regardless of the original schedule.
func (m *Manager) End(ctx context.Context, ttid int64) (time.Time, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, err := m.store.GetItemForUpdate(ctx, tx, ttid)
	if err != nil {
		return time.Time{}, err
	}
	if item.ActualStart == nil {
		return time.Time{}, &model.InvalidStateError{Reason: "service has not started yet"}
	}
	if item.ActualEnd != nil {
		return time.Time{}, &model.InvalidStateError{Reason: "service already ended"}
	}
	endedAt, err := m.store.MarkItemEnded(ctx, tx, ttid)
	if err != nil {
		return time.Time{}, err
	}
	if err := m.emit(ctx, tx, outbox.EventBookingEnded, ttid, map[string]any{
		"ttid":       ttid,
		"tid":        item.TID,
		"actual_end": endedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}

	m.refreshCaches(ctx, false)
	return endedAt, nil
}

// EditOptions returns what a cashier can change a scheduled item to: the
// active services plus the therapists and rooms free over the item's window,
// ignoring the item's own reservation.
type EditOptions struct {
	Services   []model.Service           `json:"services"`
	Therapists []availability.StaffEntry `json:"therapists"`
	Rooms      []model.Room              `json:"rooms"`
}

func (m *Manager) EditOptions(ctx context.Context, ttid int64) (EditOptions, error) {
	item, err := m.store.GetItem(ctx, ttid)
	if err != nil {
		return EditOptions{}, err
	}
	services, err := m.store.ListActiveServices(ctx)
	if err != nil {
		return EditOptions{}, err
	}
	therapists, err := m.engine.FreeTherapistsExcluding(ctx, item.ScheduledStart, item.ScheduledEnd, ttid)
	if err != nil {
		return EditOptions{}, err
	}
	rooms, err := m.engine.FreeRooms(ctx, item.ScheduledStart, item.ScheduledEnd, ttid)
	if err != nil {
		return EditOptions{}, err
	}
	return EditOptions{Services: services, Therapists: therapists, Rooms: rooms}, nil
}

// refreshCaches runs after a successful commit. Failures are logged, never
// returned: the booking is already durable and the cache entries expire on
// their own within the TTL.
func (m *Manager) refreshCaches(ctx context.Context, totalsChanged bool) {
	if m.dash == nil {
		return
	}
	if err := m.dash.RefreshAvailability(ctx); err != nil {
		m.logger.Warn("availability cache refresh failed", "err", err)
	}
	if totalsChanged {
		if err := m.dash.RefreshTransactions(ctx); err != nil {
			m.logger.Warn("transactions cache refresh failed", "err", err)
		}
	}
}

func (m *Manager) emit(ctx context.Context, tx pgx.Tx, eventType string, ttid int64, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return m.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "transaction_item",
		AggregateID:   strconv.FormatInt(ttid, 10),
		EventType:     eventType,
		Payload:       body,
	})
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func guardScheduled(item *model.TransactionItem, op string) error {
	if item.ActualStart != nil {
		return &model.InvalidStateError{Reason: "cannot " + op + " - service has already started"}
	}
	return nil
}

// effectiveDiscount converts a stored (amount, type) pair into the money
// value it removes from the bill, capped so the discount never exceeds the
// item's cost.
func effectiveDiscount(cost, discount float64, discountType string) (float64, error) {
	if discount < 0 {
		return 0, &model.ValidationError{Reason: "discount must not be negative"}
	}
	switch normalizeDiscountType(discountType) {
	case model.DiscountNone:
		return 0, nil
	case model.DiscountFlat:
		return min(discount, cost), nil
	case model.DiscountPercent:
		if discount > 100 {
			return 0, &model.ValidationError{Reason: "percent discount must be at most 100"}
		}
		return min(cost*discount/100, cost), nil
	default:
		return 0, &model.ValidationError{Reason: "unknown discount type " + strconv.Quote(discountType)}
	}
}

func normalizeDiscountType(t string) string {
	if t == "" {
		return model.DiscountNone
	}
	return t
}
