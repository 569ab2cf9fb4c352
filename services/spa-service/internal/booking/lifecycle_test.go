package booking

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/outbox"
)

// fakeTx satisfies pgx.Tx for the manager's commit/rollback calls; any other
// method panics, which is what we want - the fake ledger never touches it.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// fakeLedger is an in-memory Store plus ConflictChecker. It records the order
// of the locking, checking and writing calls so tests can assert that the
// resource locks are taken before the overlap reads.
type fakeLedger struct {
	services map[int64]model.Service
	rooms    map[int64]model.Room
	staff    map[int64]model.Employee
	roles    map[int64]string
	txns     map[int64]*model.Transaction
	items    map[int64]*model.TransactionItem
	nextTTID int64
	calls    []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		services: map[int64]model.Service{
			1: {SID: 1, Name: "Swedish Massage", BaseCost: 100, DurationMinutes: 60, RoleType: "massage"},
			2: {SID: 2, Name: "Hot Stone", BaseCost: 150, DurationMinutes: 90, RoleType: "massage"},
		},
		rooms: map[int64]model.Room{
			1: {RID: 1, RoomName: "Lotus"},
			2: {RID: 2, RoomName: "Orchid"},
		},
		staff: map[int64]model.Employee{
			7: {EID: 7, WorkName: "Mei"},
			8: {EID: 8, WorkName: "Lin"},
		},
		roles: map[int64]string{7: "massage", 8: "massage"},
		txns: map[int64]*model.Transaction{
			1: {TID: 1, CID: 10, Status: model.StatusPending, EntryTime: time.Now()},
			2: {TID: 2, CID: 11, Status: model.StatusPending, EntryTime: time.Now()},
		},
		items: map[int64]*model.TransactionItem{},
	}
}

func (f *fakeLedger) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeLedger) GetService(_ context.Context, sid int64) (model.Service, error) {
	svc, ok := f.services[sid]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (f *fakeLedger) GetRoom(_ context.Context, rid int64) (model.Room, error) {
	room, ok := f.rooms[rid]
	if !ok {
		return model.Room{}, model.ErrNotFound
	}
	return room, nil
}

func (f *fakeLedger) GetEmployee(_ context.Context, eid int64) (model.Employee, error) {
	e, ok := f.staff[eid]
	if !ok {
		return model.Employee{}, model.ErrNotFound
	}
	return e, nil
}

func (f *fakeLedger) EmployeeHasActiveRole(_ context.Context, eid int64, roleType string) (bool, error) {
	return f.roles[eid] == roleType, nil
}

func (f *fakeLedger) ListActiveServices(context.Context) ([]model.Service, error) {
	out := make([]model.Service, 0, len(f.services))
	for _, svc := range f.services {
		out = append(out, svc)
	}
	return out, nil
}

func (f *fakeLedger) GetTransactionForUpdate(_ context.Context, _ pgx.Tx, tid int64) (model.Transaction, error) {
	txn, ok := f.txns[tid]
	if !ok {
		return model.Transaction{}, model.ErrNotFound
	}
	return *txn, nil
}

func (f *fakeLedger) LockBookingResources(_ context.Context, _ pgx.Tx, cid, therapistEID, roomRID int64) error {
	f.calls = append(f.calls, "lock-resources")
	if _, ok := f.staff[therapistEID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := f.rooms[roomRID]; !ok {
		return model.ErrNotFound
	}
	return nil
}

func (f *fakeLedger) GetItem(_ context.Context, ttid int64) (model.TransactionItem, error) {
	item, ok := f.items[ttid]
	if !ok {
		return model.TransactionItem{}, model.ErrNotFound
	}
	return *item, nil
}

func (f *fakeLedger) GetItemForUpdate(ctx context.Context, _ pgx.Tx, ttid int64) (model.TransactionItem, error) {
	return f.GetItem(ctx, ttid)
}

func (f *fakeLedger) InsertItem(_ context.Context, _ pgx.Tx, item *model.TransactionItem) (int64, error) {
	f.calls = append(f.calls, "insert-item")
	f.nextTTID++
	stored := *item
	stored.TTID = f.nextTTID
	f.items[stored.TTID] = &stored
	return stored.TTID, nil
}

func (f *fakeLedger) UpdateItem(_ context.Context, _ pgx.Tx, item *model.TransactionItem) error {
	if _, ok := f.items[item.TTID]; !ok {
		return model.ErrNotFound
	}
	stored := *item
	f.items[item.TTID] = &stored
	return nil
}

func (f *fakeLedger) DeleteItem(_ context.Context, _ pgx.Tx, ttid int64) error {
	if _, ok := f.items[ttid]; !ok {
		return model.ErrNotFound
	}
	delete(f.items, ttid)
	return nil
}

func (f *fakeLedger) MarkItemStarted(_ context.Context, _ pgx.Tx, ttid int64) (time.Time, error) {
	item, ok := f.items[ttid]
	if !ok {
		return time.Time{}, model.ErrNotFound
	}
	now := time.Now()
	item.ActualStart = &now
	return now, nil
}

func (f *fakeLedger) MarkItemEnded(_ context.Context, _ pgx.Tx, ttid int64) (time.Time, error) {
	item, ok := f.items[ttid]
	if !ok {
		return time.Time{}, model.ErrNotFound
	}
	now := time.Now()
	item.ActualEnd = &now
	return now, nil
}

func (f *fakeLedger) AdjustTotals(_ context.Context, _ pgx.Tx, tid int64, costDelta, discountDelta float64) error {
	txn, ok := f.txns[tid]
	if !ok {
		return model.ErrNotFound
	}
	txn.TotalCost += costDelta
	txn.TotalDiscount += discountDelta
	return nil
}

// Check mirrors the SQL overlap predicate against the in-memory items.
func (f *fakeLedger) Check(_ context.Context, _ pgx.Tx, cid, therapistEID, roomRID int64, start, end time.Time, excludeTTID int64) error {
	f.calls = append(f.calls, "conflict-check")
	for _, item := range f.items {
		if item.TTID == excludeTTID || item.ActualEnd != nil {
			continue
		}
		if !(item.ScheduledStart.Before(end) && start.Before(item.ScheduledEnd)) {
			continue
		}
		svc := f.services[item.SID]
		conflict := &model.ConflictError{ServiceName: svc.Name, Start: item.ScheduledStart, End: item.ScheduledEnd}
		switch {
		case item.TherapistEID == therapistEID:
			conflict.Resource = model.ResourceTherapist
		case item.RID == roomRID:
			conflict.Resource = model.ResourceRoom
		case f.txns[item.TID] != nil && f.txns[item.TID].CID == cid:
			conflict.Resource = model.ResourceCustomer
		default:
			continue
		}
		return conflict
	}
	return nil
}

type fakeSink struct{ events []string }

func (s *fakeSink) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	s.events = append(s.events, evt.EventType)
	return nil
}

type fakeRefresher struct{ availability, transactions int }

func (r *fakeRefresher) RefreshAvailability(context.Context) error {
	r.availability++
	return nil
}

func (r *fakeRefresher) RefreshTransactions(context.Context) error {
	r.transactions++
	return nil
}

func newTestManager() (*Manager, *fakeLedger, *fakeSink) {
	ledger := newFakeLedger()
	sink := &fakeSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(ledger, ledger, nil, &fakeRefresher{}, sink, logger), ledger, sink
}

func slot(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestBookingLifecycle(t *testing.T) {
	m, ledger, sink := newTestManager()
	ctx := context.Background()

	ttid, err := m.Create(ctx, CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := ledger.items[ttid].ScheduledEnd; !got.Equal(slot(11, 0)) {
		t.Fatalf("scheduled end = %s, want 11:00", got)
	}

	// Same therapist, different visit, overlapping window.
	_, err = m.Create(ctx, CreateParams{TID: 2, SID: 1, TherapistEID: 7, RoomRID: 2, ScheduledStart: slot(10, 30)})
	if !model.IsConflict(err) {
		t.Fatalf("expected therapist conflict, got %v", err)
	}

	// Same room, different therapist.
	_, err = m.Create(ctx, CreateParams{TID: 2, SID: 1, TherapistEID: 8, RoomRID: 1, ScheduledStart: slot(10, 30)})
	if !model.IsConflict(err) {
		t.Fatalf("expected room conflict, got %v", err)
	}

	// Same customer cannot be in two treatments at once, even with a free
	// therapist and room.
	_, err = m.Create(ctx, CreateParams{TID: 1, SID: 1, TherapistEID: 8, RoomRID: 2, ScheduledStart: slot(10, 30)})
	if !model.IsConflict(err) {
		t.Fatalf("expected customer conflict, got %v", err)
	}

	// Touching windows do not conflict.
	backToBack, err := m.Create(ctx, CreateParams{TID: 2, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(11, 0)})
	if err != nil {
		t.Fatalf("back-to-back create: %v", err)
	}
	if err := m.Delete(ctx, backToBack); err != nil {
		t.Fatalf("cleanup delete: %v", err)
	}

	if _, err := m.Start(ctx, ttid); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(ctx, ttid); !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state on double start, got %v", err)
	}
	err = m.Edit(ctx, ttid, EditParams{SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)})
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state editing a started item, got %v", err)
	}
	if err := m.Delete(ctx, ttid); !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state deleting a started item, got %v", err)
	}
	if _, err := m.End(ctx, ttid); err != nil {
		t.Fatalf("end: %v", err)
	}

	// Ending frees the therapist and room for the rest of the window.
	if _, err := m.Create(ctx, CreateParams{TID: 2, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 30)}); err != nil {
		t.Fatalf("create after end: %v", err)
	}

	for _, want := range []string{outbox.EventBookingCreated, outbox.EventBookingStarted, outbox.EventBookingEnded, outbox.EventBookingDeleted} {
		if !slices.Contains(sink.events, want) {
			t.Fatalf("missing %s event, got %v", want, sink.events)
		}
	}
}

func TestCreateLocksResourcesBeforeConflictCheck(t *testing.T) {
	m, ledger, _ := newTestManager()

	if _, err := m.Create(context.Background(), CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	lock := slices.Index(ledger.calls, "lock-resources")
	check := slices.Index(ledger.calls, "conflict-check")
	insert := slices.Index(ledger.calls, "insert-item")
	if lock == -1 || check == -1 || insert == -1 {
		t.Fatalf("missing calls: %v", ledger.calls)
	}
	if !(lock < check && check < insert) {
		t.Fatalf("resource locks must precede the conflict reads and the insert: %v", ledger.calls)
	}
}

func TestEditLocksResourcesBeforeConflictCheck(t *testing.T) {
	m, ledger, _ := newTestManager()
	ctx := context.Background()

	ttid, err := m.Create(ctx, CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger.calls = nil
	if err := m.Edit(ctx, ttid, EditParams{SID: 2, TherapistEID: 8, RoomRID: 2, ScheduledStart: slot(10, 0)}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	lock := slices.Index(ledger.calls, "lock-resources")
	check := slices.Index(ledger.calls, "conflict-check")
	if lock == -1 || check == -1 || lock > check {
		t.Fatalf("resource locks must precede the conflict reads: %v", ledger.calls)
	}
}

func TestCreateThenDeleteRestoresTotals(t *testing.T) {
	m, ledger, _ := newTestManager()
	ctx := context.Background()

	before := *ledger.txns[1]
	ttid, err := m.Create(ctx, CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0), ItemDiscount: 20, ItemDiscountType: model.DiscountFlat})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := ledger.txns[1].TotalCost; got != before.TotalCost+100 {
		t.Fatalf("total cost after create = %v, want %v", got, before.TotalCost+100)
	}
	if got := ledger.txns[1].TotalDiscount; got != before.TotalDiscount+20 {
		t.Fatalf("total discount after create = %v, want %v", got, before.TotalDiscount+20)
	}

	if err := m.Delete(ctx, ttid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := ledger.txns[1].TotalCost; got != before.TotalCost {
		t.Fatalf("total cost after delete = %v, want %v", got, before.TotalCost)
	}
	if got := ledger.txns[1].TotalDiscount; got != before.TotalDiscount {
		t.Fatalf("total discount after delete = %v, want %v", got, before.TotalDiscount)
	}
}

func TestEditAdjustsTotalsByDelta(t *testing.T) {
	m, ledger, _ := newTestManager()
	ctx := context.Background()

	ttid, err := m.Create(ctx, CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = m.Edit(ctx, ttid, EditParams{SID: 2, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0), ItemDiscount: 30, ItemDiscountType: model.DiscountFlat})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if got := ledger.txns[1].TotalCost; got != 150 {
		t.Fatalf("total cost = %v, want 150", got)
	}
	if got := ledger.txns[1].TotalDiscount; got != 30 {
		t.Fatalf("total discount = %v, want 30", got)
	}
	item := ledger.items[ttid]
	if !item.ScheduledEnd.Equal(slot(11, 30)) {
		t.Fatalf("scheduled end = %s, want 11:30 from the new duration", item.ScheduledEnd)
	}
}

func TestCreateRejectsClosedVisit(t *testing.T) {
	m, ledger, _ := newTestManager()
	exited := time.Now()
	ledger.txns[1].Status = model.StatusCompleted
	ledger.txns[1].ExitTime = &exited

	_, err := m.Create(context.Background(), CreateParams{TID: 1, SID: 1, TherapistEID: 7, RoomRID: 1, ScheduledStart: slot(10, 0)})
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state for closed visit, got %v", err)
	}
}
