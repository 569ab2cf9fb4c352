package visit

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
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// fakeRegister is an in-memory visit ledger: transactions and their payments.
type fakeRegister struct {
	customers map[int64]model.Customer
	staff     map[int64]model.Employee
	txns      map[int64]*model.Transaction
	payments  map[int64][]model.Payment
	nextTID   int64
	nextPID   int64
}

func newFakeRegister() *fakeRegister {
	return &fakeRegister{
		customers: map[int64]model.Customer{10: {CID: 10, Name: "Tan Wei Ling"}},
		staff:     map[int64]model.Employee{3: {EID: 3, WorkName: "June"}},
		txns:      map[int64]*model.Transaction{},
		payments:  map[int64][]model.Payment{},
	}
}

func (f *fakeRegister) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeRegister) GetCustomer(_ context.Context, cid int64) (model.Customer, error) {
	c, ok := f.customers[cid]
	if !ok {
		return model.Customer{}, model.ErrNotFound
	}
	return c, nil
}

func (f *fakeRegister) GetEmployee(_ context.Context, eid int64) (model.Employee, error) {
	e, ok := f.staff[eid]
	if !ok {
		return model.Employee{}, model.ErrNotFound
	}
	return e, nil
}

func (f *fakeRegister) CreateTransaction(_ context.Context, _ pgx.Tx, cid, cashierEID int64) (int64, error) {
	f.nextTID++
	f.txns[f.nextTID] = &model.Transaction{
		TID:        f.nextTID,
		CID:        cid,
		CashierEID: cashierEID,
		EntryTime:  time.Now(),
		Status:     model.StatusPending,
	}
	return f.nextTID, nil
}

func (f *fakeRegister) GetTransaction(_ context.Context, tid int64) (model.Transaction, error) {
	txn, ok := f.txns[tid]
	if !ok {
		return model.Transaction{}, model.ErrNotFound
	}
	return *txn, nil
}

func (f *fakeRegister) GetTransactionForUpdate(ctx context.Context, _ pgx.Tx, tid int64) (model.Transaction, error) {
	return f.GetTransaction(ctx, tid)
}

func (f *fakeRegister) InsertPayment(_ context.Context, _ pgx.Tx, tid int64, method string, amount float64) (int64, error) {
	f.nextPID++
	f.payments[tid] = append(f.payments[tid], model.Payment{
		PID: f.nextPID, TID: tid, Method: method, Amount: amount, PaymentTime: time.Now(),
	})
	return f.nextPID, nil
}

func (f *fakeRegister) SumPayments(_ context.Context, _ pgx.Tx, tid int64) (float64, error) {
	var sum float64
	for _, p := range f.payments[tid] {
		sum += p.Amount
	}
	return sum, nil
}

func (f *fakeRegister) SetTotalPaid(_ context.Context, _ pgx.Tx, tid int64, totalPaid float64) error {
	txn, ok := f.txns[tid]
	if !ok {
		return model.ErrNotFound
	}
	txn.TotalPaid = totalPaid
	return nil
}

func (f *fakeRegister) SetStatus(_ context.Context, _ pgx.Tx, tid int64, status string) error {
	txn, ok := f.txns[tid]
	if !ok {
		return model.ErrNotFound
	}
	txn.Status = status
	return nil
}

func (f *fakeRegister) RecordExit(_ context.Context, _ pgx.Tx, tid int64, status string) (time.Time, error) {
	txn, ok := f.txns[tid]
	if !ok {
		return time.Time{}, model.ErrNotFound
	}
	now := time.Now()
	txn.ExitTime = &now
	txn.Status = status
	return now, nil
}

func (f *fakeRegister) ListItems(context.Context, int64) ([]storage.ItemDetail, error) {
	return nil, nil
}

func (f *fakeRegister) ListPayments(_ context.Context, tid int64) ([]model.Payment, error) {
	return f.payments[tid], nil
}

type fakeSink struct{ events []string }

func (s *fakeSink) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	s.events = append(s.events, evt.EventType)
	return nil
}

type fakeRefresher struct{ transactions int }

func (r *fakeRefresher) RefreshTransactions(context.Context) error {
	r.transactions++
	return nil
}

func newTestManager() (*Manager, *fakeRegister, *fakeSink) {
	reg := newFakeRegister()
	sink := &fakeSink{}
	return NewManager(reg, &fakeRefresher{}, sink, slog.New(slog.NewTextHandler(io.Discard, nil))), reg, sink
}

func TestVisitSettlesAfterExitThenFinalPayment(t *testing.T) {
	m, reg, sink := newTestManager()
	ctx := context.Background()

	tid, err := m.Open(ctx, 10, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	reg.txns[tid].TotalCost = 100

	txn, err := m.RecordPayments(ctx, tid, []PaymentInput{{Method: model.PayCard, Amount: 60}})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if txn.Status == model.StatusCompleted {
		t.Fatal("visit completed with balance outstanding")
	}
	if got := txn.Outstanding(); got != 40 {
		t.Fatalf("outstanding = %v, want 40", got)
	}

	// Customer leaves owing 40: exit is recorded, status untouched.
	txn, err = m.RecordExit(ctx, tid)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if txn.ExitTime == nil {
		t.Fatal("exit time not recorded")
	}
	if txn.Status == model.StatusCompleted {
		t.Fatal("visit completed despite outstanding balance")
	}

	// Settling the balance after the exit closes the visit.
	txn, err = m.RecordPayments(ctx, tid, []PaymentInput{{Method: model.PayCash, Amount: 40}})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if txn.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed", txn.Status)
	}
	if got := txn.TotalPaid; got != 100 {
		t.Fatalf("total paid = %v, want 100", got)
	}

	if !slices.Contains(sink.events, outbox.EventVisitCompleted) {
		t.Fatalf("missing completed event, got %v", sink.events)
	}
}

func TestFullyPaidVisitCompletesOnExit(t *testing.T) {
	m, reg, _ := newTestManager()
	ctx := context.Background()

	tid, err := m.Open(ctx, 10, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	reg.txns[tid].TotalCost = 100

	// Split tender settling the bill while the customer is still here.
	txn, err := m.RecordPayments(ctx, tid, []PaymentInput{
		{Method: model.PayCard, Amount: 70},
		{Method: model.PayVoucher, Amount: 30},
	})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if txn.Status == model.StatusCompleted {
		t.Fatal("visit completed before exit")
	}

	txn, err = m.RecordExit(ctx, tid)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if txn.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed on settled exit", txn.Status)
	}

	// No further mutations once completed.
	if _, err := m.RecordPayments(ctx, tid, []PaymentInput{{Method: model.PayCash, Amount: 1}}); !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := m.RecordExit(ctx, tid); !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state on second exit, got %v", err)
	}
}

func TestRecordPaymentsValidation(t *testing.T) {
	m, _, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.RecordPayments(ctx, 1, nil); !model.IsValidation(err) {
		t.Fatalf("expected validation error for empty payments, got %v", err)
	}
	if _, err := m.RecordPayments(ctx, 1, []PaymentInput{{Method: model.PayCash, Amount: 0}}); !model.IsValidation(err) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
	if _, err := m.RecordPayments(ctx, 1, []PaymentInput{{Method: "cheque", Amount: 10}}); !model.IsValidation(err) {
		t.Fatalf("expected validation error for unknown method, got %v", err)
	}
}
