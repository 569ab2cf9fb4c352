// Package visit owns the customer visit from entry to settled exit: opening
// the transaction, taking payments against it, and recording the exit.
// total_paid is always recomputed from the payment rows inside the same
// store transaction, never incremented in place.
package visit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/outbox"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

// Store is the slice of the ledger store the visit manager needs.
// *storage.Store satisfies it.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetCustomer(ctx context.Context, cid int64) (model.Customer, error)
	GetEmployee(ctx context.Context, eid int64) (model.Employee, error)
	CreateTransaction(ctx context.Context, tx pgx.Tx, cid, cashierEID int64) (int64, error)
	GetTransaction(ctx context.Context, tid int64) (model.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, tx pgx.Tx, tid int64) (model.Transaction, error)
	InsertPayment(ctx context.Context, tx pgx.Tx, tid int64, method string, amount float64) (int64, error)
	SumPayments(ctx context.Context, tx pgx.Tx, tid int64) (float64, error)
	SetTotalPaid(ctx context.Context, tx pgx.Tx, tid int64, totalPaid float64) error
	SetStatus(ctx context.Context, tx pgx.Tx, tid int64, status string) error
	RecordExit(ctx context.Context, tx pgx.Tx, tid int64, status string) (time.Time, error)
	ListItems(ctx context.Context, tid int64) ([]storage.ItemDetail, error)
	ListPayments(ctx context.Context, tid int64) ([]model.Payment, error)
}

// CacheRefresher rebuilds the active-visits cache after a committed mutation.
// *cache.Dashboard satisfies it.
type CacheRefresher interface {
	RefreshTransactions(ctx context.Context) error
}

// EventSink stores an outbox event in the same transaction as the mutation.
// *outbox.Repository satisfies it.
type EventSink interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Manager struct {
	store  Store
	dash   CacheRefresher
	outbox EventSink
	logger *slog.Logger
}

func NewManager(store Store, dash CacheRefresher, outboxRepo EventSink, logger *slog.Logger) *Manager {
	return &Manager{store: store, dash: dash, outbox: outboxRepo, logger: logger}
}

// PaymentInput is one tendered amount; a single bill can be split across
// methods (part card, part cash) in one call.
type PaymentInput struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// Detail is the full visit view the front desk works from.
type Detail struct {
	Transaction model.Transaction    `json:"transaction"`
	Items       []storage.ItemDetail `json:"items"`
	Payments    []model.Payment      `json:"payments"`
	Outstanding float64              `json:"outstanding"`
}

// Open starts a visit: a new transaction with zero totals and pending status.
func (m *Manager) Open(ctx context.Context, cid, cashierEID int64) (int64, error) {
	if _, err := m.store.GetCustomer(ctx, cid); err != nil {
		return 0, err
	}
	if _, err := m.store.GetEmployee(ctx, cashierEID); err != nil {
		return 0, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tid, err := m.store.CreateTransaction(ctx, tx, cid, cashierEID)
	if err != nil {
		return 0, err
	}
	if err := m.emit(ctx, tx, outbox.EventVisitOpened, tid, map[string]any{
		"tid":         tid,
		"cid":         cid,
		"cashier_eid": cashierEID,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	m.refreshTransactions(ctx)
	return tid, nil
}

// RecordPayments applies one or more payments to the visit. The stored
// total_paid is replaced with the sum over all payment rows. A visit only
// moves to completed when nothing is outstanding AND the exit has been
// recorded: a fully paid customer still on the premises keeps their current
// status.
func (m *Manager) RecordPayments(ctx context.Context, tid int64, payments []PaymentInput) (model.Transaction, error) {
	if len(payments) == 0 {
		return model.Transaction{}, &model.ValidationError{Reason: "at least one payment is required"}
	}
	for _, p := range payments {
		if p.Amount <= 0 {
			return model.Transaction{}, &model.ValidationError{Reason: "payment amount must be positive"}
		}
		if !validMethod(p.Method) {
			return model.Transaction{}, &model.ValidationError{Reason: "unknown payment method " + strconv.Quote(p.Method)}
		}
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn, err := m.store.GetTransactionForUpdate(ctx, tx, tid)
	if err != nil {
		return model.Transaction{}, err
	}
	if txn.Status == model.StatusCompleted {
		return model.Transaction{}, &model.InvalidStateError{Reason: "visit is already completed"}
	}

	for _, p := range payments {
		if _, err := m.store.InsertPayment(ctx, tx, tid, p.Method, p.Amount); err != nil {
			return model.Transaction{}, err
		}
	}
	totalPaid, err := m.store.SumPayments(ctx, tx, tid)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := m.store.SetTotalPaid(ctx, tx, tid, totalPaid); err != nil {
		return model.Transaction{}, err
	}
	txn.TotalPaid = totalPaid

	completed := shouldComplete(&txn)
	if completed {
		if err := m.store.SetStatus(ctx, tx, tid, model.StatusCompleted); err != nil {
			return model.Transaction{}, err
		}
		txn.Status = model.StatusCompleted
	}

	if err := m.emit(ctx, tx, outbox.EventVisitPaymentRecorded, tid, map[string]any{
		"tid":         tid,
		"total_paid":  totalPaid,
		"outstanding": txn.Outstanding(),
	}); err != nil {
		return model.Transaction{}, err
	}
	if completed {
		if err := m.emit(ctx, tx, outbox.EventVisitCompleted, tid, map[string]any{"tid": tid}); err != nil {
			return model.Transaction{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Transaction{}, err
	}

	m.refreshTransactions(ctx)
	return txn, nil
}

// RecordExit stamps the exit time. The visit completes only if the balance
// is settled; otherwise the exit is recorded and the status left alone, so
// the outstanding amount stays visible for follow-up.
func (m *Manager) RecordExit(ctx context.Context, tid int64) (model.Transaction, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn, err := m.store.GetTransactionForUpdate(ctx, tx, tid)
	if err != nil {
		return model.Transaction{}, err
	}
	if txn.ExitTime != nil {
		return model.Transaction{}, &model.InvalidStateError{Reason: "exit already recorded"}
	}

	status := txn.Status
	if txn.Outstanding() <= 0 {
		status = model.StatusCompleted
	}
	exitedAt, err := m.store.RecordExit(ctx, tx, tid, status)
	if err != nil {
		return model.Transaction{}, err
	}
	txn.ExitTime = &exitedAt
	txn.Status = status

	if status == model.StatusCompleted {
		if err := m.emit(ctx, tx, outbox.EventVisitCompleted, tid, map[string]any{"tid": tid}); err != nil {
			return model.Transaction{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Transaction{}, err
	}

	m.refreshTransactions(ctx)
	return txn, nil
}

// GetDetail assembles the visit, its booked items and its payments.
func (m *Manager) GetDetail(ctx context.Context, tid int64) (Detail, error) {
	txn, err := m.store.GetTransaction(ctx, tid)
	if err != nil {
		return Detail{}, err
	}
	items, err := m.store.ListItems(ctx, tid)
	if err != nil {
		return Detail{}, err
	}
	payments, err := m.store.ListPayments(ctx, tid)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		Transaction: txn,
		Items:       items,
		Payments:    payments,
		Outstanding: txn.Outstanding(),
	}, nil
}

// shouldComplete decides whether a payment settles and closes the visit.
// Both conditions are required: zero balance and a recorded exit.
func shouldComplete(txn *model.Transaction) bool {
	return txn.Outstanding() <= 0 && txn.ExitTime != nil
}

func validMethod(method string) bool {
	switch method {
	case model.PayCash, model.PayCard, model.PayQR, model.PayVoucher:
		return true
	}
	return false
}

func (m *Manager) refreshTransactions(ctx context.Context) {
	if m.dash == nil {
		return
	}
	if err := m.dash.RefreshTransactions(ctx); err != nil {
		m.logger.Warn("transactions cache refresh failed", "err", err)
	}
}

func (m *Manager) emit(ctx context.Context, tx pgx.Tx, eventType string, tid int64, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return m.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "transaction",
		AggregateID:   strconv.FormatInt(tid, 10),
		EventType:     eventType,
		Payload:       body,
	})
}
