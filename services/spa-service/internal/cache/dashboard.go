// Package cache keeps the cashier dashboard's read views in Redis under a
// single global keyspace: every cashier shares one shop-floor view, so keys
// are fixed logical names, never per-session. Writes that change occupancy
// invalidate and immediately repopulate the affected entries so the next read
// is a guaranteed hit. The cache is disposable: if Redis is unreachable every
// read falls back to computing directly from the ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/iamacowMooMoo/spaops/libs/cachex"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/availability"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

// Global cache keys, shared across all cashiers.
const (
	KeyTransactions = "spa:transactions:active:global"
	KeyStaff        = "spa:availability:staff"
	KeyRooms        = "spa:availability:rooms"
	KeyBusy         = "spa:availability:busy"
)

// DefaultTTL matches the reference deployment: the dashboard tolerates
// 30 minutes of staleness at worst, and mutations refresh eagerly anyway.
const DefaultTTL = 30 * time.Minute

// KV is the key/value surface the cache needs; *cachex.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// AvailabilitySource computes the availability views; *availability.Engine
// satisfies it.
type AvailabilitySource interface {
	AvailableStaffNow(ctx context.Context) ([]availability.StaffEntry, error)
	AvailableRoomsNow(ctx context.Context) ([]model.Room, error)
	BusyNow(ctx context.Context) ([]availability.BusyEntry, error)
}

// VisitSource lists live visits; *storage.Store satisfies it.
type VisitSource interface {
	ListActiveVisits(ctx context.Context) ([]storage.ActiveVisit, error)
}

type Dashboard struct {
	kv     KV
	src    AvailabilitySource
	visits VisitSource
	ttl    time.Duration
	logger *slog.Logger
}

func NewDashboard(kv KV, src AvailabilitySource, visits VisitSource, ttl time.Duration, logger *slog.Logger) *Dashboard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Dashboard{kv: kv, src: src, visits: visits, ttl: ttl, logger: logger}
}

// readThrough returns the cached value for key, or computes it, stores it
// with the TTL and returns it. Cache errors degrade to a direct compute; the
// bool reports whether the value came from the cache.
func readThrough[T any](ctx context.Context, d *Dashboard, key string, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if d.kv != nil {
		raw, err := d.kv.Get(ctx, key)
		switch {
		case err == nil:
			var v T
			if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
				return v, true, nil
			}
			// Corrupt entry: drop it and recompute.
			_ = d.kv.Delete(ctx, key)
		case !errors.Is(err, cachex.ErrMiss):
			d.logger.Warn("cache read failed, computing from store", "key", key, "err", err)
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, false, err
	}
	d.store(ctx, key, v)
	return v, false, nil
}

func (d *Dashboard) store(ctx context.Context, key string, v any) {
	if d.kv == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		d.logger.Error("cache serialize failed", "key", key, "err", err)
		return
	}
	if err := d.kv.SetWithTTL(ctx, key, raw, d.ttl); err != nil {
		d.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

func (d *Dashboard) ActiveVisits(ctx context.Context) ([]storage.ActiveVisit, bool, error) {
	return readThrough(ctx, d, KeyTransactions, d.visits.ListActiveVisits)
}

func (d *Dashboard) AvailableStaff(ctx context.Context) ([]availability.StaffEntry, bool, error) {
	return readThrough(ctx, d, KeyStaff, d.src.AvailableStaffNow)
}

func (d *Dashboard) AvailableRooms(ctx context.Context) ([]model.Room, bool, error) {
	return readThrough(ctx, d, KeyRooms, d.src.AvailableRoomsNow)
}

func (d *Dashboard) Busy(ctx context.Context) ([]availability.BusyEntry, bool, error) {
	return readThrough(ctx, d, KeyBusy, d.src.BusyNow)
}

// RefreshAvailability invalidates the three availability entries and
// repopulates them immediately, paying the recompute once at write time so
// the next dashboard read hits.
func (d *Dashboard) RefreshAvailability(ctx context.Context) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.Delete(ctx, KeyStaff, KeyRooms, KeyBusy); err != nil {
		return err
	}
	staff, err := d.src.AvailableStaffNow(ctx)
	if err != nil {
		return err
	}
	d.store(ctx, KeyStaff, staff)

	rooms, err := d.src.AvailableRoomsNow(ctx)
	if err != nil {
		return err
	}
	d.store(ctx, KeyRooms, rooms)

	busy, err := d.src.BusyNow(ctx)
	if err != nil {
		return err
	}
	d.store(ctx, KeyBusy, busy)
	return nil
}

// RefreshTransactions invalidates and repopulates the active-visits entry.
func (d *Dashboard) RefreshTransactions(ctx context.Context) error {
	if d.kv == nil {
		return nil
	}
	if err := d.kv.Delete(ctx, KeyTransactions); err != nil {
		return err
	}
	visits, err := d.visits.ListActiveVisits(ctx)
	if err != nil {
		return err
	}
	d.store(ctx, KeyTransactions, visits)
	return nil
}

// WarmAll populates every entry; manual maintenance, not steady-state.
func (d *Dashboard) WarmAll(ctx context.Context) error {
	if err := d.RefreshTransactions(ctx); err != nil {
		return err
	}
	return d.RefreshAvailability(ctx)
}

type KeyStatus struct {
	Key        string `json:"key"`
	Exists     bool   `json:"exists"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// Debug reports exists/ttl per key for the maintenance endpoint.
func (d *Dashboard) Debug(ctx context.Context) ([]KeyStatus, error) {
	if d.kv == nil {
		return nil, errors.New("cache not configured")
	}
	keys := []string{KeyTransactions, KeyStaff, KeyRooms, KeyBusy}
	out := make([]KeyStatus, 0, len(keys))
	for _, key := range keys {
		exists, err := d.kv.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		ttl, err := d.kv.TTL(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyStatus{Key: key, Exists: exists, TTLSeconds: int64(ttl.Seconds())})
	}
	return out, nil
}
