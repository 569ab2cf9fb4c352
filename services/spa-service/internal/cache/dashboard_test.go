package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/iamacowMooMoo/spaops/libs/cachex"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/availability"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/storage"
)

type memKV struct {
	data map[string][]byte
	fail bool
	sets int
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.fail {
		return nil, errors.New("kv down")
	}
	raw, ok := m.data[key]
	if !ok {
		return nil, cachex.ErrMiss
	}
	return raw, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.fail {
		return errors.New("kv down")
	}
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	if m.fail {
		return errors.New("kv down")
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memKV) TTL(_ context.Context, _ string) (time.Duration, error) {
	return DefaultTTL, nil
}

type fakeSource struct {
	staff []availability.StaffEntry
	rooms []model.Room
	busy  []availability.BusyEntry
	calls int
}

func (f *fakeSource) AvailableStaffNow(context.Context) ([]availability.StaffEntry, error) {
	f.calls++
	return f.staff, nil
}

func (f *fakeSource) AvailableRoomsNow(context.Context) ([]model.Room, error) {
	f.calls++
	return f.rooms, nil
}

func (f *fakeSource) BusyNow(context.Context) ([]availability.BusyEntry, error) {
	f.calls++
	return f.busy, nil
}

type fakeVisits struct {
	visits []storage.ActiveVisit
	calls  int
}

func (f *fakeVisits) ListActiveVisits(context.Context) ([]storage.ActiveVisit, error) {
	f.calls++
	return f.visits, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadThroughMissThenHit(t *testing.T) {
	kv := newMemKV()
	src := &fakeSource{staff: []availability.StaffEntry{{EID: 1, WorkName: "Mai", RoleType: "therapist"}}}
	d := NewDashboard(kv, src, &fakeVisits{}, 0, testLogger())

	got, fromCache, err := d.AvailableStaff(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if fromCache {
		t.Fatal("first read should be a miss")
	}
	if len(got) != 1 || got[0].WorkName != "Mai" {
		t.Fatalf("unexpected staff: %+v", got)
	}

	got, fromCache, err = d.AvailableStaff(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !fromCache {
		t.Fatal("second read should hit the cache")
	}
	if len(got) != 1 || got[0].WorkName != "Mai" {
		t.Fatalf("unexpected cached staff: %+v", got)
	}
	if src.calls != 1 {
		t.Fatalf("source computed %d times, want 1", src.calls)
	}
}

// Repeated invalidate-and-refresh with no underlying writes must leave the
// cached content identical.
func TestRefreshIsIdempotent(t *testing.T) {
	kv := newMemKV()
	src := &fakeSource{
		staff: []availability.StaffEntry{{EID: 7, WorkName: "Lin", RoleType: "therapist"}},
		rooms: []model.Room{{RID: 2, RoomName: "Lotus"}},
	}
	visits := &fakeVisits{visits: []storage.ActiveVisit{{TID: 11, CustomerName: "A. Customer"}}}
	d := NewDashboard(kv, src, visits, 0, testLogger())

	if err := d.WarmAll(context.Background()); err != nil {
		t.Fatalf("warm: %v", err)
	}
	first := map[string]string{}
	for k, v := range kv.data {
		first[k] = string(v)
	}

	for i := 0; i < 3; i++ {
		if err := d.RefreshAvailability(context.Background()); err != nil {
			t.Fatalf("refresh availability: %v", err)
		}
		if err := d.RefreshTransactions(context.Background()); err != nil {
			t.Fatalf("refresh transactions: %v", err)
		}
	}

	if len(kv.data) != len(first) {
		t.Fatalf("key count changed: %d -> %d", len(first), len(kv.data))
	}
	for k, want := range first {
		if got := string(kv.data[k]); got != want {
			t.Fatalf("key %s changed after refresh:\n got %s\nwant %s", k, got, want)
		}
	}
}

func TestReadDegradesWhenCacheDown(t *testing.T) {
	kv := newMemKV()
	kv.fail = true
	src := &fakeSource{rooms: []model.Room{{RID: 3, RoomName: "Orchid"}}}
	d := NewDashboard(kv, src, &fakeVisits{}, 0, testLogger())

	got, fromCache, err := d.AvailableRooms(context.Background())
	if err != nil {
		t.Fatalf("read with cache down: %v", err)
	}
	if fromCache {
		t.Fatal("cannot be a cache hit while kv is down")
	}
	if len(got) != 1 || got[0].RoomName != "Orchid" {
		t.Fatalf("unexpected rooms: %+v", got)
	}
}

func TestCorruptEntryIsRecomputed(t *testing.T) {
	kv := newMemKV()
	kv.data[KeyBusy] = []byte("{not json")
	src := &fakeSource{busy: []availability.BusyEntry{{TherapistName: "Lin", RoomName: "Lotus", MinutesLeft: 12}}}
	d := NewDashboard(kv, src, &fakeVisits{}, 0, testLogger())

	got, fromCache, err := d.Busy(context.Background())
	if err != nil {
		t.Fatalf("read corrupt entry: %v", err)
	}
	if fromCache {
		t.Fatal("corrupt entry must not count as a hit")
	}
	if len(got) != 1 || got[0].TherapistName != "Lin" {
		t.Fatalf("unexpected busy list: %+v", got)
	}
	if kv.sets == 0 {
		t.Fatal("recomputed value was not stored back")
	}
}
