package world

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStore records persistence calls. Saves and rotations are signalled on
// channels because the world issues them from worker goroutines.
type fakeStore struct {
	mu      sync.Mutex
	next    time.Time
	found   bool
	loadErr error

	saved         []time.Time
	rotated       []time.Time
	uptimeInserts int
	uptimeUpdates int

	saves   chan time.Time
	rotates chan time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saves:   make(chan time.Time, 8),
		rotates: make(chan time.Time, 8),
	}
}

func (s *fakeStore) LoadNextMaintenance(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.found, s.loadErr
}

func (s *fakeStore) SaveNextMaintenance(ctx context.Context, next time.Time) error {
	s.mu.Lock()
	s.saved = append(s.saved, next)
	s.mu.Unlock()
	s.saves <- next
	return nil
}

func (s *fakeStore) RotateStandings(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	s.rotated = append(s.rotated, cutoff)
	s.mu.Unlock()
	s.rotates <- cutoff
	return nil
}

func (s *fakeStore) InsertUptime(ctx context.Context, start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptimeInserts++
	return nil
}

func (s *fakeStore) UpdateUptime(ctx context.Context, start time.Time, uptime time.Duration, maxActive int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptimeUpdates++
	return nil
}

func waitTime(t *testing.T, ch <-chan time.Time, what string) time.Time {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return time.Time{}
	}
}

// Wednesday 04:00, the weekly window used throughout.
const testMaintenanceSpec = "0 4 * * 3"

func newMaintenanceWorld(t *testing.T, store *fakeStore, bootTime time.Time) (*World, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: bootTime}
	w, err := New(context.Background(), Config{MaintenanceSchedule: testMaintenanceSpec}, Deps{
		Clock: clock,
		Store: store,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w, clock
}

func TestMaintenanceSeedsWindowWhenAbsent(t *testing.T) {
	store := newFakeStore()
	boot := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC) // Tuesday evening
	w, _ := newMaintenanceWorld(t, store, boot)

	want := time.Date(2023, 11, 15, 4, 0, 0, 0, time.UTC)
	if got := w.NextMaintenance(); !got.Equal(want) {
		t.Fatalf("expected seeded window %v, got %v", want, got)
	}
	if len(store.saved) != 1 || !store.saved[0].Equal(want) {
		t.Fatalf("expected window persisted once, saved=%v", store.saved)
	}
	if len(store.rotated) != 0 {
		t.Fatalf("seeding must not rotate standings")
	}
}

func TestMaintenanceBootDueAdvancesWithoutRestart(t *testing.T) {
	store := newFakeStore()
	store.found = true
	store.next = time.Date(2023, 11, 14, 4, 0, 0, 0, time.UTC) // today

	boot := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)
	w, _ := newMaintenanceWorld(t, store, boot)

	if w.shutdown.Pending() || w.shutdown.Stopped() {
		t.Fatalf("boot-due window must not request a restart")
	}
	want := time.Date(2023, 11, 15, 4, 0, 0, 0, time.UTC)
	if got := w.NextMaintenance(); !got.Equal(want) {
		t.Fatalf("expected window advanced to %v, got %v", want, got)
	}
	if len(store.rotated) != 1 || !store.rotated[0].Equal(store.next) {
		t.Fatalf("expected standings rotated at old window, got %v", store.rotated)
	}
	if len(store.saved) != 1 || !store.saved[0].Equal(want) {
		t.Fatalf("expected advanced window persisted, saved=%v", store.saved)
	}
}

func TestMaintenanceNormalizesForwardPastMissedPeriods(t *testing.T) {
	store := newFakeStore()
	store.found = true
	store.next = time.Date(2023, 10, 25, 4, 0, 0, 0, time.UTC) // three weeks stale

	boot := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)
	w, _ := newMaintenanceWorld(t, store, boot)

	// The window lands on the next real occurrence, not on a replay of every
	// missed one.
	want := time.Date(2023, 11, 15, 4, 0, 0, 0, time.UTC)
	if got := w.NextMaintenance(); !got.Equal(want) {
		t.Fatalf("expected window normalized to %v, got %v", want, got)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one persist, got %d", len(store.saved))
	}
}

func TestMaintenanceGuardCountsDownThenFires(t *testing.T) {
	store := newFakeStore()
	store.found = true
	store.next = time.Date(2023, 11, 15, 4, 0, 0, 0, time.UTC)

	boot := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)
	w, clock := newMaintenanceWorld(t, store, boot)

	if w.shutdown.Pending() {
		t.Fatalf("window not yet due, nothing should be pending")
	}

	// Jump past the window day. The guard eats the first second of cycles
	// before anything fires.
	clock.advance(30 * time.Hour)
	for i := 0; i < 19; i++ {
		cycle(w, clock, 50*time.Millisecond)
	}
	if w.shutdown.Pending() {
		t.Fatalf("restart requested before the guard ran out")
	}

	cycle(w, clock, 50*time.Millisecond)
	if !w.shutdown.Pending() {
		t.Fatalf("expected restart request once the guard ran out")
	}
	if got := w.shutdown.Remaining(); got != DefaultMaintenanceDelaySeconds {
		t.Fatalf("expected %d second countdown, got %d", DefaultMaintenanceDelaySeconds, got)
	}
	if !w.shutdown.Restart() {
		t.Fatalf("maintenance restart lost its restart mask")
	}
	if w.shutdown.Code() != ExitRestart {
		t.Fatalf("expected exit code %d, got %d", ExitRestart, w.shutdown.Code())
	}
	if w.maintenance.guard != maintenanceGuardReset {
		t.Fatalf("expected guard reset to %v, got %v", maintenanceGuardReset, w.maintenance.guard)
	}

	nextWant := time.Date(2023, 11, 22, 4, 0, 0, 0, time.UTC)
	if got := w.NextMaintenance(); !got.Equal(nextWant) {
		t.Fatalf("expected window advanced to %v, got %v", nextWant, got)
	}

	cutoff := waitTime(t, store.rotates, "standings rotation")
	if !cutoff.Equal(time.Date(2023, 11, 15, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected rotation cutoff %v", cutoff)
	}
	saved := waitTime(t, store.saves, "window persist")
	if !saved.Equal(nextWant) {
		t.Fatalf("unexpected persisted window %v", saved)
	}

	// The advanced window must not re-trigger on the same day.
	w.CancelShutdown()
	for i := 0; i < 40; i++ {
		cycle(w, clock, 50*time.Millisecond)
	}
	if w.shutdown.Pending() {
		t.Fatalf("window re-triggered after advancing")
	}
}

func TestMaintenanceDisabledWithoutSchedule(t *testing.T) {
	store := newFakeStore()
	clock := &fakeClock{now: time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)}
	w, err := New(context.Background(), Config{}, Deps{Clock: clock, Store: store})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !w.NextMaintenance().IsZero() {
		t.Fatalf("disabled maintenance reported a window")
	}
	if len(store.saved) != 0 {
		t.Fatalf("disabled maintenance persisted a window")
	}
	for i := 0; i < 10; i++ {
		cycle(w, clock, 50*time.Millisecond)
	}
	if w.shutdown.Pending() {
		t.Fatalf("disabled maintenance requested a restart")
	}
}

func TestMaintenanceLoadErrorFailsBoot(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("disk on fire")

	clock := &fakeClock{now: time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)}
	_, err := New(context.Background(), Config{MaintenanceSchedule: testMaintenanceSpec}, Deps{
		Clock: clock,
		Store: store,
	})
	if err == nil {
		t.Fatalf("expected boot failure on load error")
	}
}

func TestMaintenanceRejectsBadSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)}
	_, err := New(context.Background(), Config{MaintenanceSchedule: "every other blue moon"}, Deps{Clock: clock})
	if err == nil {
		t.Fatalf("expected error for unparseable schedule")
	}
}
