package world

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/WOW112/jingdianwow2/logging/ops"
)

// maintenanceScheduler restarts the world once the persisted maintenance day
// arrives. The window has day granularity: any moment on or after the stored
// date counts as due. A short guard countdown separates the date check from
// the restart so a due window never fires off a partial first cycle.
type maintenanceScheduler struct {
	next     time.Time
	guard    time.Duration
	schedule cron.Schedule
	delay    uint32
}

func newMaintenanceScheduler(spec string, delaySeconds uint32, guard time.Duration) (*maintenanceScheduler, error) {
	if spec == "" {
		return &maintenanceScheduler{}, nil
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse maintenance schedule %q: %w", spec, err)
	}
	if guard <= 0 {
		guard = DefaultMaintenanceGuard
	}
	if delaySeconds == 0 {
		delaySeconds = DefaultMaintenanceDelaySeconds
	}
	return &maintenanceScheduler{
		schedule: schedule,
		guard:    guard,
		delay:    delaySeconds,
	}, nil
}

func (m *maintenanceScheduler) enabled() bool {
	return m.schedule != nil
}

// due reports whether the calendar day of now is on or past the stored
// window.
func (m *maintenanceScheduler) due(now time.Time) bool {
	if !m.enabled() || m.next.IsZero() {
		return false
	}
	return !beforeDay(now, m.next)
}

// advance walks the recurrence forward until it lands on a strictly future
// day, so a window missed several periods ago normalizes to the next real
// occurrence instead of replaying every missed one.
func (m *maintenanceScheduler) advance(now time.Time) time.Time {
	next := m.schedule.Next(now)
	for !afterDay(next, now) {
		next = m.schedule.Next(next)
	}
	m.next = next
	return next
}

// beforeDay reports whether a's calendar day precedes b's.
func beforeDay(a, b time.Time) bool {
	if a.Year() != b.Year() {
		return a.Year() < b.Year()
	}
	return a.YearDay() < b.YearDay()
}

// afterDay reports whether a's calendar day follows b's.
func afterDay(a, b time.Time) bool {
	return beforeDay(b, a)
}

// initMaintenance loads or seeds the persisted window. Runs synchronously at
// boot, before the first cycle. A window already due at boot advances
// without a restart request: the process just started, restarting it again
// would loop.
func (w *World) initMaintenance(ctx context.Context) error {
	m := w.maintenance
	if !m.enabled() || w.deps.Store == nil {
		return nil
	}

	now := w.deps.Clock.Now()
	next, ok, err := w.deps.Store.LoadNextMaintenance(ctx)
	if err != nil {
		return fmt.Errorf("load maintenance window: %w", err)
	}
	if !ok {
		m.advance(now)
		if err := w.deps.Store.SaveNextMaintenance(ctx, m.next); err != nil {
			return fmt.Errorf("seed maintenance window: %w", err)
		}
		ops.MaintenanceScheduled(ctx, w.deps.Publisher, w.tick, ops.MaintenancePayload{NextDate: m.next.Unix()})
		return nil
	}

	m.next = next
	if m.due(now) {
		cutoff := m.next
		m.advance(now)
		if err := w.deps.Store.RotateStandings(ctx, cutoff); err != nil {
			return fmt.Errorf("rotate standings: %w", err)
		}
		if err := w.deps.Store.SaveNextMaintenance(ctx, m.next); err != nil {
			return fmt.Errorf("persist maintenance window: %w", err)
		}
		ops.MaintenanceScheduled(ctx, w.deps.Publisher, w.tick, ops.MaintenancePayload{NextDate: m.next.Unix()})
	}
	return nil
}

// evaluateMaintenance is the per-cycle window check. Once the stored day
// arrives the guard counts down by cycle deltas; on expiry the world gets a
// restart request and the window rolls forward so it cannot re-trigger.
func (w *World) evaluateMaintenance(diff time.Duration, now time.Time) {
	m := w.maintenance
	if !m.due(now) {
		return
	}

	if m.guard > diff {
		m.guard -= diff
		return
	}

	w.RequestShutdown(m.delay, ShutdownMaskRestart, ExitRestart)
	ops.MaintenanceTriggered(context.Background(), w.deps.Publisher, w.tick, ops.MaintenancePayload{
		NextDate:     m.next.Unix(),
		DelaySeconds: m.delay,
	})

	cutoff := m.next
	next := m.advance(now)
	m.guard = maintenanceGuardReset

	if w.deps.Store != nil {
		store := w.deps.Store
		w.async("standings rotation", func(ctx context.Context) error {
			return store.RotateStandings(ctx, cutoff)
		})
		w.async("maintenance window persist", func(ctx context.Context) error {
			return store.SaveNextMaintenance(ctx, next)
		})
	}
	ops.MaintenanceScheduled(context.Background(), w.deps.Publisher, w.tick, ops.MaintenancePayload{NextDate: next.Unix()})
}
