// Package world implements the control core of the game server: session
// admission with a capacity-bounded wait queue, the fixed-cadence update
// cycle that orders every periodic subsystem, and the shutdown, restart and
// maintenance machinery around it.
//
// A single goroutine owns all world state. Transports, the admin surface and
// async storage results cross into it through dedicated staging queues that
// the cycle drains at fixed points.
package world

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
	"github.com/WOW112/jingdianwow2/logging"
	"github.com/WOW112/jingdianwow2/logging/ops"
)

// Store persists control state across runs. Implementations must tolerate
// concurrent calls; the world invokes them from worker goroutines.
type Store interface {
	LoadNextMaintenance(ctx context.Context) (next time.Time, found bool, err error)
	SaveNextMaintenance(ctx context.Context, next time.Time) error
	RotateStandings(ctx context.Context, cutoff time.Time) error
	InsertUptime(ctx context.Context, start time.Time) error
	UpdateUptime(ctx context.Context, start time.Time, uptime time.Duration, maxActive int) error
}

// Directory publishes realm occupancy for the login front end.
type Directory interface {
	PublishPopulation(ctx context.Context, ratio float64) error
	PublishCounts(ctx context.Context, active, queued int) error
}

// MapUpdater advances the game simulation. The world hands it the cycle
// delta and nothing else.
type MapUpdater interface {
	Update(diff time.Duration)
}

// EconomySettler settles pending economy batches (expired listings, escrow
// returns) when the economy timer passes.
type EconomySettler interface {
	Settle(now time.Time)
}

// EventScheduler runs due scheduled events and reports the delay until the
// next one. The returned delay replaces the event timer's interval verbatim;
// a non-positive delay means the next event is already due, so the delegate
// runs again every cycle until it reports a real delay.
type EventScheduler interface {
	Update(now time.Time) time.Duration
}

// Config carries the resolved tuning values for a world instance.
type Config struct {
	TickRate        int
	CatchupMaxTicks int
	Capacity        uint32
	CommandCapacity int

	UptimeInterval        time.Duration
	PopulationInterval    time.Duration
	EconomyInterval       time.Duration
	EventInterval         time.Duration
	AutoBroadcastInterval time.Duration

	MaintenanceSchedule string
	MaintenanceDelay    uint32
	MaintenanceGuard    time.Duration
}

// normalized returns a config with defaults applied.
func (cfg Config) normalized() Config {
	n := cfg
	if n.TickRate <= 0 {
		n.TickRate = DefaultTickRate
	}
	if n.CatchupMaxTicks < 1 {
		n.CatchupMaxTicks = DefaultCatchupMaxTicks
	}
	if n.CommandCapacity <= 0 {
		n.CommandCapacity = DefaultCommandCapacity
	}
	if n.UptimeInterval <= 0 {
		n.UptimeInterval = DefaultUptimeInterval
	}
	if n.PopulationInterval <= 0 {
		n.PopulationInterval = DefaultPopulationInterval
	}
	if n.EconomyInterval <= 0 {
		n.EconomyInterval = time.Minute
	}
	if n.EventInterval <= 0 {
		n.EventInterval = 10 * time.Second
	}
	if n.MaintenanceDelay == 0 {
		n.MaintenanceDelay = DefaultMaintenanceDelaySeconds
	}
	if n.MaintenanceGuard <= 0 {
		n.MaintenanceGuard = DefaultMaintenanceGuard
	}
	return n
}

// Deps carries the world's collaborators. Zero values are tolerated
// everywhere: a nil delegate simply skips its cycle step.
type Deps struct {
	Clock     logging.Clock
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher

	Store     Store
	Directory Directory
	Catalog   Catalog
	Frames    FrameHandler
	Map       MapUpdater
	Economy   EconomySettler
	Events    EventScheduler
	Console   CommandExecutor
}

func (d Deps) normalized() Deps {
	n := d
	if n.Clock == nil {
		n.Clock = logging.SystemClock{}
	}
	if n.Logger == nil {
		n.Logger = telemetry.WrapLogger(log.Default())
	}
	if n.Metrics == nil {
		n.Metrics = telemetry.NopMetrics()
	}
	if n.Publisher == nil {
		n.Publisher = logging.NopPublisher()
	}
	return n
}

type scheduledTask struct {
	name  string
	timer *PeriodicTimer
	run   func(now time.Time)
}

// World owns the session registry, the wait queue, every periodic timer and
// the shutdown state machine. All fields below the staging queues belong to
// the single goroutine that calls Update.
type World struct {
	cfg  Config
	deps Deps

	tick      uint64
	startTime time.Time
	gameTime  time.Time

	capacity  uint32
	sessions  map[uint32]*Session
	queue     []*Session
	maxActive int
	maxQueued int

	intake    *sessionIntake
	callbacks *callbackQueue
	commands  *commandQueue

	shutdown    *ShutdownController
	maintenance *maintenanceScheduler

	tasks           []*scheduledTask
	uptimeTimer     *PeriodicTimer
	populationTimer *PeriodicTimer
	eventsTimer     *PeriodicTimer

	reapList     []*Session
	broadcastIdx int

	status atomic.Value
}

// New builds a world, loads its persisted maintenance window and records the
// uptime row for this run. The context only covers boot-time storage access.
func New(ctx context.Context, cfg Config, deps Deps) (*World, error) {
	cfg = cfg.normalized()
	deps = deps.normalized()

	w := &World{
		cfg:             cfg,
		deps:            deps,
		capacity:        cfg.Capacity,
		sessions:        make(map[uint32]*Session),
		intake:          newSessionIntake(deps.Metrics),
		callbacks:       newCallbackQueue(deps.Metrics),
		commands:        newCommandQueue(cfg.CommandCapacity, deps.Metrics),
		uptimeTimer:     NewPeriodicTimer(cfg.UptimeInterval),
		populationTimer: NewPeriodicTimer(cfg.PopulationInterval),
		eventsTimer:     NewPeriodicTimer(cfg.EventInterval),
	}
	w.startTime = deps.Clock.Now()
	w.gameTime = w.startTime

	w.shutdown = newShutdownController(w.activeAndQueuedSessionCount)
	w.shutdown.announce = w.announceShutdown
	w.shutdown.cancelled = func(restart bool) {
		w.announceShutdownCancelled(restart)
		ops.ShutdownCancelled(context.Background(), w.deps.Publisher, w.tick)
	}

	maintenance, err := newMaintenanceScheduler(cfg.MaintenanceSchedule, cfg.MaintenanceDelay, cfg.MaintenanceGuard)
	if err != nil {
		return nil, err
	}
	w.maintenance = maintenance

	if deps.Economy != nil {
		economy := deps.Economy
		w.Schedule("economy", cfg.EconomyInterval, func(now time.Time) {
			economy.Settle(now)
		})
	}
	if deps.Catalog != nil && cfg.AutoBroadcastInterval > 0 {
		w.Schedule("autobroadcast", cfg.AutoBroadcastInterval, func(time.Time) {
			w.autoBroadcast()
		})
	}

	if err := w.initMaintenance(ctx); err != nil {
		return nil, err
	}
	if deps.Store != nil {
		if err := deps.Store.InsertUptime(ctx, w.startTime); err != nil {
			return nil, err
		}
	}

	w.publishStatus()
	return w, nil
}

// Schedule registers a batch task run whenever its interval elapses. Tasks
// run in registration order during the gated-jobs step. Call before Run.
func (w *World) Schedule(name string, interval time.Duration, run func(now time.Time)) {
	if interval <= 0 || run == nil {
		return
	}
	w.tasks = append(w.tasks, &scheduledTask{
		name:  name,
		timer: NewPeriodicTimer(interval),
		run:   run,
	})
}

// Update runs one world cycle. Step order is load-bearing: time and the
// shutdown countdown first, async completions before anything that reads
// their results, admission before per-session updates, all delegates before
// the reaper, and admin commands dead last against a settled world.
func (w *World) Update(diff time.Duration) {
	w.tick++
	cycleStart := w.deps.Clock.Now()

	// 1. Time base: advance every registered timer, refresh game time and
	// tick the shutdown countdown by elapsed whole seconds.
	w.advanceTimers(diff)
	w.refreshGameTime()

	// 2. Async completions.
	for _, cb := range w.callbacks.Drain() {
		cb(w)
	}

	// 3. Admission, then per-session updates.
	w.admitPending()
	w.updateSessions(diff)

	// 4. Gated batch jobs.
	now := w.gameTime
	for _, task := range w.tasks {
		if task.timer.Passed() {
			task.timer.Reset()
			task.run(now)
		}
	}

	// 5. Map simulation.
	if w.deps.Map != nil {
		w.deps.Map.Update(diff)
	}

	// 6. Periodic bookkeeping.
	if w.uptimeTimer.Passed() {
		w.uptimeTimer.Reset()
		w.persistUptime()
	}
	if w.populationTimer.Passed() {
		w.populationTimer.Reset()
		w.publishCounts()
	}

	// 7. Self-adjusting scheduled events.
	if w.deps.Events != nil && w.eventsTimer.Passed() {
		w.eventsTimer.Reset()
		w.eventsTimer.SetInterval(w.deps.Events.Update(now))
	}

	// 8. Maintenance window.
	w.evaluateMaintenance(diff, now)

	// 9. Deferred destruction.
	w.reapDeferred()

	// 10. Admin commands.
	w.processCommands()

	w.publishStatus()
	w.deps.Metrics.Store(metricCycleMillis, uint64(w.deps.Clock.Now().Sub(cycleStart).Milliseconds()))
}

func (w *World) advanceTimers(diff time.Duration) {
	w.uptimeTimer.Update(diff)
	w.populationTimer.Update(diff)
	if w.deps.Events != nil {
		w.eventsTimer.Update(diff)
	}
	for _, task := range w.tasks {
		task.timer.Update(diff)
	}
}

// refreshGameTime moves the coarse time base forward and feeds whole elapsed
// seconds to the shutdown countdown. Sub-second cycles contribute nothing
// until the wall clock crosses a second boundary.
func (w *World) refreshGameTime() {
	now := w.deps.Clock.Now()
	elapsed := now.Unix() - w.gameTime.Unix()
	w.gameTime = now
	if elapsed > 0 {
		w.shutdown.Tick(uint32(elapsed))
	}
}

// RequestShutdown arms the countdown. Safe only on the world goroutine; use
// QueueCommand from elsewhere.
func (w *World) RequestShutdown(seconds uint32, mask ShutdownMask, code ExitCode) {
	if w.shutdown.Stopped() {
		return
	}
	w.shutdown.Request(seconds, mask, code)
	ops.ShutdownRequested(context.Background(), w.deps.Publisher, w.tick, ops.ShutdownPayload{
		Seconds:  seconds,
		Restart:  mask&ShutdownMaskRestart != 0,
		Idle:     mask&ShutdownMaskIdle != 0,
		ExitCode: int(code),
	})
}

// CancelShutdown revokes a pending countdown. Reports false when there was
// nothing to cancel.
func (w *World) CancelShutdown() bool {
	return w.shutdown.Cancel()
}

// ShutdownPhase reports the controller state.
func (w *World) ShutdownPhase() ShutdownPhase {
	return w.shutdown.Phase()
}

// SessionCounts reports live occupancy. Must run on the world goroutine;
// cross-thread readers use Status.
func (w *World) SessionCounts() (active, queued, maxActive, maxQueued int) {
	return w.activeSessionCount(), len(w.queue), w.maxActive, w.maxQueued
}

// NextMaintenance reports the persisted maintenance window, zero when
// maintenance is disabled.
func (w *World) NextMaintenance() time.Time {
	return w.maintenance.next
}

// Tick reports the current cycle ordinal.
func (w *World) Tick() uint64 {
	return w.tick
}

// StartTime reports when this world instance booted.
func (w *World) StartTime() time.Time {
	return w.startTime
}

// GameTime reports the coarse time base as of the last cycle.
func (w *World) GameTime() time.Time {
	return w.gameTime
}

func (w *World) persistUptime() {
	if w.deps.Store == nil {
		return
	}
	store := w.deps.Store
	start := w.startTime
	uptime := w.gameTime.Sub(w.startTime)
	maxActive := w.maxActive
	w.async("uptime update", func(ctx context.Context) error {
		return store.UpdateUptime(ctx, start, uptime, maxActive)
	})
}

func (w *World) publishCounts() {
	if w.deps.Directory == nil {
		return
	}
	dir := w.deps.Directory
	active, queued := w.activeSessionCount(), len(w.queue)
	w.async("occupancy publish", func(ctx context.Context) error {
		return dir.PublishCounts(ctx, active, queued)
	})
	if w.capacity > 0 {
		w.publishPopulation(w.populationRatio())
	}
}

// async runs fn off the world goroutine and surfaces its result through the
// callback queue, keeping storage and directory latency out of the cycle.
func (w *World) async(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
		defer cancel()
		err := fn(ctx)
		w.callbacks.Post(func(wd *World) {
			if err != nil {
				wd.deps.Logger.Printf("[world] %s failed: %v", op, err)
			}
		})
	}()
}
