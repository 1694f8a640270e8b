package world

import "time"

// StatusSnapshot is the read-only view of the world published once per
// cycle. Any goroutine may read it through Status; only the world goroutine
// writes it.
type StatusSnapshot struct {
	Tick              uint64        `json:"tick"`
	StartTime         time.Time     `json:"startTime"`
	GameTime          time.Time     `json:"gameTime"`
	Uptime            time.Duration `json:"uptime"`
	ActiveSessions    int           `json:"activeSessions"`
	QueuedSessions    int           `json:"queuedSessions"`
	MaxActiveSessions int           `json:"maxActiveSessions"`
	MaxQueuedSessions int           `json:"maxQueuedSessions"`
	Capacity          uint32        `json:"capacity"`
	PopulationRatio   float64       `json:"populationRatio"`
	ShutdownPhase     string        `json:"shutdownPhase"`
	ShutdownRemaining uint32        `json:"shutdownRemaining,omitempty"`
	ShutdownRestart   bool          `json:"shutdownRestart,omitempty"`
	NextMaintenance   time.Time     `json:"nextMaintenance,omitzero"`
}

func (w *World) publishStatus() {
	snap := StatusSnapshot{
		Tick:              w.tick,
		StartTime:         w.startTime,
		GameTime:          w.gameTime,
		Uptime:            w.gameTime.Sub(w.startTime),
		ActiveSessions:    w.activeSessionCount(),
		QueuedSessions:    w.queuedSessionCount(),
		MaxActiveSessions: w.maxActive,
		MaxQueuedSessions: w.maxQueued,
		Capacity:          w.capacity,
		PopulationRatio:   w.populationRatio(),
		ShutdownPhase:     w.shutdown.Phase().String(),
		NextMaintenance:   w.maintenance.next,
	}
	if w.shutdown.Pending() {
		snap.ShutdownRemaining = w.shutdown.Remaining()
		snap.ShutdownRestart = w.shutdown.Restart()
	}
	w.status.Store(snap)

	w.deps.Metrics.Store(metricSessionsActive, uint64(snap.ActiveSessions))
	w.deps.Metrics.Store(metricSessionsQueued, uint64(snap.QueuedSessions))
}

// Status returns the most recently published snapshot. Safe from any
// goroutine.
func (w *World) Status() StatusSnapshot {
	if v := w.status.Load(); v != nil {
		return v.(StatusSnapshot)
	}
	return StatusSnapshot{}
}
