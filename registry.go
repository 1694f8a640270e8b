package world

import (
	"context"
	"time"

	"github.com/WOW112/jingdianwow2/logging"
	"github.com/WOW112/jingdianwow2/logging/lifecycle"
)

// Enqueue hands a freshly authenticated session to the world. Safe to call
// from any goroutine; the session is admitted at the top of the next cycle.
func (w *World) Enqueue(s *Session) {
	w.intake.Add(s)
}

func (w *World) findSession(accountID uint32) *Session {
	return w.sessions[accountID]
}

// removeSession marks the holder of an account for kick. It refuses while
// the session is inside its login critical section, since tearing the
// session down mid-load corrupts the handover.
func (w *World) removeSession(accountID uint32) bool {
	if s := w.sessions[accountID]; s != nil {
		if s.Loading() {
			return false
		}
		s.Kick()
	}
	return true
}

// Remove requests removal of whichever session holds the account. The
// session is excised on its next per-session update. Must run on the world
// goroutine.
func (w *World) Remove(accountID uint32) bool {
	return w.removeSession(accountID)
}

// admitPending drains the intake and runs admission for each staged session
// in arrival order.
func (w *World) admitPending() {
	for _, s := range w.intake.Drain() {
		w.addSessionInternal(s)
	}
}

// addSessionInternal arbitrates one account taking a connection slot.
//
// Reconnection rules: an account already holding a session displaces it,
// unless the holder is mid-load, in which case the newcomer is refused
// instead. A displaced holder is destroyed at the end of this cycle. The
// newcomer never counts against its own admission check, except when it
// displaced a queued holder, whose queue departure already freed the count.
func (w *World) addSessionInternal(s *Session) {
	ctx := context.Background()

	if !w.removeSession(s.AccountID()) {
		s.Kick()
		w.deferDestroy(s)
		lifecycle.SessionRemoved(ctx, w.deps.Publisher, w.tick, logging.AccountRef(s.AccountID()), lifecycle.RemovedPayload{
			Reason: "reconnect_during_load",
		}, nil)
		return
	}

	decrease := true
	if old := w.findSession(s.AccountID()); old != nil {
		if w.removeQueuedSession(old) {
			decrease = false
		}
		w.deferDestroy(old)
		lifecycle.SessionReplaced(ctx, w.deps.Publisher, w.tick, logging.AccountRef(s.AccountID()), nil)
	}

	s.handler = w.deps.Frames
	w.sessions[s.AccountID()] = s

	total := len(w.sessions)
	limit := w.capacity
	if decrease {
		total--
	}

	if limit > 0 && uint32(total) >= limit && s.Security() == SecurityPlayer {
		w.addQueuedSession(s)
		w.updateMaxSessionCounters()
		return
	}

	s.SendAuthOK()
	w.updateMaxSessionCounters()

	if limit > 0 {
		w.publishPopulation(w.populationRatio())
	}

	lifecycle.SessionAdmitted(ctx, w.deps.Publisher, w.tick, logging.AccountRef(s.AccountID()), lifecycle.AdmittedPayload{
		Active:   w.activeSessionCount(),
		Queued:   len(w.queue),
		Capacity: limit,
		Ratio:    w.populationRatio(),
	}, nil)
}

// updateSessions gives every session the cycle delta and excises the ones
// that report terminal. Excising an active session frees a slot, so queue
// maintenance runs before the registry drop.
func (w *World) updateSessions(diff time.Duration) {
	for accountID, s := range w.sessions {
		if s.Update(diff) {
			continue
		}
		wasQueued := w.removeQueuedSession(s)
		delete(w.sessions, accountID)
		w.deferDestroy(s)
		lifecycle.SessionRemoved(context.Background(), w.deps.Publisher, w.tick, logging.AccountRef(accountID), lifecycle.RemovedPayload{
			Reason:    "terminal",
			WasQueued: wasQueued,
		}, nil)
	}
}

// kickAll marks every session for removal. Used during final teardown.
func (w *World) kickAll() {
	for _, s := range w.sessions {
		s.Kick()
	}
}

func (w *World) activeSessionCount() int {
	return len(w.sessions) - len(w.queue)
}

func (w *World) queuedSessionCount() int {
	return len(w.queue)
}

func (w *World) activeAndQueuedSessionCount() int {
	return len(w.sessions)
}

func (w *World) updateMaxSessionCounters() {
	if active := w.activeSessionCount(); active > w.maxActive {
		w.maxActive = active
	}
	if queued := len(w.queue); queued > w.maxQueued {
		w.maxQueued = queued
	}
	w.deps.Metrics.Store(metricSessionsMax, uint64(w.maxActive))
	w.deps.Metrics.Store(metricQueuedMax, uint64(w.maxQueued))
}

func (w *World) populationRatio() float64 {
	if w.capacity == 0 {
		return 0
	}
	return 2 * float64(w.activeSessionCount()) / float64(w.capacity)
}

// publishPopulation pushes the population ratio to the realm directory off
// the world goroutine. Failures surface through the callback queue.
func (w *World) publishPopulation(ratio float64) {
	if w.deps.Directory == nil {
		return
	}
	dir := w.deps.Directory
	w.async("population publish", func(ctx context.Context) error {
		return dir.PublishPopulation(ctx, ratio)
	})
}

// SetCapacity updates the admission limit. Zero means unbounded. Queued
// sessions are promoted by the next queue maintenance pass, never
// retroactively demoted. Must run on the world goroutine.
func (w *World) SetCapacity(limit uint32) {
	w.capacity = limit
}

// Capacity reports the current admission limit.
func (w *World) Capacity() uint32 {
	return w.capacity
}

// deferDestroy parks a session for final teardown at the end of the cycle.
func (w *World) deferDestroy(s *Session) {
	w.reapList = append(w.reapList, s)
}

// reapDeferred destroys everything parked during this cycle. Runs after all
// delegates so none of them can observe a dangling transport.
func (w *World) reapDeferred() {
	if len(w.reapList) == 0 {
		return
	}
	for _, s := range w.reapList {
		s.destroy()
	}
	w.reapList = w.reapList[:0]
}
