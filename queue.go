package world

import (
	"context"

	"github.com/WOW112/jingdianwow2/logging"
	"github.com/WOW112/jingdianwow2/logging/lifecycle"
)

// queuedPosition reports the 1-based position of a session in the wait
// queue, or 0 when it is not queued. Positions are always derived by scan so
// they can never go stale.
func (w *World) queuedPosition(s *Session) int {
	for i, qs := range w.queue {
		if qs == s {
			return i + 1
		}
	}
	return 0
}

// addQueuedSession appends a session to the wait queue and tells the client
// where it stands.
func (w *World) addQueuedSession(s *Session) {
	s.setQueued(true)
	w.queue = append(w.queue, s)
	position := w.queuedPosition(s)
	s.SendAuthWait(position)
	lifecycle.SessionQueued(context.Background(), w.deps.Publisher, w.tick, logging.AccountRef(s.AccountID()), lifecycle.QueuedPayload{
		Position: position,
		Queued:   len(w.queue),
	}, nil)
}

// removeQueuedSession takes a session out of the wait queue if it is there,
// then runs queue maintenance: as long as a slot is free the head is
// promoted and notified with position zero, and every entry still waiting is
// renumbered from one. The active count is sampled before the caller excises
// the session from the registry, so a dying active session frees its slot
// here and a dying queued one does not.
//
// Returns whether the session was actually queued.
func (w *World) removeQueuedSession(s *Session) bool {
	active := w.activeSessionCount()

	found := false
	for i, qs := range w.queue {
		if qs == s {
			s.setQueued(false)
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			found = true
			break
		}
	}

	// The caller is about to drop an active session from the registry.
	if !found && active > 0 {
		active--
	}

	for len(w.queue) > 0 && w.hasFreeSlot(active) {
		head := w.queue[0]
		w.queue = w.queue[1:]
		head.setQueued(false)
		head.SendAuthWait(0)
		active++
		lifecycle.SessionPromoted(context.Background(), w.deps.Publisher, w.tick, logging.AccountRef(head.AccountID()), nil)
	}

	for i, qs := range w.queue {
		qs.SendAuthWait(i + 1)
	}

	return found
}

func (w *World) hasFreeSlot(active int) bool {
	limit := w.capacity
	return limit == 0 || active < int(limit)
}
