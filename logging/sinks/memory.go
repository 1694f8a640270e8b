package sinks

import (
	"context"
	"sync"

	"github.com/WOW112/jingdianwow2/logging"
)

// MemorySink buffers events in arrival order. Router tests assert against
// it, and a bounded instance serves as a last-N tail of a live stream.
type MemorySink struct {
	mu     sync.RWMutex
	limit  int
	events []logging.Event
}

// NewMemorySink retains every event written to it.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// NewMemoryTail retains only the newest limit events, evicting the oldest
// first. A limit below one retains everything.
func NewMemoryTail(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, snapshotEvent(event))
	if s.limit > 0 && len(s.events) > s.limit {
		overflow := len(s.events) - s.limit
		s.events = append(s.events[:0], s.events[overflow:]...)
	}
	return nil
}

// Events copies the buffered events, oldest first.
func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

// snapshotEvent detaches the stored event from slices and maps the writer
// may still hold.
func snapshotEvent(event logging.Event) logging.Event {
	stored := event
	if len(event.Targets) > 0 {
		stored.Targets = append([]logging.ActorRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		extra := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			extra[k] = v
		}
		stored.Extra = extra
	}
	return stored
}
