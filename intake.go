package world

import (
	"sync"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
)

// sessionIntake stages sessions handed over by transport goroutines until the
// world goroutine drains them at the top of a cycle. It is unbounded: a login
// burst must never block the acceptor, and admission itself applies the
// capacity policy.
type sessionIntake struct {
	mu      sync.Mutex
	pending []*Session
	metrics telemetry.Metrics
}

func newSessionIntake(metrics telemetry.Metrics) *sessionIntake {
	return &sessionIntake{metrics: metrics}
}

// Add stages a session. Safe for concurrent producers.
func (q *sessionIntake) Add(s *Session) {
	if q == nil || s == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, s)
	depth := len(q.pending)
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Add(metricIntakeTotal, 1)
		q.metrics.Store(metricIntakeDepth, uint64(depth))
	}
}

// Drain returns every staged session in arrival order and clears the buffer.
func (q *sessionIntake) Drain() []*Session {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	staged := q.pending
	q.pending = nil
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Store(metricIntakeDepth, 0)
	}
	return staged
}

// Len reports the number of staged sessions.
func (q *sessionIntake) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
