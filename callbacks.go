package world

import (
	"sync"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
)

// Callback runs on the world goroutine with full ownership of world state.
type Callback func(w *World)

// callbackQueue carries completions of asynchronous work (store writes,
// directory publishes) back onto the world goroutine. Producers post from
// arbitrary goroutines; the world drains once per cycle, so a posted callback
// runs at most one cycle later.
type callbackQueue struct {
	mu      sync.Mutex
	pending []Callback
	metrics telemetry.Metrics
}

func newCallbackQueue(metrics telemetry.Metrics) *callbackQueue {
	return &callbackQueue{metrics: metrics}
}

// Post stages a callback. Safe for concurrent producers; never blocks.
func (q *callbackQueue) Post(cb Callback) {
	if q == nil || cb == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cb)
	depth := len(q.pending)
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Add(metricCallbackTotal, 1)
		q.metrics.Store(metricCallbackDepth, uint64(depth))
	}
}

// Drain returns staged callbacks in post order and clears the queue.
func (q *callbackQueue) Drain() []Callback {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	staged := q.pending
	q.pending = nil
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Store(metricCallbackDepth, 0)
	}
	return staged
}

// Len reports the number of staged callbacks.
func (q *callbackQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
