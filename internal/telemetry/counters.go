package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counters is a key-addressed registry backing the Metrics interface. Gauges
// overwrite, counters accumulate; both share the same namespace.
type Counters struct {
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]*atomic.Uint64)}
}

func (c *Counters) cell(key string) *atomic.Uint64 {
	c.mu.RLock()
	cell, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return cell
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cell, ok = c.values[key]; ok {
		return cell
	}
	cell = &atomic.Uint64{}
	c.values[key] = cell
	return cell
}

// Add implements Metrics.
func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.cell(key).Add(delta)
}

// Store implements Metrics.
func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.cell(key).Store(value)
}

// Load reports the current value for a key, zero when absent.
func (c *Counters) Load(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	cell, ok := c.values[key]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return cell.Load()
}

// Snapshot copies every counter into a plain map for serialization.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.values))
	for key, cell := range c.values {
		out[key] = cell.Load()
	}
	return out
}
