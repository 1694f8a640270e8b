package world

import "time"

// PeriodicTimer accumulates elapsed wall time and reports, level-triggered,
// when at least one interval has passed. Reset subtracts a single interval so
// any overshoot carries into the next period instead of being discarded.
type PeriodicTimer struct {
	interval time.Duration
	current  time.Duration
}

func NewPeriodicTimer(interval time.Duration) *PeriodicTimer {
	return &PeriodicTimer{interval: interval}
}

// Update adds elapsed time to the accumulator.
func (t *PeriodicTimer) Update(diff time.Duration) {
	t.current += diff
	if t.current < 0 {
		t.current = 0
	}
}

// Passed reports whether a full interval has accumulated. It keeps reporting
// true until Reset is called.
func (t *PeriodicTimer) Passed() bool {
	return t.current >= t.interval
}

// Reset retires one interval, keeping the remainder.
func (t *PeriodicTimer) Reset() {
	if t.current >= t.interval {
		t.current -= t.interval
	}
}

func (t *PeriodicTimer) SetCurrent(current time.Duration) {
	t.current = current
}

func (t *PeriodicTimer) SetInterval(interval time.Duration) {
	t.interval = interval
}

func (t *PeriodicTimer) Interval() time.Duration {
	return t.interval
}

func (t *PeriodicTimer) Current() time.Duration {
	return t.current
}
