package world

import (
	"context"
	"time"

	"github.com/WOW112/jingdianwow2/logging/ops"
)

// Run drives the world at the configured cadence until the stop channel
// closes or a shutdown completes, then tears sessions down and returns the
// exit code the host should surface.
func (w *World) Run(stop <-chan struct{}) ExitCode {
	interval := time.Second / time.Duration(w.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clock := w.deps.Clock
	last := clock.Now()
	maxDiff := interval * time.Duration(w.cfg.CatchupMaxTicks)

	for {
		select {
		case <-stop:
			w.RequestShutdown(0, 0, ExitShutdown)
			stop = nil
		case <-ticker.C:
			now := clock.Now()
			diff := now.Sub(last)
			if diff <= 0 {
				diff = interval
			} else if diff > maxDiff {
				diff = maxDiff
			}
			last = now
			w.Update(diff)
		}
		if w.shutdown.Stopped() {
			return w.finalize()
		}
	}
}

// finalize kicks every remaining session, runs one last session pass so
// removals fan out queue maintenance, flushes straggling callbacks and
// persists the final uptime row.
func (w *World) finalize() ExitCode {
	code := w.shutdown.Code()
	restart := w.shutdown.Restart()

	ops.ServerStopped(context.Background(), w.deps.Publisher, w.tick, ops.StoppedPayload{
		ExitCode: int(code),
		Restart:  restart,
	})

	w.kickAll()
	w.updateSessions(0)

	// Sessions pinned by an in-flight load are dropped regardless; the
	// process is going away.
	for accountID, s := range w.sessions {
		delete(w.sessions, accountID)
		w.deferDestroy(s)
	}
	w.queue = nil

	for _, cb := range w.callbacks.Drain() {
		cb(w)
	}
	w.reapDeferred()
	w.publishStatus()

	if w.deps.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
		defer cancel()
		if err := w.deps.Store.UpdateUptime(ctx, w.startTime, w.gameTime.Sub(w.startTime), w.maxActive); err != nil {
			w.deps.Logger.Printf("[world] final uptime update failed: %v", err)
		}
	}
	return code
}
