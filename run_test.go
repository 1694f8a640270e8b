package world

import (
	"testing"
	"time"
)

func TestRunStopsOnSignal(t *testing.T) {
	w := mustWorld(t, Config{TickRate: 100}, Deps{})

	stop := make(chan struct{})
	done := make(chan ExitCode, 1)
	go func() { done <- w.Run(stop) }()
	close(stop)

	select {
	case code := <-done:
		if code != ExitShutdown {
			t.Fatalf("expected exit code %d, got %d", ExitShutdown, code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after the signal")
	}
}

func TestRunReturnsRestartCode(t *testing.T) {
	w := mustWorld(t, Config{TickRate: 100}, Deps{
		Console: commandExecutorFunc(func(w *World, _ Command) (string, error) {
			w.RequestShutdown(0, ShutdownMaskRestart, ExitRestart)
			return "", nil
		}),
	})

	done := make(chan ExitCode, 1)
	go func() { done <- w.Run(make(chan struct{})) }()
	if _, ok := w.QueueCommand("restart", "test", nil); !ok {
		t.Fatalf("command queue rejected the restart")
	}

	select {
	case code := <-done:
		if code != ExitRestart {
			t.Fatalf("expected exit code %d, got %d", ExitRestart, code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after the restart command")
	}
}

func TestRunFinalizeTearsDownSessions(t *testing.T) {
	w := mustWorld(t, Config{TickRate: 100}, Deps{
		Console: commandExecutorFunc(func(w *World, _ Command) (string, error) {
			w.RequestShutdown(0, 0, ExitShutdown)
			return "", nil
		}),
	})

	_, conn := enqueueAccount(w, 1, SecurityPlayer)
	if _, ok := w.QueueCommand("shutdown", "test", nil); !ok {
		t.Fatalf("command queue rejected the shutdown")
	}

	done := make(chan ExitCode, 1)
	go func() { done <- w.Run(make(chan struct{})) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}

	if !conn.kicked || !conn.destroyed {
		t.Fatalf("expected session torn down at exit, kicked=%v destroyed=%v", conn.kicked, conn.destroyed)
	}
	active, queued, _, _ := w.SessionCounts()
	if active != 0 || queued != 0 {
		t.Fatalf("expected empty world after finalize, got %d/%d", active, queued)
	}
}
