package world

import (
	"testing"
	"time"
)

func TestImmediateShutdownStopsWorld(t *testing.T) {
	w, clock := newTestWorld(t, Config{})

	enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(0, 0, ExitShutdown)
	if !w.shutdown.Stopped() {
		t.Fatalf("zero-second non-idle request must stop immediately")
	}
	if w.shutdown.Code() != ExitShutdown {
		t.Fatalf("expected exit code %d, got %d", ExitShutdown, w.shutdown.Code())
	}
}

func TestIdleAwareZeroSecondRequestPinsUntilEmpty(t *testing.T) {
	w, clock := newTestWorld(t, Config{})

	for _, account := range []uint32{1, 2, 3} {
		enqueueAccount(w, account, SecurityPlayer)
	}
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(0, ShutdownMaskIdle, ExitShutdown)
	if w.shutdown.Stopped() {
		t.Fatalf("idle-aware stop fired with live sessions")
	}
	if got := w.shutdown.Remaining(); got != 1 {
		t.Fatalf("expected countdown pinned at 1 second, got %d", got)
	}

	// As long as somebody is connected the countdown re-arms every second.
	for _, account := range []uint32{1, 2} {
		w.Remove(account)
		cycle(w, clock, time.Second)
		cycle(w, clock, time.Second)
		if w.shutdown.Stopped() {
			t.Fatalf("idle-aware stop fired with sessions still live")
		}
		if got := w.shutdown.Remaining(); got != 1 {
			t.Fatalf("expected countdown still pinned after removing %d, got %d", account, got)
		}
	}

	// Drain the last one. The session is excised after the countdown tick,
	// so the stop lands on the following cycle.
	w.Remove(3)
	cycle(w, clock, time.Second)
	cycle(w, clock, time.Second)
	if !w.shutdown.Stopped() {
		t.Fatalf("expected stop once the world emptied")
	}
}

func TestIdleAwareCountdownHoldsAtExpiry(t *testing.T) {
	w, clock := newTestWorld(t, Config{})

	enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(2, ShutdownMaskIdle|ShutdownMaskRestart, ExitRestart)
	cycle(w, clock, time.Second)
	cycle(w, clock, time.Second)
	cycle(w, clock, time.Second)

	if w.shutdown.Stopped() {
		t.Fatalf("idle-aware countdown stopped with a live session")
	}
	if got := w.shutdown.Remaining(); got != 1 {
		t.Fatalf("expected countdown held at 1 second, got %d", got)
	}
	if !w.shutdown.Restart() {
		t.Fatalf("restart flag lost while holding")
	}
}

func TestShutdownCountdownDecrementsBySeconds(t *testing.T) {
	w, clock := newTestWorld(t, Config{})

	w.RequestShutdown(10, 0, ExitShutdown)

	// Sub-second cycles leave the countdown alone.
	for i := 0; i < 10; i++ {
		cycle(w, clock, 50*time.Millisecond)
	}
	if got := w.shutdown.Remaining(); got != 10 {
		t.Fatalf("sub-second cycles moved the countdown to %d", got)
	}

	cycle(w, clock, time.Second)
	if got := w.shutdown.Remaining(); got != 9 {
		t.Fatalf("expected 9 seconds left, got %d", got)
	}

	for i := 0; i < 9; i++ {
		cycle(w, clock, time.Second)
	}
	if !w.shutdown.Stopped() {
		t.Fatalf("countdown expiry did not stop the world")
	}
}

func TestCancelRestoresDefaults(t *testing.T) {
	w, _ := newTestWorld(t, Config{})

	w.RequestShutdown(300, ShutdownMaskRestart, ExitRestart)
	if w.shutdown.Phase() != PhaseCountdown {
		t.Fatalf("expected countdown phase, got %s", w.shutdown.Phase())
	}

	if !w.CancelShutdown() {
		t.Fatalf("expected cancel to succeed during countdown")
	}
	if w.shutdown.Pending() {
		t.Fatalf("countdown still pending after cancel")
	}
	if w.shutdown.Stopped() {
		t.Fatalf("cancel must never produce a stop")
	}
	if w.shutdown.Restart() {
		t.Fatalf("restart flag survived cancel")
	}
	if w.shutdown.Code() != ExitShutdown {
		t.Fatalf("exit code not restored, got %d", w.shutdown.Code())
	}

	if w.CancelShutdown() {
		t.Fatalf("cancel with nothing pending must report false")
	}
}

func TestCancelAfterStopIsRejected(t *testing.T) {
	w, _ := newTestWorld(t, Config{})

	w.RequestShutdown(0, 0, ExitError)
	if !w.shutdown.Stopped() {
		t.Fatalf("expected immediate stop")
	}
	if w.CancelShutdown() {
		t.Fatalf("cancel after stop must be a no-op")
	}
	if w.shutdown.Code() != ExitError {
		t.Fatalf("exit code changed after rejected cancel, got %d", w.shutdown.Code())
	}
}

func TestRequestAfterStopIgnored(t *testing.T) {
	w, _ := newTestWorld(t, Config{})

	w.RequestShutdown(0, 0, ExitRestart)
	w.RequestShutdown(600, 0, ExitShutdown)

	if w.shutdown.Code() != ExitRestart {
		t.Fatalf("request after stop overwrote the exit code: %d", w.shutdown.Code())
	}
	if w.shutdown.Remaining() != 0 {
		t.Fatalf("request after stop armed a countdown")
	}
}

func TestNewerRequestOverwritesPending(t *testing.T) {
	w, _ := newTestWorld(t, Config{})

	w.RequestShutdown(600, 0, ExitShutdown)
	w.RequestShutdown(60, ShutdownMaskRestart, ExitRestart)

	if got := w.shutdown.Remaining(); got != 60 {
		t.Fatalf("expected newer request to win, remaining=%d", got)
	}
	if !w.shutdown.Restart() {
		t.Fatalf("expected restart mask from newer request")
	}
}

func TestAnnounceCheckpointBands(t *testing.T) {
	cases := []struct {
		remaining uint32
		want      bool
	}{
		{15, true},           // final 5 minutes, 15s step
		{29, false},          // off-step inside final 5 minutes
		{45, true},           // 15s step
		{299, false},         // just inside 5 minutes, off-step
		{6 * 60, true},       // inside 15 minutes, minute step
		{6*60 + 30, false},   // inside 15 minutes, off-step
		{20 * 60, true},      // inside 30 minutes, 5 minute step
		{21 * 60, false},     // inside 30 minutes, off-step
		{2 * 3600, true},     // inside 12 hours, hour step
		{2*3600 + 60, false}, // inside 12 hours, off-step
		{24 * 3600, true},    // 12 hour step
		{13 * 3600, false},   // at or beyond 12 hours, off-step
		{12 * 3600, true},    // the coarse band starts at exactly 12 hours
	}
	for _, tc := range cases {
		if got := announceCheckpoint(tc.remaining); got != tc.want {
			t.Fatalf("announceCheckpoint(%d) = %v, want %v", tc.remaining, got, tc.want)
		}
	}
}

func TestCountdownBroadcastsCheckpoints(t *testing.T) {
	w, clock := newTestWorld(t, Config{})
	w.deps.Catalog = &fakeCatalog{entries: map[string]string{
		keyShutdownTime:      "Server is shutting down in %s",
		keyRestartTime:       "Server restart in %s",
		keyShutdownCancelled: "Shutdown cancelled",
		keyRestartCancelled:  "Restart cancelled",
	}}

	_, conn := enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	// The request itself always announces.
	w.RequestShutdown(17, 0, ExitShutdown)
	if len(conn.lines) != 1 {
		t.Fatalf("expected forced announcement on request, got %d", len(conn.lines))
	}
	if got := conn.lines[0][0]; got != "Server is shutting down in 17s" {
		t.Fatalf("unexpected announcement %q", got)
	}

	cycle(w, clock, time.Second) // 16 left, off-step
	if len(conn.lines) != 1 {
		t.Fatalf("off-step checkpoint broadcast, lines=%d", len(conn.lines))
	}

	cycle(w, clock, time.Second) // 15 left, on the 15s band
	if len(conn.lines) != 2 {
		t.Fatalf("expected checkpoint at 15s, lines=%d", len(conn.lines))
	}
	if got := conn.lines[1][0]; got != "Server is shutting down in 15s" {
		t.Fatalf("unexpected checkpoint %q", got)
	}
}

func TestCountdownCheckpointAtTwelveHours(t *testing.T) {
	w, clock := newTestWorld(t, Config{})
	w.deps.Catalog = &fakeCatalog{entries: map[string]string{
		keyShutdownTime: "Server is shutting down in %s",
	}}

	_, conn := enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(12*3600+15, 0, ExitShutdown)
	if len(conn.lines) != 1 {
		t.Fatalf("expected forced announcement on request, got %d", len(conn.lines))
	}

	// Crossing onto exactly 12 hours left lands on the coarse band's floor.
	cycle(w, clock, 15*time.Second)
	if got := w.shutdown.Remaining(); got != 12*3600 {
		t.Fatalf("expected 12h remaining, got %d", got)
	}
	if len(conn.lines) != 2 {
		t.Fatalf("expected checkpoint at exactly 12 hours, lines=%d", len(conn.lines))
	}
	if got := conn.lines[1][0]; got != "Server is shutting down in 12h" {
		t.Fatalf("unexpected checkpoint %q", got)
	}

	// The hourly band takes over below the floor.
	cycle(w, clock, time.Hour)
	if len(conn.lines) != 3 {
		t.Fatalf("expected hourly checkpoint, lines=%d", len(conn.lines))
	}
	if got := conn.lines[2][0]; got != "Server is shutting down in 11h" {
		t.Fatalf("unexpected checkpoint %q", got)
	}
}

func TestIdleAwareCountdownStaysSilent(t *testing.T) {
	w, clock := newTestWorld(t, Config{})
	w.deps.Catalog = &fakeCatalog{entries: map[string]string{
		keyShutdownTime: "Server is shutting down in %s",
	}}

	_, conn := enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(120, ShutdownMaskIdle, ExitShutdown)
	for i := 0; i < 90; i++ {
		cycle(w, clock, time.Second)
	}

	if len(conn.lines) != 0 {
		t.Fatalf("idle-aware countdown broadcast %d announcements", len(conn.lines))
	}
}

func TestCancelBroadcastsCancellation(t *testing.T) {
	w, clock := newTestWorld(t, Config{})
	w.deps.Catalog = &fakeCatalog{entries: map[string]string{
		keyRestartTime:      "Server restart in %s",
		keyRestartCancelled: "Restart cancelled",
	}}

	_, conn := enqueueAccount(w, 1, SecurityPlayer)
	cycle(w, clock, 50*time.Millisecond)

	w.RequestShutdown(600, ShutdownMaskRestart, ExitRestart)
	w.CancelShutdown()

	last := conn.lines[len(conn.lines)-1]
	if last[0] != "Restart cancelled" {
		t.Fatalf("expected cancellation broadcast, got %q", last[0])
	}
}
