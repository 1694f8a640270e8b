package console

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	world "github.com/WOW112/jingdianwow2"
	"github.com/WOW112/jingdianwow2/internal/store"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func newConsoleWorld(t *testing.T, st *store.Store) *world.World {
	t.Helper()
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	deps := world.Deps{Clock: clock}
	if st != nil {
		deps.Store = st
	}
	w, err := world.New(context.Background(), world.Config{}, deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

func run(t *testing.T, c *Console, w *world.World, line string) string {
	t.Helper()
	out, err := c.Execute(w, world.Command{Line: line})
	if err != nil {
		t.Fatalf("command %q failed: %v", line, err)
	}
	return out
}

func TestUnknownCommandRejected(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	if _, err := c.Execute(w, world.Command{Line: "frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if _, err := c.Execute(w, world.Command{Line: "   "}); err == nil {
		t.Fatalf("expected error for blank command")
	}
}

func TestShutdownAndCancel(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "shutdown 300")
	if out != "shutdown in 300 seconds" {
		t.Fatalf("unexpected output %q", out)
	}
	if w.ShutdownPhase() != world.PhaseCountdown {
		t.Fatalf("countdown not armed, phase %s", w.ShutdownPhase())
	}

	out = run(t, c, w, "shutdown cancel")
	if out != "shutdown cancelled" {
		t.Fatalf("unexpected output %q", out)
	}
	if w.ShutdownPhase() != world.PhaseRunning {
		t.Fatalf("cancel did not restore running phase")
	}

	if _, err := c.Execute(w, world.Command{Line: "shutdown cancel"}); err == nil {
		t.Fatalf("expected error when nothing is pending")
	}
}

func TestRestartSetsRestartMask(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "restart 60 idle")
	if !strings.Contains(out, "once the realm is idle") {
		t.Fatalf("idle flag not reflected: %q", out)
	}

	w.Update(time.Millisecond)
	snap := w.Status()
	if snap.ShutdownPhase != "countdown" || !snap.ShutdownRestart {
		t.Fatalf("restart request not visible in status: %+v", snap)
	}
}

func TestShutdownRejectsBadArguments(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	if _, err := c.Execute(w, world.Command{Line: "shutdown"}); err == nil {
		t.Fatalf("expected error for missing countdown")
	}
	if _, err := c.Execute(w, world.Command{Line: "shutdown soon"}); err == nil {
		t.Fatalf("expected error for non-numeric countdown")
	}
	if _, err := c.Execute(w, world.Command{Line: "shutdown 60 loudly"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
	if _, err := c.Execute(w, world.Command{Line: "shutdown 60 exit"}); err == nil {
		t.Fatalf("expected error for exit flag without a code")
	}
	if _, err := c.Execute(w, world.Command{Line: "shutdown 60 exit many"}); err == nil {
		t.Fatalf("expected error for non-numeric exit code")
	}
	if _, err := c.Execute(w, world.Command{Line: "restart 60 exit 7"}); err == nil {
		t.Fatalf("expected error for exit code on restart")
	}
}

func TestShutdownAcceptsExitCode(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "shutdown 90 idle exit 7")
	if out != "shutdown in 90 seconds once the realm is idle" {
		t.Fatalf("unexpected output %q", out)
	}
	if w.ShutdownPhase() != world.PhaseCountdown {
		t.Fatalf("countdown not armed, phase %s", w.ShutdownPhase())
	}
}

func TestSetLimit(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "setlimit 100")
	if out != "session limit set to 100" || w.Capacity() != 100 {
		t.Fatalf("limit not applied: %q capacity=%d", out, w.Capacity())
	}

	out = run(t, c, w, "setlimit 0")
	if out != "session limit removed" || w.Capacity() != 0 {
		t.Fatalf("limit not removed: %q capacity=%d", out, w.Capacity())
	}

	if _, err := c.Execute(w, world.Command{Line: "setlimit beans"}); err == nil {
		t.Fatalf("expected error for non-numeric limit")
	}
}

func TestInfoReportsOccupancy(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "info")
	if !strings.Contains(out, "active: 0") || !strings.Contains(out, "capacity: unlimited") {
		t.Fatalf("unexpected info output %q", out)
	}
}

func TestMaintenanceDisabledMessage(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	if out := run(t, c, w, "maintenance"); out != "maintenance disabled" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHistoryCommandsNeedStore(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	if _, err := c.Execute(w, world.Command{Line: "standings"}); err == nil {
		t.Fatalf("expected error without a store")
	}
	if _, err := c.Execute(w, world.Command{Line: "uptime"}); err == nil {
		t.Fatalf("expected error without a store")
	}
	if _, err := c.Execute(w, world.Command{Line: "award 7 50"}); err == nil {
		t.Fatalf("expected error without a store")
	}
}

func TestStandingsAndUptimeFromStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AwardPoints(ctx, 7, 150); err != nil {
		t.Fatalf("award: %v", err)
	}

	c := New(st)
	w := newConsoleWorld(t, st)

	out := run(t, c, w, "standings")
	if !strings.Contains(out, "account 7: 150 points") {
		t.Fatalf("unexpected standings %q", out)
	}

	out = run(t, c, w, "award 7 50")
	if out != "account 7 adjusted by 50 points" {
		t.Fatalf("unexpected award output %q", out)
	}
	out = run(t, c, w, "standings")
	if !strings.Contains(out, "account 7: 200 points") {
		t.Fatalf("award not reflected in standings %q", out)
	}

	if _, err := c.Execute(w, world.Command{Line: "award 7"}); err == nil {
		t.Fatalf("expected error for missing points")
	}
	if _, err := c.Execute(w, world.Command{Line: "award seven 5"}); err == nil {
		t.Fatalf("expected error for non-numeric account")
	}

	// The boot inserted this run's uptime row.
	out = run(t, c, w, "uptime")
	if !strings.Contains(out, "peak 0 sessions") {
		t.Fatalf("unexpected uptime history %q", out)
	}
}

func TestHelpListsCommands(t *testing.T) {
	c := New(nil)
	w := newConsoleWorld(t, nil)

	out := run(t, c, w, "help")
	for _, want := range []string{"shutdown", "setlimit", "announce", "maintenance"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help missing %q:\n%s", want, out)
		}
	}
}
