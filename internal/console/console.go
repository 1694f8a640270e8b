// Package console interprets administrative command lines. Commands execute
// on the world goroutine at the end of a cycle, so they may read and mutate
// world state directly.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	world "github.com/WOW112/jingdianwow2"
	"github.com/WOW112/jingdianwow2/internal/store"
)

const storeTimeout = 5 * time.Second

const helpText = `commands:
  info                               realm occupancy and uptime
  shutdown <seconds> [idle] [exit <code>]
                                     stop the server after a countdown
  restart <seconds> [idle]           stop with the restart exit code
  shutdown cancel                    revoke a pending countdown
  announce <text>                    broadcast to every active session
  setlimit <n>                       set the session capacity, 0 for unlimited
  maintenance                        show the next maintenance window
  standings [n]                      top accounts in the live scoring window
  award <account> <points>           adjust an account's live standing
  uptime [n]                         recent runs of this realm
  help                               this text`

// Console is the world's CommandExecutor. The store is optional; history
// commands report unavailable without it.
type Console struct {
	store *store.Store
}

func New(st *store.Store) *Console {
	return &Console{store: st}
}

func (c *Console) Execute(w *world.World, cmd world.Command) (string, error) {
	fields := strings.Fields(cmd.Line)
	if len(fields) == 0 {
		return "", errors.New("empty command")
	}

	switch fields[0] {
	case "help":
		return helpText, nil
	case "info":
		return c.info(w), nil
	case "shutdown":
		if len(fields) == 2 && fields[1] == "cancel" {
			return c.cancel(w)
		}
		return c.shutdown(w, fields[1:], false)
	case "restart":
		if len(fields) == 2 && fields[1] == "cancel" {
			return c.cancel(w)
		}
		return c.shutdown(w, fields[1:], true)
	case "announce":
		if len(fields) < 2 {
			return "", errors.New("announce needs text")
		}
		w.BroadcastRaw(strings.Join(fields[1:], " "))
		return "announcement sent", nil
	case "setlimit":
		return c.setLimit(w, fields[1:])
	case "maintenance":
		return c.maintenance(w), nil
	case "standings":
		return c.standings(fields[1:])
	case "award":
		return c.award(fields[1:])
	case "uptime":
		return c.uptime(fields[1:])
	default:
		return "", fmt.Errorf("unknown command %q", fields[0])
	}
}

func (c *Console) info(w *world.World) string {
	active, queued, maxActive, maxQueued := w.SessionCounts()
	uptime := w.GameTime().Sub(w.StartTime()).Truncate(time.Second)

	var b strings.Builder
	fmt.Fprintf(&b, "active: %d (max %d), queued: %d (max %d)\n", active, maxActive, queued, maxQueued)
	if limit := w.Capacity(); limit > 0 {
		fmt.Fprintf(&b, "capacity: %d\n", limit)
	} else {
		b.WriteString("capacity: unlimited\n")
	}
	fmt.Fprintf(&b, "uptime: %s, tick: %d", uptime, w.Tick())
	if phase := w.ShutdownPhase(); phase != world.PhaseRunning {
		fmt.Fprintf(&b, "\nshutdown: %s", phase)
	}
	return b.String()
}

func (c *Console) shutdown(w *world.World, args []string, restart bool) (string, error) {
	if len(args) == 0 {
		return "", errors.New("shutdown needs a countdown in seconds")
	}
	seconds, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "", fmt.Errorf("bad countdown %q: %w", args[0], err)
	}

	var mask world.ShutdownMask
	code := world.ExitShutdown
	if restart {
		mask |= world.ShutdownMaskRestart
		code = world.ExitRestart
	}
	flags := args[1:]
	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case "idle":
			mask |= world.ShutdownMaskIdle
		case "exit":
			if restart {
				return "", errors.New("restart fixes the exit code")
			}
			if i+1 >= len(flags) {
				return "", errors.New("exit needs a code")
			}
			value, err := strconv.ParseUint(flags[i+1], 10, 8)
			if err != nil {
				return "", fmt.Errorf("bad exit code %q: %w", flags[i+1], err)
			}
			code = world.ExitCode(value)
			i++
		default:
			return "", fmt.Errorf("unknown shutdown flag %q", flags[i])
		}
	}

	w.RequestShutdown(uint32(seconds), mask, code)
	verb := "shutdown"
	if restart {
		verb = "restart"
	}
	if mask&world.ShutdownMaskIdle != 0 {
		return fmt.Sprintf("%s in %d seconds once the realm is idle", verb, seconds), nil
	}
	return fmt.Sprintf("%s in %d seconds", verb, seconds), nil
}

func (c *Console) cancel(w *world.World) (string, error) {
	if !w.CancelShutdown() {
		return "", errors.New("no shutdown pending")
	}
	return "shutdown cancelled", nil
}

func (c *Console) setLimit(w *world.World, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("setlimit needs a single number")
	}
	limit, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "", fmt.Errorf("bad limit %q: %w", args[0], err)
	}
	w.SetCapacity(uint32(limit))
	if limit == 0 {
		return "session limit removed", nil
	}
	// Raising the limit admits queued sessions on the next queue pass.
	return fmt.Sprintf("session limit set to %d", limit), nil
}

func (c *Console) maintenance(w *world.World) string {
	next := w.NextMaintenance()
	if next.IsZero() {
		return "maintenance disabled"
	}
	return fmt.Sprintf("next maintenance: %s", next.Format("Mon 2006-01-02 15:04 MST"))
}

func (c *Console) standings(args []string) (string, error) {
	if c.store == nil {
		return "", errors.New("standings unavailable without a database")
	}
	limit, err := optionalCount(args, 10)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rows, err := c.store.TopStandings(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("load standings: %w", err)
	}
	if len(rows) == 0 {
		return "no standings this window", nil
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%2d. account %d: %d points", i+1, row.AccountID, row.Points)
	}
	return b.String(), nil
}

// award adjusts a live standing row. Negative points are allowed so a bad
// grant can be reversed.
func (c *Console) award(args []string) (string, error) {
	if c.store == nil {
		return "", errors.New("standings unavailable without a database")
	}
	if len(args) != 2 {
		return "", errors.New("award needs an account id and points")
	}
	accountID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "", fmt.Errorf("bad account id %q: %w", args[0], err)
	}
	points, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad points %q: %w", args[1], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.AwardPoints(ctx, uint32(accountID), points); err != nil {
		return "", fmt.Errorf("award points: %w", err)
	}
	return fmt.Sprintf("account %d adjusted by %d points", accountID, points), nil
}

func (c *Console) uptime(args []string) (string, error) {
	if c.store == nil {
		return "", errors.New("uptime history unavailable without a database")
	}
	limit, err := optionalCount(args, 5)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rows, err := c.store.RecentUptimes(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("load uptime history: %w", err)
	}
	if len(rows) == 0 {
		return "no recorded runs", nil
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		start := time.Unix(row.StartTime, 0).UTC()
		up := time.Duration(row.UptimeSec) * time.Second
		fmt.Fprintf(&b, "%s: up %s, peak %d sessions", start.Format("2006-01-02 15:04"), up, row.MaxActive)
	}
	return b.String(), nil
}

func optionalCount(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad count %q", args[0])
	}
	return n, nil
}
