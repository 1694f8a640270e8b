package world

import (
	"fmt"
	"strings"
)

// Catalog resolves announcement keys into display text. Implementations own
// localization and formatting; the world only splits the result into lines.
type Catalog interface {
	// Render resolves a key with its arguments. ok is false for unknown keys.
	Render(key string, args ...any) (text string, ok bool)
	// Broadcasts lists the rotating announcement texts, in rotation order.
	Broadcasts() []string
}

// BroadcastText renders a catalog entry once and delivers the pre-split
// lines to every active session. Queued and loading sessions never see
// announcements. Must run on the world goroutine.
func (w *World) BroadcastText(key string, args ...any) {
	if w.deps.Catalog == nil {
		return
	}
	text, ok := w.deps.Catalog.Render(key, args...)
	if !ok {
		w.deps.Logger.Printf("[world] unknown announcement key %q", key)
		return
	}
	w.BroadcastRaw(text)
}

// BroadcastRaw delivers already-rendered text to every active session.
func (w *World) BroadcastRaw(text string) {
	lines := splitAnnouncement(text)
	if len(lines) == 0 {
		return
	}
	for _, s := range w.sessions {
		if s.Queued() || s.Loading() {
			continue
		}
		s.SendLines(lines)
	}
}

// autoBroadcast sends the next rotating catalog announcement.
func (w *World) autoBroadcast() {
	if w.deps.Catalog == nil {
		return
	}
	entries := w.deps.Catalog.Broadcasts()
	if len(entries) == 0 {
		return
	}
	text := entries[w.broadcastIdx%len(entries)]
	w.broadcastIdx++
	w.BroadcastRaw(text)
}

func (w *World) announceShutdown(restart bool, remaining uint32) {
	key := keyShutdownTime
	if restart {
		key = keyRestartTime
	}
	w.BroadcastText(key, humanSeconds(remaining))
}

func (w *World) announceShutdownCancelled(restart bool) {
	key := keyShutdownCancelled
	if restart {
		key = keyRestartCancelled
	}
	w.BroadcastText(key)
}

func splitAnnouncement(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// humanSeconds renders a second count the way operators expect to read it:
// largest unit first, zero units skipped.
func humanSeconds(total uint32) string {
	if total == 0 {
		return "0s"
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%ds ", seconds)
	}
	return strings.TrimSpace(b.String())
}
