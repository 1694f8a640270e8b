package logging_test

import (
	"context"
	"testing"
	"time"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
	"github.com/WOW112/jingdianwow2/logging"
	"github.com/WOW112/jingdianwow2/logging/sinks"
)

func closeRouter(t *testing.T, r *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close router: %v", err)
	}
}

func TestRouterDeliversToEverySink(t *testing.T) {
	first := sinks.NewMemorySink()
	second := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	counters := telemetry.NewCounters()
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{
		{Name: "first", Sink: first},
		{Name: "second", Sink: second},
	}, counters)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	for i := 0; i < 3; i++ {
		router.Publish(context.Background(), logging.Event{
			Type:     "server.started",
			Tick:     uint64(i),
			Severity: logging.SeverityInfo,
			Actor:    logging.WorldRef(),
		})
	}
	closeRouter(t, router)

	for name, sink := range map[string]*sinks.MemorySink{"first": first, "second": second} {
		events := sink.Events()
		if len(events) != 3 {
			t.Fatalf("sink %s saw %d events, want 3", name, len(events))
		}
		for i, event := range events {
			if event.Tick != uint64(i) {
				t.Fatalf("sink %s event %d has tick %d, arrival order lost", name, i, event.Tick)
			}
		}
	}

	if got := counters.Load("log_events_routed"); got != 3 {
		t.Fatalf("routed counter reads %d, want 3", got)
	}
	if got := counters.Load("log_events_dropped"); got != 0 {
		t.Fatalf("dropped counter reads %d, want 0", got)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	sink := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, err := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "mem", Sink: sink}}, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "session.admitted", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "session.removed", Severity: logging.SeverityError})
	closeRouter(t, router)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want only the error", len(events))
	}
	if events[0].Type != "session.removed" {
		t.Fatalf("wrong event survived the filter: %s", events[0].Type)
	}
}

func TestRouterStampsFieldsAndTime(t *testing.T) {
	sink := sinks.NewMemorySink()
	now := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"realm": uint32(7)}
	router, err := logging.NewRouter(logging.ClockFunc(func() time.Time { return now }), cfg, []logging.NamedSink{{Name: "mem", Sink: sink}}, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "server.started", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{
		Type:     "server.stopped",
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"realm": uint32(9)},
	})
	closeRouter(t, router)

	events := sink.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if got := events[0].Extra["realm"]; got != uint32(7) {
		t.Fatalf("router fields not stamped, extra=%v", events[0].Extra)
	}
	if !events[0].Time.Equal(now) {
		t.Fatalf("zero event time not filled from clock: %v", events[0].Time)
	}
	if got := events[1].Extra["realm"]; got != uint32(9) {
		t.Fatalf("event-provided extra overwritten: %v", events[1].Extra)
	}
}
