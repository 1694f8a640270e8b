package lifecycle

import (
	"context"

	"github.com/WOW112/jingdianwow2/logging"
)

const (
	// EventSessionAdmitted is emitted when a session gains an active slot.
	EventSessionAdmitted logging.EventType = "lifecycle.session_admitted"
	// EventSessionQueued is emitted when a session lands in the wait queue.
	EventSessionQueued logging.EventType = "lifecycle.session_queued"
	// EventSessionPromoted is emitted when a queued session is handed a slot.
	EventSessionPromoted logging.EventType = "lifecycle.session_promoted"
	// EventSessionRemoved is emitted when a session leaves the world.
	EventSessionRemoved logging.EventType = "lifecycle.session_removed"
	// EventSessionReplaced is emitted when a reconnect displaces an older
	// session for the same account.
	EventSessionReplaced logging.EventType = "lifecycle.session_replaced"
)

// AdmittedPayload captures slot occupancy at admission time.
type AdmittedPayload struct {
	Active   int     `json:"active"`
	Queued   int     `json:"queued"`
	Capacity uint32  `json:"capacity"`
	Ratio    float64 `json:"ratio"`
}

// QueuedPayload captures the wait position handed to the session.
type QueuedPayload struct {
	Position int `json:"position"`
	Queued   int `json:"queued"`
}

// RemovedPayload captures the reason a session left.
type RemovedPayload struct {
	Reason    string `json:"reason"`
	WasQueued bool   `json:"wasQueued"`
}

// SessionAdmitted publishes an admission event.
func SessionAdmitted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, payload AdmittedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionAdmitted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SessionQueued publishes a wait-queue placement event.
func SessionQueued(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, payload QueuedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionQueued,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SessionPromoted publishes a queue promotion event.
func SessionPromoted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionPromoted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SessionRemoved publishes a session removal event.
func SessionRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, payload RemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SessionReplaced publishes a reconnect displacement event.
func SessionReplaced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionReplaced,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
