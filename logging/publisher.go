package logging

import (
	"context"
	"strconv"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type ActorKind string

const (
	ActorKindUnknown ActorKind = "unknown"
	ActorKindAccount ActorKind = "account"
	ActorKindConsole ActorKind = "console"
	ActorKindWorld   ActorKind = "world"
)

type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Actor     ActorRef       `json:"actor"`
	Targets   []ActorRef     `json:"targets,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	CommandID string         `json:"commandId,omitempty"`
}

type ActorRef struct {
	ID   string    `json:"id"`
	Kind ActorKind `json:"kind"`
}

// AccountRef builds the actor reference for an account id.
func AccountRef(id uint32) ActorRef {
	return ActorRef{ID: strconv.FormatUint(uint64(id), 10), Kind: ActorKindAccount}
}

// ConsoleRef builds the actor reference for an admin console issuer, usually
// a remote address.
func ConsoleRef(issuer string) ActorRef {
	return ActorRef{ID: issuer, Kind: ActorKindConsole}
}

func WorldRef() ActorRef {
	return ActorRef{Kind: ActorKindWorld}
}

const (
	CategoryLifecycle = "lifecycle"
	CategoryOps       = "ops"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

// cloneForFields shallow-copies an event deep enough that stamping extras or
// mutating targets downstream never aliases the publisher's own slices.
func cloneForFields(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]ActorRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
