package ops

import (
	"context"

	"github.com/WOW112/jingdianwow2/logging"
)

const (
	// EventShutdownRequested is emitted when a countdown is armed.
	EventShutdownRequested logging.EventType = "ops.shutdown_requested"
	// EventShutdownCancelled is emitted when a pending countdown is revoked.
	EventShutdownCancelled logging.EventType = "ops.shutdown_cancelled"
	// EventServerStopped is emitted once the world reaches its terminal state.
	EventServerStopped logging.EventType = "ops.server_stopped"
	// EventMaintenanceTriggered is emitted when the maintenance window fires.
	EventMaintenanceTriggered logging.EventType = "ops.maintenance_triggered"
	// EventMaintenanceScheduled is emitted when the next window is persisted.
	EventMaintenanceScheduled logging.EventType = "ops.maintenance_scheduled"
	// EventCommandExecuted is emitted after every admin command, failed ones
	// included. The audit trail is the point.
	EventCommandExecuted logging.EventType = "ops.command_executed"
)

// ShutdownPayload captures the parameters of a shutdown request.
type ShutdownPayload struct {
	Seconds  uint32 `json:"seconds"`
	Restart  bool   `json:"restart"`
	Idle     bool   `json:"idle"`
	ExitCode int    `json:"exitCode"`
}

// StoppedPayload captures the terminal exit code.
type StoppedPayload struct {
	ExitCode int  `json:"exitCode"`
	Restart  bool `json:"restart"`
}

// MaintenancePayload captures window scheduling detail.
type MaintenancePayload struct {
	NextDate     int64  `json:"nextDate"`
	DelaySeconds uint32 `json:"delaySeconds,omitempty"`
}

// CommandPayload captures an executed admin command line.
type CommandPayload struct {
	Line  string `json:"line"`
	Error string `json:"error,omitempty"`
}

// ShutdownRequested publishes a countdown arm event.
func ShutdownRequested(ctx context.Context, pub logging.Publisher, tick uint64, payload ShutdownPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShutdownRequested,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryOps,
		Payload:  payload,
	})
}

// ShutdownCancelled publishes a countdown revocation event.
func ShutdownCancelled(ctx context.Context, pub logging.Publisher, tick uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShutdownCancelled,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryOps,
	})
}

// ServerStopped publishes the terminal event.
func ServerStopped(ctx context.Context, pub logging.Publisher, tick uint64, payload StoppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventServerStopped,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryOps,
		Payload:  payload,
	})
}

// MaintenanceTriggered publishes a window-fired event.
func MaintenanceTriggered(ctx context.Context, pub logging.Publisher, tick uint64, payload MaintenancePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMaintenanceTriggered,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryOps,
		Payload:  payload,
	})
}

// CommandExecuted publishes the audit record for one admin command. Failed
// commands publish at warn severity.
func CommandExecuted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.ActorRef, commandID string, payload CommandPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.Error != "" {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventCommandExecuted,
		Tick:      tick,
		Actor:     actor,
		Severity:  severity,
		Category:  logging.CategoryOps,
		Payload:   payload,
		CommandID: commandID,
	})
}

// MaintenanceScheduled publishes the persisted next window.
func MaintenanceScheduled(ctx context.Context, pub logging.Publisher, tick uint64, payload MaintenancePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMaintenanceScheduled,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryOps,
		Payload:  payload,
	})
}
