package world

import "time"

const (
	// DefaultTickRate is the world update cadence in cycles per second.
	DefaultTickRate = 20
	// DefaultCatchupMaxTicks bounds how much wall-clock lag a single cycle
	// may absorb after a stall.
	DefaultCatchupMaxTicks = 4

	DefaultCommandCapacity = 64

	DefaultUptimeInterval        = 10 * time.Minute
	DefaultPopulationInterval    = 5 * time.Minute
	DefaultAutoBroadcastInterval = time.Minute

	DefaultMaintenanceDelaySeconds = 30
	DefaultMaintenanceGuard        = time.Second
	maintenanceGuardReset          = 10 * time.Minute

	asyncOpTimeout = 5 * time.Second
)

// Shutdown exit codes handed back to the host process.
type ExitCode int

const (
	ExitShutdown ExitCode = 0
	ExitError    ExitCode = 1
	ExitRestart  ExitCode = 2
)

// ShutdownMask selects restart and idle-aware behaviour on a request.
type ShutdownMask uint32

const (
	ShutdownMaskRestart ShutdownMask = 1
	ShutdownMaskIdle    ShutdownMask = 2
)

// Announcement catalog keys used by the control core itself.
const (
	keyShutdownTime      = "shutdown.time"
	keyRestartTime       = "restart.time"
	keyShutdownCancelled = "shutdown.cancelled"
	keyRestartCancelled  = "restart.cancelled"
)

// Telemetry keys.
const (
	metricIntakeDepth    = "world_intake_depth"
	metricIntakeTotal    = "world_intake_total"
	metricCallbackDepth  = "world_callback_depth"
	metricCallbackTotal  = "world_callback_total"
	metricCommandDepth   = "world_command_depth"
	metricCommandTotal   = "world_command_total"
	metricCycleMillis    = "world_cycle_millis"
	metricSessionsActive = "world_sessions_active"
	metricSessionsQueued = "world_sessions_queued"
	metricSessionsMax    = "world_sessions_max_active"
	metricQueuedMax      = "world_sessions_max_queued"
)
