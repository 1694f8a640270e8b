package world

// ShutdownPhase describes where the controller is in its lifecycle.
type ShutdownPhase int

const (
	PhaseRunning ShutdownPhase = iota
	PhaseCountdown
	PhaseStopped
)

func (p ShutdownPhase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseCountdown:
		return "countdown"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ShutdownController drives the countdown toward a stop or restart. All
// methods run on the world goroutine; the terminal flag is the only thing
// the run loop reads back.
type ShutdownController struct {
	remaining uint32
	mask      ShutdownMask
	exitCode  ExitCode
	stopped   bool

	liveSessions func() int
	announce     func(restart bool, remaining uint32)
	cancelled    func(restart bool)
}

func newShutdownController(liveSessions func() int) *ShutdownController {
	return &ShutdownController{liveSessions: liveSessions}
}

// Request arms a countdown of the given length. A zero-second request stops
// immediately, except in idle-aware mode with sessions still connected,
// where the countdown is pinned at one second and re-evaluated every tick
// until the world empties. Requests are ignored once the controller has
// stopped; a newer request otherwise overwrites a pending one.
func (c *ShutdownController) Request(seconds uint32, mask ShutdownMask, code ExitCode) {
	if c.stopped {
		return
	}

	c.mask = mask
	c.exitCode = code

	if seconds == 0 {
		if !c.idleAware() || c.live() == 0 {
			c.stopped = true
		} else {
			c.remaining = 1
		}
		return
	}

	c.remaining = seconds
	c.broadcast(true)
}

// Tick advances the countdown by elapsed whole seconds. Most cycles pass
// zero and return immediately; the countdown only moves when the wall clock
// crosses a second boundary.
func (c *ShutdownController) Tick(elapsed uint32) {
	if c.stopped || c.remaining == 0 || elapsed == 0 {
		return
	}

	if c.remaining <= elapsed {
		if !c.idleAware() || c.live() == 0 {
			c.stopped = true
			return
		}
		// Hold at one second and keep watching for the world to empty.
		c.remaining = 1
		return
	}

	c.remaining -= elapsed
	c.broadcast(false)
}

// Cancel revokes a pending countdown and restores defaults. It reports false
// when there is nothing to cancel or the stop already happened.
func (c *ShutdownController) Cancel() bool {
	if c.remaining == 0 || c.stopped {
		return false
	}

	restart := c.Restart()
	c.remaining = 0
	c.mask = 0
	c.exitCode = ExitShutdown

	if c.cancelled != nil {
		c.cancelled(restart)
	}
	return true
}

// broadcast emits a countdown checkpoint. Idle-aware countdowns stay silent.
// Unforced checkpoints fire on a coarse-to-fine ladder: every 12 hours far
// out, then hourly inside 12 hours, every 5 minutes inside 30, every minute
// inside 15, and every 15 seconds inside the final 5 minutes.
func (c *ShutdownController) broadcast(force bool) {
	if c.idleAware() {
		return
	}
	if !force && !announceCheckpoint(c.remaining) {
		return
	}
	if c.announce != nil {
		c.announce(c.Restart(), c.remaining)
	}
}

func announceCheckpoint(remaining uint32) bool {
	const (
		minute = 60
		hour   = 60 * minute
	)
	switch {
	case remaining < 5*minute && remaining%15 == 0:
		return true
	case remaining < 15*minute && remaining%minute == 0:
		return true
	case remaining < 30*minute && remaining%(5*minute) == 0:
		return true
	case remaining < 12*hour && remaining%hour == 0:
		return true
	case remaining >= 12*hour && remaining%(12*hour) == 0:
		return true
	}
	return false
}

func (c *ShutdownController) idleAware() bool {
	return c.mask&ShutdownMaskIdle != 0
}

func (c *ShutdownController) live() int {
	if c.liveSessions == nil {
		return 0
	}
	return c.liveSessions()
}

// Stopped reports whether the terminal state has been reached.
func (c *ShutdownController) Stopped() bool {
	return c.stopped
}

// Pending reports whether a countdown is armed.
func (c *ShutdownController) Pending() bool {
	return !c.stopped && c.remaining > 0
}

// Remaining reports the seconds left on the countdown. Only meaningful while
// Pending.
func (c *ShutdownController) Remaining() uint32 {
	return c.remaining
}

// Restart reports whether the active request asked for a restart.
func (c *ShutdownController) Restart() bool {
	return c.mask&ShutdownMaskRestart != 0
}

// Code reports the exit code the host should surface.
func (c *ShutdownController) Code() ExitCode {
	return c.exitCode
}

// Phase reports the controller lifecycle state.
func (c *ShutdownController) Phase() ShutdownPhase {
	switch {
	case c.stopped:
		return PhaseStopped
	case c.remaining > 0:
		return PhaseCountdown
	default:
		return PhaseRunning
	}
}
