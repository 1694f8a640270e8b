package world

import "time"

// Security orders account privilege levels. Anything above SecurityPlayer
// bypasses the capacity gate.
type Security uint8

const (
	SecurityPlayer Security = iota
	SecurityModerator
	SecurityGamemaster
	SecurityAdministrator
)

func (s Security) String() string {
	switch s {
	case SecurityPlayer:
		return "player"
	case SecurityModerator:
		return "moderator"
	case SecurityGamemaster:
		return "gamemaster"
	case SecurityAdministrator:
		return "administrator"
	default:
		return "unknown"
	}
}

// Conn is the transport half of a session. Implementations must be safe for
// concurrent use: the world goroutine calls every method below, while the
// transport's own goroutines feed the inbound buffer and flip the closed
// flag.
type Conn interface {
	// SendAuthOK tells the client it holds an active slot.
	SendAuthOK()
	// SendAuthWait reports the 1-based queue position; zero means the
	// session was just promoted out of the queue.
	SendAuthWait(position int)
	// SendLines delivers a rendered announcement, one element per line.
	SendLines(lines []string)
	// Kick notifies the client it is being disconnected.
	Kick()
	// DrainInbound returns buffered inbound frames in arrival order.
	DrainInbound() [][]byte
	// Closed reports whether the transport is gone.
	Closed() bool
	// Close tears the transport down. Called once by the reaper.
	Close()
}

// FrameHandler consumes inbound frames on the world goroutine. The world
// itself never interprets frame contents.
type FrameHandler interface {
	HandleFrame(s *Session, frame []byte)
}

// Session is the world-side state for one connected account. After Enqueue
// hands it over, the world goroutine owns every field; transports interact
// only through the Conn they provided.
type Session struct {
	accountID uint32
	security  Security
	conn      Conn
	handler   FrameHandler

	queued  bool
	loading bool
	kicked  bool
}

func NewSession(accountID uint32, security Security, conn Conn) *Session {
	return &Session{accountID: accountID, security: security, conn: conn}
}

func (s *Session) AccountID() uint32 {
	return s.accountID
}

func (s *Session) Security() Security {
	return s.security
}

func (s *Session) Queued() bool {
	return s.queued
}

func (s *Session) setQueued(queued bool) {
	s.queued = queued
}

// Loading reports whether the session is inside its login critical section.
// Loading sessions refuse kicks until FinishLoading.
func (s *Session) Loading() bool {
	return s.loading
}

func (s *Session) BeginLoading() {
	s.loading = true
}

func (s *Session) FinishLoading() {
	s.loading = false
}

// Kick marks the session for removal and notifies the client. The registry
// excises it on the next per-session update.
func (s *Session) Kick() {
	if s.kicked {
		return
	}
	s.kicked = true
	if s.conn != nil {
		s.conn.Kick()
	}
}

func (s *Session) SendAuthOK() {
	if s.conn != nil {
		s.conn.SendAuthOK()
	}
}

func (s *Session) SendAuthWait(position int) {
	if s.conn != nil {
		s.conn.SendAuthWait(position)
	}
}

func (s *Session) SendLines(lines []string) {
	if s.conn != nil {
		s.conn.SendLines(lines)
	}
}

// Update processes buffered inbound frames and reports whether the session
// should stay registered. A kicked or disconnected session stays alive while
// its login is still in flight; it reports terminal on the first update after
// the load completes.
func (s *Session) Update(diff time.Duration) bool {
	if s.conn != nil {
		for _, frame := range s.conn.DrainInbound() {
			if s.handler != nil {
				s.handler.HandleFrame(s, frame)
			}
		}
	}
	if s.loading {
		return true
	}
	if s.kicked {
		return false
	}
	if s.conn != nil && s.conn.Closed() {
		return false
	}
	return true
}

// destroy releases the transport. Only the end-of-cycle reaper calls it.
func (s *Session) destroy() {
	if s.conn != nil {
		s.conn.Close()
	}
}
