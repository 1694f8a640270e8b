package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
)

const (
	// protocolVersion tracks the wire revision expected by launchers.
	protocolVersion = 1

	writeTimeout     = 10 * time.Second
	maxFrameBytes    = 4096
	maxPendingFrames = 256
)

// Outbound message type identifiers.
const (
	typeAuthOK        = "auth_ok"
	typeQueuePosition = "queue_position"
	typeAnnouncement  = "announcement"
	typeKick          = "kick"
)

type serverMessage struct {
	Ver      int      `json:"ver"`
	Type     string   `json:"type"`
	Position *int     `json:"position,omitempty"`
	Lines    []string `json:"lines,omitempty"`
}

// client adapts one websocket to the world's transport contract. The world
// goroutine calls the send methods; the read pump runs on its own goroutine
// and only touches the inbound buffer and the closed flag.
type client struct {
	id     string
	conn   *websocket.Conn
	logger telemetry.Logger

	writeMu sync.Mutex

	inboundMu sync.Mutex
	inbound   [][]byte
	dropped   int

	closed    atomic.Bool
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, logger telemetry.Logger) *client {
	return &client{id: id, conn: conn, logger: logger}
}

// readPump buffers inbound frames until the socket dies. The world drains
// the buffer every cycle; a client flooding faster than that loses frames
// rather than growing the buffer.
func (c *client) readPump() {
	defer func() {
		c.closed.Store(true)
		c.inboundMu.Lock()
		dropped := c.dropped
		c.inboundMu.Unlock()
		if dropped > 0 && c.logger != nil {
			c.logger.Printf("[gateway] client %s dropped %d inbound frames", c.id, dropped)
		}
	}()
	c.conn.SetReadLimit(maxFrameBytes)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.inboundMu.Lock()
		if len(c.inbound) < maxPendingFrames {
			c.inbound = append(c.inbound, payload)
		} else {
			c.dropped++
		}
		c.inboundMu.Unlock()
	}
}

func (c *client) writeJSON(msg serverMessage) {
	if c.closed.Load() {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[gateway] marshal %s for %s: %v", msg.Type, c.id, err)
		}
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The reaper collects the session once the world notices.
		c.closed.Store(true)
	}
}

func (c *client) SendAuthOK() {
	c.writeJSON(serverMessage{Ver: protocolVersion, Type: typeAuthOK})
}

func (c *client) SendAuthWait(position int) {
	c.writeJSON(serverMessage{Ver: protocolVersion, Type: typeQueuePosition, Position: &position})
}

func (c *client) SendLines(lines []string) {
	c.writeJSON(serverMessage{Ver: protocolVersion, Type: typeAnnouncement, Lines: lines})
}

func (c *client) Kick() {
	c.writeJSON(serverMessage{Ver: protocolVersion, Type: typeKick})
}

func (c *client) DrainInbound() [][]byte {
	c.inboundMu.Lock()
	frames := c.inbound
	c.inbound = nil
	c.inboundMu.Unlock()
	return frames
}

func (c *client) Closed() bool {
	return c.closed.Load()
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage, message)
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
