package realtime

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devsync-app/devsync/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

var clientSeq atomic.Uint64

// Client is one websocket connection bound to an authenticated user. It owns
// two goroutines: readPump handles control frames from the browser
// (join/leave requests), writePump serializes outbound messages.
type Client struct {
	id     uint64
	userID uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message

	// done is closed by the hub when it drops the client. send is never
	// closed; the read pump may still be queueing replies on it.
	done chan struct{}

	// rooms and closed are mutated only by the hub under its lock.
	rooms  map[string]struct{}
	closed bool
}

// NewClient wraps an upgraded connection for a user. The caller registers it
// with the hub and starts the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint64) *Client {
	return &Client{
		id:     clientSeq.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBufferSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

// inboundMessage is the control frame a browser sends to manage its room
// subscriptions.
type inboundMessage struct {
	Type      string `json:"type"`
	ProjectID uint64 `json:"project_id,omitempty"`
}

type outboundAck struct {
	Type      string `json:"type"`
	ProjectID uint64 `json:"project_id,omitempty"`
	OK        bool   `json:"ok"`
}

// ReadPump consumes control frames until the connection drops, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint64("user_id", c.userID).Msg("websocket read error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logging.Debug().Uint64("user_id", c.userID).Msg("ignoring malformed websocket frame")
			continue
		}
		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg inboundMessage) {
	switch msg.Type {
	case "join-project":
		ok := c.hub.JoinProject(c, msg.ProjectID)
		c.trySend(Message{Event: "join-project-result", Data: outboundAck{Type: "join-project", ProjectID: msg.ProjectID, OK: ok}})
	case "leave-project":
		c.hub.LeaveProject(c, msg.ProjectID)
	case "ping":
		c.trySend(Message{Event: "pong"})
	default:
		logging.Debug().Str("type", msg.Type).Uint64("user_id", c.userID).Msg("unknown websocket message type")
	}
}

func (c *Client) trySend(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
	}
}

// WritePump serializes queued messages to the connection and keeps it alive
// with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
