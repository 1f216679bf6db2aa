// Package realtime is the in-process broadcast layer. A Hub keeps a registry
// of named rooms — one per project, one per connected user — and multicasts
// event payloads to every connection in a room. There is no persistence, no
// replay and no acknowledgment; delivery order is guaranteed only per
// connection by the underlying transport.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/devsync-app/devsync/internal/logging"
)

// ProjectRoom names the broadcast room for a project.
func ProjectRoom(projectID uint64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// UserRoom names the personal broadcast room for a user.
func UserRoom(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Message is the frame pushed to clients. ActorID identifies who triggered
// the originating mutation so clients can tell their own echoes apart;
// ProjectID is set on project-scoped events.
type Message struct {
	Event     string      `json:"event"`
	ProjectID uint64      `json:"project_id,omitempty"`
	ActorID   uint64      `json:"actor_id,omitempty"`
	Data      interface{} `json:"data"`
}

type roomMessage struct {
	room    string
	message Message
}

// MembershipChecker gates project-room joins. Only project members may
// subscribe to a project's events.
type MembershipChecker interface {
	IsProjectMember(projectID, userID uint64) bool
}

// Hub maintains the room registry and fans messages out to subscribed
// clients. It is an injectable value, not a singleton, so tests can run one
// per suite and a distributed backend could replace it later.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	broadcast  chan roomMessage
	Register   chan *Client
	Unregister chan *Client

	// done is closed when RunWithContext returns; registration paths select
	// against it so they cannot block on a stopped hub.
	done chan struct{}

	access MembershipChecker
}

// NewHub creates a Hub. The membership checker may be nil, in which case all
// project joins are allowed (used by tests).
func NewHub(access MembershipChecker) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan roomMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		access:     access,
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RegisterClient queues a client for registration. Reports false if the hub
// has already stopped; the caller should close the connection.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// RunWithContext serves registration and broadcast until the context is
// canceled, then closes every connected client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			logging.Info().Str("component", "realtime-hub").Msg("hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case rm := <-h.broadcast:
			h.deliver(rm)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.joinLocked(client, UserRoom(client.userID))
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().
		Uint64("user_id", client.userID).
		Int("total_clients", total).
		Msg("realtime client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	h.closeClientLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().
		Uint64("user_id", client.userID).
		Int("total_clients", total).
		Msg("realtime client disconnected")
}

// JoinProject subscribes a client to a project's room after an access check.
// Non-members are refused; the client sees no difference between a missing
// and a forbidden project. Clients the hub has already dropped are refused
// so they cannot re-enter a room between drop and read-pump exit.
func (h *Hub) JoinProject(client *Client, projectID uint64) bool {
	if h.access != nil && !h.access.IsProjectMember(projectID, client.userID) {
		logging.Warn().
			Uint64("user_id", client.userID).
			Uint64("project_id", projectID).
			Msg("refused project room join")
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return false
	}
	h.joinLocked(client, ProjectRoom(projectID))
	return true
}

// LeaveProject unsubscribes a client from a project's room.
func (h *Hub) LeaveProject(client *Client, projectID uint64) {
	h.mu.Lock()
	h.leaveLocked(client, ProjectRoom(projectID))
	h.mu.Unlock()
}

func (h *Hub) joinLocked(client *Client, room string) {
	if client.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	client.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// Broadcast queues a message for every client in a room. Fire-and-forget: a
// full hub queue drops the message with a warning.
func (h *Hub) Broadcast(room string, msg Message) {
	select {
	case h.broadcast <- roomMessage{room: room, message: msg}:
	default:
		logging.Warn().Str("room", room).Str("event", msg.Event).Msg("broadcast queue full, dropping message")
	}
}

func (h *Hub) deliver(rm roomMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[rm.room]
	var stale []*Client
	for client := range members {
		select {
		case client.send <- rm.message:
		default:
			// Slow consumer; drop the connection rather than block the hub.
			stale = append(stale, client)
		}
	}

	for _, client := range stale {
		delete(h.clients, client)
		for room := range client.rooms {
			h.leaveLocked(client, room)
		}
		h.closeClientLocked(client)
	}
}

// closeClientLocked marks a client dropped and wakes its write pump. The
// send channel itself is never closed: the client's read pump may still be
// running and queueing replies, and a send on a closed channel would panic.
// Callers must hold h.mu.
func (h *Hub) closeClientLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	close(client.done)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		for room := range client.rooms {
			h.leaveLocked(client, room)
		}
		h.closeClientLocked(client)
		delete(h.clients, client)
	}
}

// RoomSize reports how many clients are currently in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsUserConnected reports whether any connection is subscribed to the user's
// personal room.
func (h *Hub) IsUserConnected(userID uint64) bool {
	return h.RoomSize(UserRoom(userID)) > 0
}
