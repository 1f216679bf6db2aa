// Package client is the Go client for the DevSync realtime channel. It keeps
// a websocket connection to the server, subscribes to project rooms, and
// reconciles a local cache against broadcast events.
//
// Reconciliation is deliberately uniform: any project event invalidates that
// project's cached data and triggers a re-fetch through the Fetcher, rather
// than patching the cache per event type. Missed events during a disconnect
// are therefore harmless; a reconnect re-fetches everything it watches.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devsync-app/devsync/internal/dto"
	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/logging"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("client closed")

const (
	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// Frame mirrors the server's broadcast message shape.
type Frame struct {
	Event     string          `json:"event"`
	ProjectID uint64          `json:"project_id,omitempty"`
	ActorID   uint64          `json:"actor_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Fetcher loads a project's data from the REST API. The client calls it
// whenever an event invalidates a watched project.
type Fetcher interface {
	FetchTasks(ctx context.Context, projectID uint64) ([]dto.TaskDTO, error)
	FetchLabels(ctx context.Context, projectID uint64) ([]dto.LabelDTO, error)
}

// Handlers are optional callbacks for UI layers. Toast is suppressed for the
// user's own mutations; state updates still happen for them.
type Handlers struct {
	// Toast is called for events triggered by other users.
	Toast func(frame Frame)

	// OnNotification is called for every incoming notification.
	OnNotification func(notification dto.NotificationDTO)

	// OnRefresh is called after a watched project has been re-fetched.
	OnRefresh func(projectID uint64)
}

// Client is a reconnecting realtime client. Safe for concurrent use.
type Client struct {
	url      string
	header   http.Header
	userID   uint64
	fetcher  Fetcher
	handlers Handlers

	mu            sync.RWMutex
	conn          *websocket.Conn
	watched       map[uint64]struct{}
	tasks         map[uint64][]dto.TaskDTO
	labels        map[uint64][]dto.LabelDTO
	notifications []dto.NotificationDTO
	unread        int64
	closed        bool
}

// New creates a client for the given websocket URL. The header carries the
// session cookie; userID is the authenticated user, used to tell own echoes
// apart from other users' mutations.
func New(url string, header http.Header, userID uint64, fetcher Fetcher, handlers Handlers) *Client {
	return &Client{
		url:      url,
		header:   header,
		userID:   userID,
		fetcher:  fetcher,
		handlers: handlers,
		watched:  make(map[uint64]struct{}),
		tasks:    make(map[uint64][]dto.TaskDTO),
		labels:   make(map[uint64][]dto.LabelDTO),
	}
}

// JoinProject subscribes to a project's events and loads its data. The
// subscription survives reconnects.
func (c *Client) JoinProject(ctx context.Context, projectID uint64) error {
	c.mu.Lock()
	c.watched[projectID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.sendJoin(conn, projectID); err != nil {
			return err
		}
	}
	return c.refreshProject(ctx, projectID)
}

// LeaveProject unsubscribes from a project and drops its cached data.
func (c *Client) LeaveProject(projectID uint64) error {
	c.mu.Lock()
	delete(c.watched, projectID)
	delete(c.tasks, projectID)
	delete(c.labels, projectID)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.writeControl(conn, map[string]interface{}{
		"type":       "leave-project",
		"project_id": projectID,
	})
}

// Tasks returns the cached tasks of a watched project.
func (c *Client) Tasks(projectID uint64) []dto.TaskDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]dto.TaskDTO(nil), c.tasks[projectID]...)
}

// Labels returns the cached labels of a watched project.
func (c *Client) Labels(projectID uint64) []dto.LabelDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]dto.LabelDTO(nil), c.labels[projectID]...)
}

// Notifications returns the notifications received this session, newest
// first.
func (c *Client) Notifications() []dto.NotificationDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]dto.NotificationDTO(nil), c.notifications...)
}

// UnreadCount returns the local unread notification counter.
func (c *Client) UnreadCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// MarkAllReadLocally resets the local unread counter, mirroring a read-all
// call made through the REST API.
func (c *Client) MarkAllReadLocally() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread = 0
	for i := range c.notifications {
		c.notifications[i].IsRead = true
	}
}

// Run connects and processes events until the context is canceled or Close
// is called. Dropped connections are retried with exponential backoff; after
// each reconnect every watched project is rejoined and re-fetched.
func (c *Client) Run(ctx context.Context) error {
	delay := reconnectMinDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isClosed() {
			return ErrClosed
		}

		err := c.connectAndServe(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
			return err
		}
		logging.Warn().Err(err).Msg("realtime connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// Close tears the connection down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.conn = conn
	watched := make([]uint64, 0, len(c.watched))
	for projectID := range c.watched {
		watched = append(watched, projectID)
	}
	c.mu.Unlock()

	// Rejoin and re-fetch everything we watch; events may have been missed
	// while disconnected.
	for _, projectID := range watched {
		if err := c.sendJoin(conn, projectID); err != nil {
			return err
		}
		if err := c.refreshProject(ctx, projectID); err != nil {
			logging.Warn().Err(err).Uint64("project_id", projectID).Msg("failed to refresh project after reconnect")
		}
	}

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return ErrClosed
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Event {
	case events.EventNotification:
		c.handleNotification(frame)
		return
	case "join-project-result", "pong":
		return
	}

	projectID := frame.ProjectID
	if projectID == 0 {
		return
	}

	c.mu.RLock()
	_, watching := c.watched[projectID]
	c.mu.RUnlock()
	if !watching {
		return
	}

	if err := c.refreshProject(ctx, projectID); err != nil {
		logging.Warn().Err(err).Uint64("project_id", projectID).Str("event", frame.Event).Msg("failed to refresh project")
		return
	}

	// Own mutations update state silently; only other users' raise a toast.
	if c.handlers.Toast != nil && frame.ActorID != c.userID {
		c.handlers.Toast(frame)
	}
}

func (c *Client) handleNotification(frame Frame) {
	var payload events.NotificationPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.Notification == nil {
		logging.Warn().Err(err).Msg("malformed notification frame")
		return
	}
	notification := dto.ToNotificationDTO(*payload.Notification)

	c.mu.Lock()
	c.notifications = append([]dto.NotificationDTO{notification}, c.notifications...)
	if !notification.IsRead {
		c.unread++
	}
	c.mu.Unlock()

	if c.handlers.OnNotification != nil {
		c.handlers.OnNotification(notification)
	}
}

func (c *Client) refreshProject(ctx context.Context, projectID uint64) error {
	if c.fetcher == nil {
		return nil
	}

	tasks, err := c.fetcher.FetchTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	labels, err := c.fetcher.FetchLabels(ctx, projectID)
	if err != nil {
		return fmt.Errorf("fetch labels: %w", err)
	}

	c.mu.Lock()
	if _, watching := c.watched[projectID]; watching {
		c.tasks[projectID] = tasks
		c.labels[projectID] = labels
	}
	c.mu.Unlock()

	if c.handlers.OnRefresh != nil {
		c.handlers.OnRefresh(projectID)
	}
	return nil
}

func (c *Client) sendJoin(conn *websocket.Conn, projectID uint64) error {
	return c.writeControl(conn, map[string]interface{}{
		"type":       "join-project",
		"project_id": projectID,
	})
}

func (c *Client) writeControl(conn *websocket.Conn, msg map[string]interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}
