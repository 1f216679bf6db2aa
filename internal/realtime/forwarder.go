package realtime

import (
	"context"
	"encoding/json"

	"github.com/devsync-app/devsync/internal/events"
)

// Forwarder routes bus events into hub rooms. Notification events go to the
// recipient's personal room; everything else carrying a project ID goes to
// that project's room.
type Forwarder struct {
	hub *Hub
	bus *events.Bus
}

func NewForwarder(hub *Hub, bus *events.Bus) *Forwarder {
	return &Forwarder{hub: hub, bus: bus}
}

// Run subscribes to the event stream and forwards until the context is
// canceled.
func (f *Forwarder) Run(ctx context.Context) error {
	sub := events.NewSubscriber("realtime-forwarder", f.bus)
	return sub.Run(ctx, f.handle)
}

func (f *Forwarder) handle(_ context.Context, env events.Envelope) error {
	room, ok := f.roomFor(env)
	if !ok {
		return nil
	}
	f.hub.Broadcast(room, Message{
		Event:     env.Name,
		ProjectID: env.ProjectID,
		ActorID:   env.ActorID,
		Data:      json.RawMessage(env.Payload),
	})
	return nil
}

func (f *Forwarder) roomFor(env events.Envelope) (string, bool) {
	if env.Name == events.EventNotification {
		if env.UserID == 0 {
			return "", false
		}
		return UserRoom(env.UserID), true
	}
	if env.ProjectID != 0 {
		return ProjectRoom(env.ProjectID), true
	}
	return "", false
}
