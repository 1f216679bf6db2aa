package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/events"
)

func TestForwarder_RoutesProjectEvents(t *testing.T) {
	hub := NewHub(nil)
	forwarder := NewForwarder(hub, nil)

	room, ok := forwarder.roomFor(events.Envelope{Name: events.EventTaskUpdated, ProjectID: 42, ActorID: 1})
	require.True(t, ok)
	require.Equal(t, ProjectRoom(42), room)
}

func TestForwarder_RoutesNotificationsToPersonalRoom(t *testing.T) {
	forwarder := NewForwarder(NewHub(nil), nil)

	room, ok := forwarder.roomFor(events.Envelope{Name: events.EventNotification, UserID: 7, ActorID: 1})
	require.True(t, ok)
	require.Equal(t, UserRoom(7), room)

	// A notification without a recipient goes nowhere.
	_, ok = forwarder.roomFor(events.Envelope{Name: events.EventNotification})
	require.False(t, ok)
}

func TestForwarder_SkipsEventsWithoutARoom(t *testing.T) {
	forwarder := NewForwarder(NewHub(nil), nil)

	// Team membership events have no project channel.
	_, ok := forwarder.roomFor(events.Envelope{Name: events.EventTeamMemberAdded})
	require.False(t, ok)
}

func TestForwarder_FrameCarriesRoutingFields(t *testing.T) {
	hub := NewHub(nil)
	forwarder := NewForwarder(hub, nil)

	client := NewClient(hub, nil, 1)
	hub.registerClient(client)
	require.True(t, hub.JoinProject(client, 42))

	payload, err := json.Marshal(map[string]uint64{"taskId": 10})
	require.NoError(t, err)

	env := events.Envelope{
		Name:      events.EventTaskDeleted,
		ProjectID: 42,
		ActorID:   9,
		Payload:   payload,
	}
	require.NoError(t, forwarder.handle(nil, env))

	// handle only queues; drain the hub queue by hand.
	hub.deliver(<-hub.broadcast)

	msg := receiveMessage(t, client)
	require.Equal(t, events.EventTaskDeleted, msg.Event)
	require.EqualValues(t, 42, msg.ProjectID)
	require.EqualValues(t, 9, msg.ActorID)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	require.JSONEq(t, `{"taskId":10}`, string(raw))
}
