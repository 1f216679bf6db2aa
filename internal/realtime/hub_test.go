package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// allowList gates joins to an explicit set of (project, user) pairs.
type allowList map[[2]uint64]bool

func (a allowList) IsProjectMember(projectID, userID uint64) bool {
	return a[[2]uint64{projectID, userID}]
}

func newTestClient(hub *Hub, userID uint64) *Client {
	return NewClient(hub, nil, userID)
}

func receiveMessage(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func requireNoMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.send:
		t.Fatalf("unexpected message %q", msg.Event)
	default:
	}
}

func TestHub_RegisterJoinsPersonalRoom(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, 7)

	hub.registerClient(client)

	require.Equal(t, 1, hub.ClientCount())
	require.True(t, hub.IsUserConnected(7))
	require.False(t, hub.IsUserConnected(8))

	hub.unregisterClient(client)
	require.Equal(t, 0, hub.ClientCount())
	require.False(t, hub.IsUserConnected(7))

	// Unregistering twice is harmless.
	hub.unregisterClient(client)
}

func TestHub_RoomIsolation(t *testing.T) {
	hub := NewHub(nil)
	inRoom := newTestClient(hub, 1)
	outside := newTestClient(hub, 2)
	hub.registerClient(inRoom)
	hub.registerClient(outside)

	require.True(t, hub.JoinProject(inRoom, 42))

	msg := Message{Event: "task-updated", ProjectID: 42, ActorID: 9}
	hub.deliver(roomMessage{room: ProjectRoom(42), message: msg})

	got := receiveMessage(t, inRoom)
	require.Equal(t, "task-updated", got.Event)
	require.EqualValues(t, 42, got.ProjectID)
	require.EqualValues(t, 9, got.ActorID)

	requireNoMessage(t, outside)
}

func TestHub_JoinProjectRequiresMembership(t *testing.T) {
	access := allowList{{42, 1}: true}
	hub := NewHub(access)
	member := newTestClient(hub, 1)
	outsider := newTestClient(hub, 2)
	hub.registerClient(member)
	hub.registerClient(outsider)

	require.True(t, hub.JoinProject(member, 42))
	require.False(t, hub.JoinProject(outsider, 42))
	// A project that does not exist is refused the same way.
	require.False(t, hub.JoinProject(member, 999))

	require.Equal(t, 1, hub.RoomSize(ProjectRoom(42)))
	require.Equal(t, 0, hub.RoomSize(ProjectRoom(999)))
}

func TestHub_LeaveProjectStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, 1)
	hub.registerClient(client)

	require.True(t, hub.JoinProject(client, 42))
	hub.LeaveProject(client, 42)

	hub.deliver(roomMessage{room: ProjectRoom(42), message: Message{Event: "task-created"}})
	requireNoMessage(t, client)
}

func TestHub_PersonalRoomDelivery(t *testing.T) {
	hub := NewHub(nil)
	recipient := newTestClient(hub, 1)
	other := newTestClient(hub, 2)
	hub.registerClient(recipient)
	hub.registerClient(other)

	hub.deliver(roomMessage{room: UserRoom(1), message: Message{Event: "notification"}})

	require.Equal(t, "notification", receiveMessage(t, recipient).Event)
	requireNoMessage(t, other)
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient(hub, 1)
	hub.registerClient(slow)
	require.True(t, hub.JoinProject(slow, 42))

	// Fill the client's send buffer without draining it.
	for i := 0; i < sendBufferSize+1; i++ {
		hub.deliver(roomMessage{room: ProjectRoom(42), message: Message{Event: "task-updated"}})
	}

	require.Equal(t, 0, hub.ClientCount())
	require.Equal(t, 0, hub.RoomSize(ProjectRoom(42)))

	// The done channel woke the write pump; the buffered messages stay
	// queued and are collected with the client.
	select {
	case <-slow.done:
	default:
		t.Fatal("dropped client was not signalled")
	}
	require.Equal(t, sendBufferSize, len(slow.send))
}

func TestHub_DroppedClientInboundIsInert(t *testing.T) {
	access := allowList{{42, 1}: true}
	hub := NewHub(access)
	slow := newTestClient(hub, 1)
	hub.registerClient(slow)
	require.True(t, hub.JoinProject(slow, 42))

	for i := 0; i < sendBufferSize+1; i++ {
		hub.deliver(roomMessage{room: ProjectRoom(42), message: Message{Event: "task-updated"}})
	}
	require.Equal(t, 0, hub.RoomSize(ProjectRoom(42)))

	// The read pump may still be running after the drop. Its frames must
	// not panic and must not put the client back into a room.
	slow.handleInbound(inboundMessage{Type: "ping"})
	slow.handleInbound(inboundMessage{Type: "join-project", ProjectID: 42})

	require.False(t, hub.JoinProject(slow, 42))
	require.Equal(t, 0, hub.RoomSize(ProjectRoom(42)))

	hub.deliver(roomMessage{room: ProjectRoom(42), message: Message{Event: "task-updated"}})
	hub.deliver(roomMessage{room: UserRoom(1), message: Message{Event: "notification"}})
}

func TestHub_RunWithContext(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- hub.RunWithContext(ctx)
	}()

	client := newTestClient(hub, 1)
	require.True(t, hub.RegisterClient(client))

	require.Eventually(t, func() bool {
		return hub.IsUserConnected(1)
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(UserRoom(1), Message{Event: "notification"})
	require.Equal(t, "notification", receiveMessage(t, client).Event)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// Shutdown signalled the client and refuses late registrations.
	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("client was not signalled on shutdown")
	}
	require.False(t, hub.RegisterClient(newTestClient(hub, 2)))
}
