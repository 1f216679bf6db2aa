package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
)

func newRawMessage(payload []byte) *message.Message {
	return message.NewMessage(watermill.NewUUID(), payload)
}

func testEnvelope(name string, projectID uint64) Envelope {
	payload, _ := json.Marshal(map[string]string{"hello": "world"})
	return Envelope{
		Name:      name,
		ProjectID: projectID,
		ActorID:   7,
		Payload:   payload,
	}
}

func collectEnvelopes(t *testing.T, ctx context.Context, bus *Bus, name string, out chan<- Envelope) {
	t.Helper()
	sub := NewSubscriber(name, bus)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, env Envelope) error {
			out <- env
			return nil
		})
	}()
}

func TestBus_FanOutToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan Envelope, 1)
	second := make(chan Envelope, 1)
	collectEnvelopes(t, ctx, bus, "first", first)
	collectEnvelopes(t, ctx, bus, "second", second)

	// Give both subscriptions time to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	sent := testEnvelope(EventTaskUpdated, 42)
	require.NoError(t, bus.Publish(ctx, sent))

	for _, ch := range []chan Envelope{first, second} {
		select {
		case env := <-ch:
			require.Equal(t, EventTaskUpdated, env.Name)
			require.EqualValues(t, 42, env.ProjectID)
			require.EqualValues(t, 7, env.ActorID)
			require.JSONEq(t, string(sent.Payload), string(env.Payload))
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive the envelope")
		}
	}
}

func TestSubscriber_ContinuesAfterHandlerError(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan struct{}, 2)

	sub := NewSubscriber("flaky", bus)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, env Envelope) error {
			mu.Lock()
			seen = append(seen, env.Name)
			mu.Unlock()
			done <- struct{}{}
			if env.Name == EventTaskCreated {
				return errors.New("boom")
			}
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.Publish(ctx, testEnvelope(EventTaskCreated, 1)))
	require.NoError(t, bus.Publish(ctx, testEnvelope(EventTaskDeleted, 1)))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber stalled after handler error")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{EventTaskCreated, EventTaskDeleted}, seen)
}

func TestDecodeEnvelope_RejectsGarbage(t *testing.T) {
	env, err := DecodeEnvelope(newRawMessage([]byte("not json")))
	require.Error(t, err)
	require.Empty(t, env.Name)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	sent := testEnvelope(EventCommentAdded, 9)
	sent.UserID = 3

	raw, err := json.Marshal(sent)
	require.NoError(t, err)

	got, err := DecodeEnvelope(newRawMessage(raw))
	require.NoError(t, err)
	require.Equal(t, sent.Name, got.Name)
	require.EqualValues(t, sent.ProjectID, got.ProjectID)
	require.EqualValues(t, sent.UserID, got.UserID)
	require.EqualValues(t, sent.ActorID, got.ActorID)
	require.JSONEq(t, string(sent.Payload), string(got.Payload))
}
