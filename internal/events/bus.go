package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/devsync-app/devsync/internal/logging"
)

// Topic is the single bus topic all domain events travel on.
const Topic = "devsync.events"

// metadata key holding the event name for cheap inspection without
// unmarshaling the envelope.
const metadataEventName = "event"

// Publisher is the write side of the bus, as seen by services. Tests swap in
// a recording fake.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Bus is an in-process publish/subscribe fan-out. Every active subscriber
// receives every published envelope. Single-process only; scaling across
// processes would need an external broker behind the same interface.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus creates an in-process bus.
func NewBus() *Bus {
	logger := NewWatermillLogger()
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
		logger: logger,
	}
}

// Publish marshals the envelope and hands it to the bus. Delivery is
// fire-and-forget from the caller's perspective.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventName, env.Name)
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.Name, err)
	}
	return nil
}

// Subscribe returns a channel of raw bus messages. Each call creates an
// independent subscription that receives every subsequently published event.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, Topic)
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// DecodeEnvelope unmarshals a bus message back into an Envelope.
func DecodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}

// Subscriber runs a handler for every envelope on the bus until the context
// is canceled. Handler errors are logged and the message acknowledged anyway:
// event delivery is advisory, never transactional with the mutation that
// produced it.
type Subscriber struct {
	name string
	bus  *Bus
}

// NewSubscriber creates a named subscriber on the bus.
func NewSubscriber(name string, bus *Bus) *Subscriber {
	return &Subscriber{name: name, bus: bus}
}

// Run consumes envelopes until ctx is canceled or the bus closes.
func (s *Subscriber) Run(ctx context.Context, handle func(ctx context.Context, env Envelope) error) error {
	messages, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to subscribe: %w", s.name, err)
	}

	logging.Info().Str("subscriber", s.name).Msg("event subscriber started")

	for msg := range messages {
		env, err := DecodeEnvelope(msg)
		if err != nil {
			logging.Error().Err(err).Str("subscriber", s.name).Msg("dropping undecodable event")
			msg.Ack()
			continue
		}

		if err := handle(ctx, env); err != nil {
			logging.Error().Err(err).
				Str("subscriber", s.name).
				Str("event", env.Name).
				Msg("event handler failed")
		}
		msg.Ack()
	}

	logging.Info().Str("subscriber", s.name).Msg("event subscriber stopped")
	return nil
}
