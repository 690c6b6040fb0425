package bus

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 128

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	TryPublish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus fans messages out to topic subscribers. Publish waits for every
// subscriber to have room; TryPublish skips subscribers whose buffer is full
// and suits periodic state such as telemetry snapshots.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
	closed atomic.Bool
}

func New(logger *slog.Logger) *PubSubBus {
	return NewWithCapacity(logger, defaultCapacity)
}

func NewWithCapacity(logger *slog.Logger, capacity int) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger.With("component", "bus"),
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	if b.closed.Load() {
		return
	}
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) TryPublish(topic string, msg any) {
	if b.closed.Load() {
		return
	}
	b.ps.TryPub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)

	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if b.closed.Load() {
		return
	}
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")

		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

// Close shuts the bus down and closes every subscription channel. Later
// publishes are ignored.
func (b *PubSubBus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
