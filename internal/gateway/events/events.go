// Package events publishes an audit event for every executed message on an
// in-process bus. The status surface subscribes to the same bus; nothing
// here touches the wire protocol.
package events

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	idspkg "github.com/recordwire/recordgate/internal/gateway/ids"
	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
)

// Executed is the audit payload emitted after each engine call.
type Executed struct {
	MessageName   string `json:"message_name"`
	CorrelationID string `json:"correlation_id,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	Fault         bool   `json:"fault"`
	BatchSize     int    `json:"batch_size,omitempty"`
}

// MetadataKeyMessageName carries the message name as a header so subscribers
// can filter without unmarshalling the payload.
const MetadataKeyMessageName = "recordgate_message_name"

// Bus is the in-process audit pub/sub.
type Bus struct {
	channel *gochannel.GoChannel
	topic   string
	log     loggingpkg.ServiceLogger
}

// NewBus creates an audit bus publishing on topic.
func NewBus(topic string, log loggingpkg.ServiceLogger) *Bus {
	return &Bus{
		channel: gochannel.NewGoChannel(gochannel.Config{}, loggingpkg.NewWatermillAdapter(log)),
		topic:   topic,
		log:     log,
	}
}

// Publish emits one audit event. Failures are logged, never surfaced: audit
// loss must not fail a request that already executed.
func (b *Bus) Publish(ctx context.Context, event Executed) {
	payload, err := jsoncodec.Marshal(event)
	if err != nil {
		b.log.Error("marshalling audit event", err, loggingpkg.LogFields{
			"message": event.MessageName,
		})
		return
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataKeyMessageName, event.MessageName)

	if err := b.channel.Publish(b.topic, msg); err != nil {
		b.log.Error("publishing audit event", err, loggingpkg.LogFields{
			"message": event.MessageName,
		})
	}
}

// Subscribe returns the audit event stream. Subscribers must drain the
// channel; gochannel delivery blocks otherwise.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.channel.Subscribe(ctx, b.topic)
}

// Close shuts the bus down.
func (b *Bus) Close() error {
	return b.channel.Close()
}

// Recent is a bounded, newest-first view of the latest audit events. The
// status surface reports it.
type Recent struct {
	mu     sync.Mutex
	buf    []Executed
	next   int
	filled bool
}

// WatchRecent subscribes to the bus and keeps the last capacity events in a
// ring. The watcher goroutine exits when the bus closes or ctx is cancelled.
func (b *Bus) WatchRecent(ctx context.Context, capacity int) (*Recent, error) {
	if capacity <= 0 {
		capacity = 32
	}
	stream, err := b.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	r := &Recent{buf: make([]Executed, capacity)}
	go func() {
		for msg := range stream {
			var event Executed
			if err := jsoncodec.Unmarshal(msg.Payload, &event); err != nil {
				b.log.Error("parsing audit event", err, loggingpkg.LogFields{
					"message_id": msg.UUID,
				})
				msg.Ack()
				continue
			}
			r.add(event)
			msg.Ack()
		}
	}()
	return r, nil
}

func (r *Recent) add(event Executed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = event
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.filled = true
	}
}

// Snapshot returns the retained events, newest first.
func (r *Recent) Snapshot() []Executed {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.filled {
		size = len(r.buf)
	}
	out := make([]Executed, 0, size)
	for i := 1; i <= size; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}
