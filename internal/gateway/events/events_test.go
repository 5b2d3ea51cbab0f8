package events

import (
	"context"
	"testing"
	"time"

	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus("recordgate.executed", loggingpkg.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	want := Executed{
		MessageName:   "Create",
		CorrelationID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		DurationMs:    12,
		BatchSize:     0,
	}
	bus.Publish(ctx, want)

	select {
	case msg := <-stream:
		msg.Ack()
		if got := msg.Metadata.Get(MetadataKeyMessageName); got != "Create" {
			t.Fatalf("expected message name header, got %q", got)
		}
		var event Executed
		if err := jsoncodec.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatalf("parsing audit payload: %v", err)
		}
		if event != want {
			t.Fatalf("expected %+v, got %+v", want, event)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for audit event")
	}
}

func TestWatchRecent(t *testing.T) {
	bus := NewBus("recordgate.executed", loggingpkg.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recent, err := bus.WatchRecent(ctx, 2)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	for _, name := range []string{"Create", "Update", "Delete"} {
		bus.Publish(ctx, Executed{MessageName: name})
	}

	// Delivery is asynchronous; wait for the ring to settle on the last two.
	deadline := time.Now().Add(5 * time.Second)
	for {
		snapshot := recent.Snapshot()
		if len(snapshot) == 2 && snapshot[0].MessageName == "Delete" && snapshot[1].MessageName == "Update" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected newest-first [Delete Update], got %+v", snapshot)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus("recordgate.executed", loggingpkg.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), Executed{MessageName: "WhoAmI"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscriber")
	}
}
