package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/kafka"
)

func TestHub_SubscribeNotifyUnsubscribe(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe("ask-1")
	other := hub.Subscribe("ask-2")
	assert.Equal(t, 1, hub.Watchers("ask-1"))

	event := &kafka.AuctionEvent{EventType: "bid.placed", AskID: "ask-1"}
	hub.Notify(event)

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	default:
		t.Fatal("watcher did not receive the event")
	}

	select {
	case <-other:
		t.Fatal("watcher of another ask received the event")
	default:
	}

	hub.Unsubscribe("ask-1", ch)
	assert.Equal(t, 0, hub.Watchers("ask-1"))

	_, open := <-ch
	assert.False(t, open, "unsubscribe must close the channel")

	// Notifying with no watchers left is a no-op.
	hub.Notify(event)
}

func TestHub_SlowWatcherDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("ask-1")

	for i := 0; i < cap(ch)+5; i++ {
		hub.Notify(&kafka.AuctionEvent{EventType: "bid.placed", AskID: "ask-1"})
	}

	assert.Len(t, ch, cap(ch))
}

func TestRelay_SkipsOwnOrigin(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("ask-1")
	handler := Relay(hub, "instance-a")

	require.NoError(t, handler(context.Background(), &kafka.AuctionEvent{
		EventType: "bid.placed",
		AskID:     "ask-1",
		Origin:    "instance-a",
	}))
	assert.Empty(t, ch, "own events are delivered by the emitter, not the relay")

	require.NoError(t, handler(context.Background(), &kafka.AuctionEvent{
		EventType: "bid.placed",
		AskID:     "ask-1",
		Origin:    "instance-b",
	}))
	require.Len(t, ch, 1)
	assert.Equal(t, "instance-b", (<-ch).Origin)
}
