package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for room event")
	}
	return Event{}
}

func TestHubOrderingAndReconnect(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := RoomChannel(uuid.New())

	clientA := hub.NewClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(Event{Channel: channel, Event: EventMessageCreated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(Event{Channel: channel, Event: EventAssistantMessageCreated, Data: map[string]any{"seq": 2}})

	if got := recvEvent(t, clientA.Outbound, time.Second); got.Event != EventMessageCreated {
		t.Fatalf("first event: want=%s got=%s", EventMessageCreated, got.Event)
	}
	if got := recvEvent(t, clientA.Outbound, time.Second); got.Event != EventAssistantMessageCreated {
		t.Fatalf("second event: want=%s got=%s", EventAssistantMessageCreated, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close: want 0, got %d", n)
	}

	clientB := hub.NewClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(Event{Channel: channel, Event: EventToolExecuted})
	if got := recvEvent(t, clientB.Outbound, time.Second); got.Event != EventToolExecuted {
		t.Fatalf("reconnect event: want=%s got=%s", EventToolExecuted, got.Event)
	}
}

func TestHubIgnoresOtherRooms(t *testing.T) {
	hub := NewHub(logger.Nop())
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, RoomChannel(uuid.New()))

	hub.Broadcast(Event{Channel: RoomChannel(uuid.New()), Event: EventMessageCreated})
	select {
	case ev := <-client.Outbound:
		t.Fatalf("unexpected event from another room: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
