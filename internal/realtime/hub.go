package realtime

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type EventName string

const (
	EventMessageCreated          EventName = "chat.message.created"
	EventAssistantMessageCreated EventName = "assistant.message.created"
	EventToolExecuted            EventName = "assistant.tool.executed"
)

// Event is one room-scoped notification. Channel is the room id.
type Event struct {
	Channel string    `json:"channel"`
	Event   EventName `json:"event"`
	Data    any       `json:"data,omitempty"`
}

func RoomChannel(roomID uuid.UUID) string { return "room:" + roomID.String() }

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan Event
	done     chan struct{}
	once     sync.Once
}

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

// Hub fans events out to the clients of this process. Cross-process delivery
// goes through the bus forwarder.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	bufferSize    int
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RoomHub"),
		subscriptions: make(map[string]map[*Client]bool),
		bufferSize:    32,
	}
}

func (h *Hub) NewClient(userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan Event, h.bufferSize),
		done:     make(chan struct{}),
	}
}

func (h *Hub) AddChannel(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true
	h.log.Debug("client subscribed", "client_id", client.ID, "channel", channel)
}

func (h *Hub) removeLocked(client *Client) {
	for ch := range client.Channels {
		if subs, ok := h.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

// Broadcast never blocks: a client with a full buffer misses the event.
func (h *Hub) Broadcast(ev Event) {
	if ev.Channel == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.subscriptions[ev.Channel] {
		select {
		case c.Outbound <- ev:
		default:
			h.log.Warn("dropping room event; outbound buffer full", "client_id", c.ID, "event", ev.Event)
		}
	}
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

func (h *Hub) CloseClient(client *Client) {
	client.once.Do(func() {
		h.mu.Lock()
		h.removeLocked(client)
		close(client.done)
		close(client.Outbound)
		h.mu.Unlock()
	})
}
