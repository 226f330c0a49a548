package events

import (
	"sync"

	types "github.com/yungbote/huddle-backend/internal/domain"
)

type Type string

const (
	TypeContent           Type = "content"
	TypeToolResult        Type = "tool_result"
	TypeHeartbeat         Type = "heartbeat"
	TypeModerationBlocked Type = "moderation_blocked"
	TypeComplete          Type = "complete"
	TypeError             Type = "error"
	TypeCancelled         Type = "cancelled"
)

const (
	CancelClientDisconnect = "client_disconnect"
	CancelTimeout          = "timeout"
)

// Event is one SSE frame body. Only the fields relevant to Type are set.
type Event struct {
	Type      Type   `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	Content string `json:"content,omitempty"`

	ToolResult *types.ToolResult `json:"tool_result,omitempty"`

	MessageID   string                  `json:"message_id,omitempty"`
	ToolResults []types.ToolResult      `json:"tool_results,omitempty"`
	Sources     []types.WebSource       `json:"sources,omitempty"`
	Usage       *types.Usage            `json:"usage,omitempty"`
	Moderation  *types.ModerationRecord `json:"moderation,omitempty"`

	Direction  string   `json:"direction,omitempty"`
	Categories []string `json:"categories,omitempty"`

	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Sink interface {
	Emit(ev Event) error
}

type SinkFunc func(ev Event) error

func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// Recorder keeps every emitted event. Used by tests and by the handler when
// a caller wants the full transcript.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
