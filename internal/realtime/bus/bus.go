package bus

import (
	"context"

	"github.com/yungbote/huddle-backend/internal/realtime"
)

// Bus carries room events between processes. Publish is fire-and-forget from
// the caller's point of view: a failed publish never undoes persisted state.
type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}
