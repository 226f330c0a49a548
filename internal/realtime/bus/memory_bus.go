package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/huddle-backend/internal/realtime"
)

type memoryBus struct {
	mu        sync.RWMutex
	listeners []func(realtime.Event)
	closed    bool
}

func NewMemoryBus() Bus { return &memoryBus{} }

func (b *memoryBus) Publish(ctx context.Context, ev realtime.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("room bus closed")
	}
	for _, fn := range b.listeners {
		fn(ev)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("room bus closed")
	}
	b.listeners = append(b.listeners, onEvent)
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = nil
	return nil
}
