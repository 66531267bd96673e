// Package bus routes outbound replies back to the channel that owns the
// session. Channels (telegram, webhook, cli) subscribe under their name;
// the session key's prefix picks the subscriber.
package bus

import (
	"fmt"
	"sync"

	"github.com/user/agentd/internal/types"
)

// Handler delivers one outbound event to its channel.
type Handler func(event types.OutboundEvent) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty delivery bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers the handler for a channel name, replacing any
// previous handler for that channel.
func (b *Bus) Subscribe(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = handler
}

// Unsubscribe removes the channel's handler.
func (b *Bus) Unsubscribe(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, channel)
}

// Publish routes the event to the handler subscribed under the session
// key's channel prefix.
func (b *Bus) Publish(event types.OutboundEvent) error {
	b.mu.RLock()
	handler, ok := b.handlers[event.SessionKey.Channel()]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no delivery handler for channel %q (session key %s)", event.SessionKey.Channel(), event.SessionKey)
	}
	return handler(event)
}
