// Package events implements the synchronous lifecycle hooks of §4.7: a
// fixed set of named events, each dispatched in handler registration order,
// with handlers mutating the request/response pair by shared reference.
package events

import "github.com/subzero-cache/subzero/message"

// Name identifies one of the four fixed lifecycle events.
type Name string

// The event names are fixed by §4.7/§6; no others are dispatched.
const (
	CacheAccessed  Name = "cache_accessed"
	OriginRequired Name = "origin_required"
	OriginFetched  Name = "origin_fetched"
	ResponseReady  Name = "response_ready"
)

// Handler observes and may mutate a request/response pair. A non-nil error
// aborts the request as a fault (§7 kind 6).
type Handler func(req *message.Request, res *message.Response) error

// Bus is a name-keyed registry of ordered handlers. The zero value is ready
// to use. A Bus is built once at startup and is read-only for the lifetime
// of the process; Register must not be called concurrently with Fire.
type Bus struct {
	handlers map[Name][]Handler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Name][]Handler)}
}

// Register appends handler to the ordered list for name.
func (b *Bus) Register(name Name, handler Handler) {
	if b.handlers == nil {
		b.handlers = make(map[Name][]Handler)
	}
	b.handlers[name] = append(b.handlers[name], handler)
}

// Fire dispatches name synchronously, in registration order. It returns the
// first handler error, if any, and stops dispatching to later handlers.
func (b *Bus) Fire(name Name, req *message.Request, res *message.Response) error {
	for _, handler := range b.handlers[name] {
		if err := handler(req, res); err != nil {
			return err
		}
	}
	return nil
}
