package event

import (
	"fmt"
	"sync"

	"github.com/beizaplus/commerce-sync/internal/domain/shared"
)

// subscription is one handler bound to the event types it receives
type subscription struct {
	handler shared.EventHandler
	name    string
}

// HandlerRegistry keeps handler subscriptions per event type.
// Handlers are returned in subscription order, so the notification trigger
// registered first runs first.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]subscription
	wildcard []subscription
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]subscription),
	}
}

// Register binds a handler to event types. No types means every event.
// Registering the same handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := subscription{handler: handler, name: handlerName(handler)}
	if len(eventTypes) == 0 {
		if !contains(r.wildcard, handler) {
			r.wildcard = append(r.wildcard, sub)
		}
		return
	}
	for _, eventType := range eventTypes {
		if !contains(r.byType[eventType], handler) {
			r.byType[eventType] = append(r.byType[eventType], sub)
		}
	}
}

// Unregister removes a handler from every event type
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for eventType, subs := range r.byType {
		remaining := without(subs, handler)
		if len(remaining) == 0 {
			delete(r.byType, eventType)
			continue
		}
		r.byType[eventType] = remaining
	}
}

// HandlersFor returns type-specific handlers followed by wildcard handlers
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	subs := r.subscriptionsFor(eventType)
	handlers := make([]shared.EventHandler, 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.handler)
	}
	return handlers
}

// EventTypes lists event types with at least one specific subscription
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	return types
}

func (r *HandlerRegistry) subscriptionsFor(eventType string) []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specific := r.byType[eventType]
	out := make([]subscription, 0, len(specific)+len(r.wildcard))
	out = append(out, specific...)
	return append(out, r.wildcard...)
}

func handlerName(handler shared.EventHandler) string {
	return fmt.Sprintf("%T", handler)
}

func contains(subs []subscription, handler shared.EventHandler) bool {
	for _, s := range subs {
		if s.handler == handler {
			return true
		}
	}
	return false
}

func without(subs []subscription, handler shared.EventHandler) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.handler != handler {
			out = append(out, s)
		}
	}
	return out
}
