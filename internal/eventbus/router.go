package eventbus

import (
	"context"
	"log/slog"

	"github.com/animavtuber/core/internal/event"
)

// HandlerFunc is the shape handlers registered with a Router implement.
// Unlike a raw bus Handler, it is always wrapped so the caller never
// repeats try/recover boilerplate.
type HandlerFunc func(ctx context.Context, evt event.Out) error

type registration struct {
	handler  HandlerFunc
	priority Priority
}

type mounted struct {
	eventType string
	sub       *Subscription
}

// Router is a Handler-oriented façade over a Bus. It supports chained
// declarative registration, registration after the router has already been
// activated, and a single clean teardown that actually removes
// subscriptions from the bus (not just the router's own bookkeeping).
type Router struct {
	bus        *Bus
	pending    map[string][]registration
	mounted    []mounted
	setupDone  bool
}

// NewRouter creates a router bound to bus.
func NewRouter(bus *Bus) *Router {
	return &Router{bus: bus, pending: make(map[string][]registration)}
}

// Register adds handler for eventType at priority. If Setup has already
// run, the handler is mounted on the bus immediately; otherwise it waits
// for Setup. Returns the router for chaining.
func (r *Router) Register(eventType string, handler HandlerFunc, priority Priority) *Router {
	r.pending[eventType] = append(r.pending[eventType], registration{handler, priority})
	if r.setupDone {
		r.mount(eventType, handler, priority)
	}
	slog.Debug("eventrouter: register", "type", eventType, "priority", priority, "dynamic", r.setupDone)
	return r
}

// RegisterMany registers the same handler for every eventType in types.
func (r *Router) RegisterMany(types []string, handler HandlerFunc, priority Priority) *Router {
	for _, t := range types {
		r.Register(t, handler, priority)
	}
	return r
}

func (r *Router) mount(eventType string, handler HandlerFunc, priority Priority) {
	wrapped := r.wrap(eventType, handler)
	sub := r.bus.Subscribe(eventType, wrapped, priority)
	r.mounted = append(r.mounted, mounted{eventType, sub})
}

// wrap isolates handler's errors: the router logs them and never lets them
// propagate to the bus, so one handler's failure can't stop dispatch to
// others on the same event.
func (r *Router) wrap(eventType string, handler HandlerFunc) Handler {
	return func(ctx context.Context, evt event.Out) error {
		if err := handler(ctx, evt); err != nil {
			slog.Error("eventrouter: handler error", "type", eventType, "error", err)
		}
		return nil
	}
}

// Setup mounts every pending registration onto the bus in one pass and
// marks the router active; subsequent Register calls mount immediately
// after this point. Calling Setup twice is a no-op.
func (r *Router) Setup() {
	if r.setupDone {
		slog.Warn("eventrouter: already set up, skipping")
		return
	}
	total := 0
	for eventType, regs := range r.pending {
		for _, reg := range regs {
			r.mount(eventType, reg.handler, reg.priority)
			total++
		}
	}
	r.setupDone = true
	slog.Info("eventrouter: setup complete", "event_types", len(r.pending), "handlers", total)
}

// Clear unsubscribes every mounted handler from the bus and resets the
// router to its pre-setup state.
func (r *Router) Clear() {
	for _, m := range r.mounted {
		r.bus.Unsubscribe(m.sub)
	}
	r.pending = make(map[string][]registration)
	r.mounted = nil
	r.setupDone = false
	slog.Debug("eventrouter: cleared")
}

// IsSetup reports whether Setup has run.
func (r *Router) IsSetup() bool { return r.setupDone }

// HandlerCount returns the number of pending registrations (mounted or
// not).
func (r *Router) HandlerCount() int {
	n := 0
	for _, regs := range r.pending {
		n += len(regs)
	}
	return n
}
