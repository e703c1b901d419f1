// Package eventbus implements the in-process publish/subscribe bus that
// mediates between the pipelines and the handlers registered through
// internal/eventbus's Router. It performs in-process fan-out within one
// task/goroutine context: there is no persistence, no cross-process
// routing, and no backpressure on Emit. It is not a message queue.
package eventbus

import (
	"context"
	"log/slog"
	"sort"

	"github.com/animavtuber/core/internal/event"
)

// Handler receives an emitted event. It may return an error, which the bus
// logs and isolates; a single handler's failure never blocks later
// handlers from receiving the same event.
type Handler func(ctx context.Context, evt event.Out) error

// Subscription is the handle returned by Subscribe/SubscribeAll. Active
// is the sole cancellation mechanism: Unsubscribe flips it to false and an
// inactive subscription is skipped (and later physically swept) on the
// next Emit.
type Subscription struct {
	eventType string
	handler   Handler
	priority  Priority
	isGlobal  bool
	active    bool
}

// Active reports whether this subscription still receives events.
func (s *Subscription) Active() bool { return s.active }

// Bus is the event bus. A Bus is owned by exactly one orchestrator; it is
// not safe to emit into the same Bus re-entrantly from within one of its
// own handlers running on the same goroutine — nested emits are expected
// to be serialized by whatever scheduler drives the owning orchestrator's
// tasks, not by the Bus itself, which holds no lock.
type Bus struct {
	subscribers       map[string][]*Subscription
	globalSubscribers []*Subscription
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]*Subscription)}
}

// Subscribe registers handler for a single event type at the given
// priority. Returns a Subscription used for later cancellation.
func (b *Bus) Subscribe(eventType string, handler Handler, priority Priority) *Subscription {
	sub := &Subscription{eventType: eventType, handler: handler, priority: priority, active: true}
	b.subscribers[eventType] = insertSorted(b.subscribers[eventType], sub)
	slog.Debug("eventbus: subscribe", "type", eventType, "priority", priority)
	return sub
}

// SubscribeAll registers handler for every event type, regardless of
// per-type subscribers.
func (b *Bus) SubscribeAll(handler Handler, priority Priority) *Subscription {
	sub := &Subscription{eventType: "*", handler: handler, priority: priority, isGlobal: true, active: true}
	b.globalSubscribers = insertSorted(b.globalSubscribers, sub)
	slog.Debug("eventbus: subscribe all", "priority", priority)
	return sub
}

// insertSorted inserts sub keeping the slice ordered by descending
// priority (ties keep insertion order, matching a stable sort).
func insertSorted(subs []*Subscription, sub *Subscription) []*Subscription {
	subs = append(subs, sub)
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].priority > subs[j].priority })
	return subs
}

// Unsubscribe marks sub inactive. Returns false if it was already
// inactive. The entry is swept lazily on the next Emit pass over its list
// rather than removed immediately.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil || !sub.active {
		return false
	}
	sub.active = false
	return true
}

// UnsubscribeByType deactivates every subscriber registered for
// eventType and returns how many were deactivated.
func (b *Bus) UnsubscribeByType(eventType string) int {
	subs := b.subscribers[eventType]
	for _, s := range subs {
		s.active = false
	}
	delete(b.subscribers, eventType)
	return len(subs)
}

// Emit dispatches evt to every active subscriber of evt.Type, then to every
// active global subscriber, in strict descending-priority order within
// each list. A handler's error is logged and does not stop dispatch to the
// remaining handlers. Returns the count of handlers that completed without
// error.
func (b *Bus) Emit(ctx context.Context, evt event.Out) int {
	processed := 0
	processed += dispatch(ctx, b.sweepType(string(evt.Type)), evt)
	processed += dispatch(ctx, b.sweepGlobal(), evt)
	return processed
}

func dispatch(ctx context.Context, subs []*Subscription, evt event.Out) int {
	processed := 0
	for _, sub := range subs {
		if !sub.active {
			continue
		}
		if err := invoke(ctx, sub.handler, evt); err != nil {
			slog.Error("eventbus: handler error", "type", evt.Type, "error", err)
			continue
		}
		processed++
	}
	return processed
}

func invoke(ctx context.Context, h Handler, evt event.Out) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{r}
		}
	}()
	return h(ctx, evt)
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "handler panic" }

// sweepType returns the live subscriber list for eventType, physically
// dropping inactive entries accumulated since the last sweep.
func (b *Bus) sweepType(eventType string) []*Subscription {
	subs, ok := b.subscribers[eventType]
	if !ok {
		return nil
	}
	subs = compact(subs)
	if len(subs) == 0 {
		delete(b.subscribers, eventType)
		return nil
	}
	b.subscribers[eventType] = subs
	return subs
}

func (b *Bus) sweepGlobal() []*Subscription {
	b.globalSubscribers = compact(b.globalSubscribers)
	return b.globalSubscribers
}

func compact(subs []*Subscription) []*Subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.active {
			out = append(out, s)
		}
	}
	return out
}

// HasSubscribers reports whether eventType currently has any active
// subscriber.
func (b *Bus) HasSubscribers(eventType string) bool {
	for _, s := range b.subscribers[eventType] {
		if s.active {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of active subscribers for eventType,
// or the total across all types and the global list when eventType is "".
func (b *Bus) SubscriberCount(eventType string) int {
	if eventType != "" {
		count := 0
		for _, s := range b.subscribers[eventType] {
			if s.active {
				count++
			}
		}
		return count
	}
	count := 0
	for _, s := range b.globalSubscribers {
		if s.active {
			count++
		}
	}
	for _, subs := range b.subscribers {
		for _, s := range subs {
			if s.active {
				count++
			}
		}
	}
	return count
}

// Clear deactivates every subscription and empties the bus.
func (b *Bus) Clear() {
	for _, subs := range b.subscribers {
		for _, s := range subs {
			s.active = false
		}
	}
	for _, s := range b.globalSubscribers {
		s.active = false
	}
	b.subscribers = make(map[string][]*Subscription)
	b.globalSubscribers = nil
}
