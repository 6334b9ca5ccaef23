/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Seednode/showbox/events"
)

// Listener receives the payload of a dispatched event.
type Listener func(payload any)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Registry keeps, per event name, the listeners in subscription order.
// Lists are copy-on-write so a dispatch in progress never sees a
// concurrent subscribe or unsubscribe reshuffle its snapshot.
type Registry struct {
	mu     sync.Mutex
	subs   map[events.Name][]*subscription
	logger *slog.Logger
}

// NewRegistry returns an empty Registry. A nil logger means slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		subs:   make(map[events.Name][]*subscription),
		logger: logger,
	}
}

// Subscribe registers fn for name and returns the function that removes it.
// Calling the returned function more than once has no further effect.
func (r *Registry) Subscribe(name events.Name, fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s := &subscription{fn: fn}
	s.active.Store(true)

	r.mu.Lock()
	r.subs[name] = append(slices.Clip(r.subs[name]), s)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(name, s) })
	}
}

func (r *Registry) remove(name events.Name, s *subscription) {
	s.active.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := slices.DeleteFunc(slices.Clone(r.subs[name]), func(x *subscription) bool {
		return x == s
	})
	if len(list) == 0 {
		delete(r.subs, name)
		return
	}
	r.subs[name] = list
}

// Dispatch calls every listener of name, in subscription order, with payload.
// A panicking listener is logged and skipped; the rest still run.
func (r *Registry) Dispatch(name events.Name, payload any) {
	r.mu.Lock()
	list := r.subs[name]
	r.mu.Unlock()

	for _, s := range list {
		// removed while this dispatch was running
		if !s.active.Load() {
			continue
		}
		r.call(name, s.fn, payload)
	}
}

func (r *Registry) call(name events.Name, fn Listener, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked", "event", string(name), "panic", rec)
		}
	}()

	fn(payload)
}

// Len returns the number of listeners registered for name.
func (r *Registry) Len(name events.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subs[name])
}
