/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package mock synthesizes the follow-up events a live server would send
// back, so a client in simulated mode looks the same to its subscribers as
// one talking to a real peer.
//
// Reactions are kept in a table of rules keyed by event name; the transport
// only knows how to schedule what a rule returns.
package mock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Seednode/showbox/events"
)

// Reply is a follow-up event produced by a rule.
type Reply struct {
	Name    events.Name
	Payload any
	Delay   time.Duration
}

// After returns a copy of r that fires after d.
func (r Reply) After(d time.Duration) Reply {
	r.Delay = d
	return r
}

// Respond builds an immediate reply for e.
func Respond[P any](e events.Event[P], payload P) Reply {
	return Reply{Name: e.Name(), Payload: payload}
}

// Rule reacts to one emitted event.
type Rule struct {
	Event   events.Name
	Respond func(payload any) []Reply
}

// When builds a Rule whose reaction receives the typed payload of e.
// Payloads of any other type produce no replies.
func When[P any](e events.Event[P], fn func(P) []Reply) Rule {
	return Rule{
		Event: e.Name(),
		Respond: func(payload any) []Reply {
			p, ok := payload.(P)
			if !ok {
				return nil
			}
			return fn(p)
		},
	}
}

// Responder maps emitted events to their simulated replies.
type Responder struct {
	mu     sync.RWMutex
	rules  map[events.Name]func(any) []Reply
	logger *slog.Logger
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger sets the logger used to report failing rules.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResponder returns a Responder holding rules. A later rule for the same
// event replaces an earlier one.
func NewResponder(rules []Rule, opts ...Option) *Responder {
	r := &Responder{
		rules:  make(map[events.Name]func(any) []Reply, len(rules)),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, rule := range rules {
		r.rules[rule.Event] = rule.Respond
	}

	return r
}

// Set installs or replaces the rule for rule.Event.
func (r *Responder) Set(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[rule.Event] = rule.Respond
}

// Remove drops the rule for name, if any.
func (r *Responder) Remove(name events.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rules, name)
}

// Events lists the names that have a rule.
func (r *Responder) Events() []events.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]events.Name, 0, len(r.rules))
	for n := range r.rules {
		names = append(names, n)
	}
	return names
}

// Handle returns the replies for an emitted event. Unmapped events yield
// nothing, and a panicking rule is logged and treated as having no replies.
func (r *Responder) Handle(name events.Name, payload any) (replies []Reply) {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	fn, ok := r.rules[name]
	r.mu.RUnlock()
	if !ok || fn == nil {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("mock rule panicked", "event", string(name), "panic", rec)
			replies = nil
		}
	}()

	return fn(payload)
}
