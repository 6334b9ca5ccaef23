/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package events is the closed catalog of real-time event names used by the
// host dashboard, overlay and player screens, along with the payload each one
// carries on the wire.
//
// Every name is bound to exactly one payload type through an Event descriptor,
// so code that emits or subscribes through the typed helpers in the realtime
// package cannot pair a name with the wrong payload.
package events

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Name is the wire identifier of an event, e.g. "card:use".
type Name string

func (n Name) String() string { return string(n) }

// Event binds a Name to its payload type P.
type Event[P any] struct {
	name Name
}

// Name returns the wire name of the event.
func (e Event[P]) Name() Name { return e.name }

func (e Event[P]) String() string { return string(e.name) }

type entry struct {
	decode func(json.RawMessage) (any, error)
	check  func(any) bool
}

var registry = map[Name]entry{}

func define[P any](name Name) Event[P] {
	if _, ok := registry[name]; ok {
		panic("events: duplicate event name " + string(name))
	}

	registry[name] = entry{
		decode: func(raw json.RawMessage) (any, error) {
			var p P
			if len(raw) == 0 {
				return p, nil
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			return p, nil
		},
		check: func(v any) bool {
			_, ok := v.(P)
			return ok
		},
	}

	return Event[P]{name: name}
}

// The catalog. Connection events are produced by the transport itself; the
// rest travel between the host, the server and the screens.
var (
	ConnectionStatus = define[StatusPayload]("connection:status")
	ConnectionError  = define[ErrorPayload]("connection:error")

	RoundStart   = define[RoundPayload]("round:start")
	RoundEnd     = define[RoundPayload]("round:end")
	QuestionShow = define[QuestionShowPayload]("question:show")
	CardUse      = define[CardUsePayload]("card:use")
	CardResolve  = define[CardResolvePayload]("card:resolve")
	PlayerUpdate = define[PlayerUpdatePayload]("player:update")
	PlayerActive = define[PlayerActivePayload]("player:active")
	TimerUpdate  = define[TimerUpdatePayload]("timer:update")

	OverlayUpdate = define[OverlayUpdatePayload]("overlay:update")
)

// Lookup resolves a raw string to a registered Name.
func Lookup(name string) (Name, error) {
	n := Name(name)
	if _, ok := registry[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return n, nil
}

// Known reports whether name is part of the catalog.
func Known(name Name) bool {
	_, ok := registry[name]
	return ok
}

// Names returns every registered name, sorted.
func Names() []Name {
	names := make([]Name, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Decode parses raw into the payload type registered for name. An empty raw
// message yields the zero payload.
func Decode(name Name, raw json.RawMessage) (any, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, string(name))
	}
	return e.decode(raw)
}

// Check verifies that payload has the Go type registered for name.
func Check(name Name, payload any) error {
	e, ok := registry[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, string(name))
	}
	if !e.check(payload) {
		return fmt.Errorf("%w: %s does not accept %T", ErrPayloadType, name, payload)
	}
	return nil
}
