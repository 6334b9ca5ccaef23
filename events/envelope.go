/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame exchanged over the websocket.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload for name after checking it against the catalog.
func Encode(name Name, payload any) (Envelope, error) {
	if err := Check(name, payload); err != nil {
		return Envelope{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", name, err)
	}

	return Envelope{Event: name, Data: data}, nil
}

// Payload decodes the envelope data into the registered payload type.
func (e Envelope) Payload() (any, error) {
	return Decode(e.Event, e.Data)
}
