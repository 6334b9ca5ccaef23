/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package events

import "errors"

var (
	// ErrUnknownEvent is returned for names outside the catalog.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrPayloadType is returned when a payload does not match its event.
	ErrPayloadType = errors.New("payload type mismatch")
)
