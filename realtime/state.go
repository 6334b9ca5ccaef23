/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

// State is the connection state owned by the transport.
type State int

const (
	// Disconnected means there is no live connection and no retry pending.
	Disconnected State = iota

	// Connecting means a dial is in flight.
	Connecting

	// Connected means events can be sent. Always true in mock mode unless
	// Disconnect was called.
	Connected

	// Error means the last dial or session failed and a retry is scheduled.
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
