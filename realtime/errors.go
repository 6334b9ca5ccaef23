/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import "errors"

// These errors never reach callers of Emit or Connect; their messages are
// delivered as connection:error events and kept in LastError.
var (
	// ErrNoAddressConfigured is reported when connecting in live mode before
	// any address was given to Initialize.
	ErrNoAddressConfigured = errors.New("NoAddressConfigured")

	// ErrReconnectExhausted is reported once the retry budget is spent.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrInvalidAddress is reported for addresses that cannot be dialed.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotConnected is logged when a live emit is dropped.
	ErrNotConnected = errors.New("not connected")
)
