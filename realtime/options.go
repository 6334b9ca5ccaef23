/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options configures a connection. They are fixed for the lifetime of the
// connection created by Initialize.
type Options struct {
	// ReconnectAttempts caps automatic retries after a failed dial or a
	// dropped session. Zero disables retries; a negative value never stops.
	ReconnectAttempts int

	// ReconnectDelay is the wait before each retry.
	ReconnectDelay time.Duration

	// ReconnectDelayMax, when greater than ReconnectDelay, turns the delay
	// into a randomized exponential backoff capped at this value.
	ReconnectDelayMax time.Duration

	// Transports is the preferred transport order. Only websocket is
	// implemented; the list is kept for logging.
	Transports []string

	// AutoConnect dials as part of Initialize.
	AutoConnect bool

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Path is used when the address has none.
	Path string

	Header http.Header
}

// DefaultOptions mirrors the settings the show screens have always used.
func DefaultOptions() Options {
	return Options{
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		Transports:        []string{"websocket", "polling"},
		AutoConnect:       true,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		Path:              "/ws",
	}
}

func (o Options) path() string {
	if o.Path == "" {
		return "/ws"
	}
	return o.Path
}

func (o Options) writeTimeout() time.Duration {
	if o.WriteTimeout <= 0 {
		return 10 * time.Second
	}
	return o.WriteTimeout
}

// policy builds the retry schedule for one connection.
func (o Options) policy() backoff.BackOff {
	if o.ReconnectAttempts == 0 {
		return &backoff.StopBackOff{}
	}

	var b backoff.BackOff
	if o.ReconnectDelayMax > o.ReconnectDelay {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = o.ReconnectDelay
		exp.MaxInterval = o.ReconnectDelayMax
		exp.RandomizationFactor = 0.5
		exp.Multiplier = 2
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	} else {
		b = backoff.NewConstantBackOff(o.ReconnectDelay)
	}

	if o.ReconnectAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(o.ReconnectAttempts))
	}

	return b
}
