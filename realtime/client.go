/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package realtime is the event transport shared by the host dashboard, the
// stream overlay and the player screens.
//
// A Client either talks to a live server over a websocket or, in mock mode,
// answers its own events through a mock.Responder. Subscribers cannot tell
// the two apart except by latency. Every dispatch runs on one goroutine per
// Client, in the order it was produced, so listeners never run concurrently
// with each other and may call back into the Client.
//
//	c := realtime.New(realtime.WithLogger(logger))
//	defer c.Close()
//
//	realtime.On(c, events.CardResolve, func(p events.CardResolvePayload) {
//	    // update the board
//	})
//
//	c.Initialize("http://localhost:8080", realtime.DefaultOptions())
//	realtime.Emit(c, events.CardUse, events.CardUsePayload{PlayerID: "p1", CardType: "skip"})
package realtime

import (
	"fmt"
	"log/slog"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
)

// Client is the single entry point for real-time communication. It owns
// exactly one transport; subscriptions survive reconnects and mode changes.
type Client struct {
	listeners *Registry
	loop      *loop
	transport *transport
	logger    *slog.Logger
}

type config struct {
	logger    *slog.Logger
	dialer    Dialer
	responder *mock.Responder
	mock      bool
}

// Option configures a Client.
type Option func(*config)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *config) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithResponder replaces the game show rules used in mock mode.
func WithResponder(r *mock.Responder) Option {
	return func(c *config) {
		if r != nil {
			c.responder = r
		}
	}
}

// WithMock starts the Client in mock mode.
func WithMock(on bool) Option {
	return func(c *config) {
		c.mock = on
	}
}

// New returns a Client in live mode with no address configured, unless
// WithMock(true) is given.
func New(opts ...Option) *Client {
	cfg := config{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.dialer == nil {
		cfg.dialer = WebsocketDialer(nil)
	}
	if cfg.responder == nil {
		cfg.responder = mock.NewGameShow(mock.DefaultCardDelay, mock.WithLogger(cfg.logger))
	}

	c := &Client{
		listeners: NewRegistry(cfg.logger),
		loop:      newLoop(),
		logger:    cfg.logger,
	}
	c.transport = newTransport(c.post, cfg.dialer, cfg.responder, cfg.logger)

	if cfg.mock {
		c.transport.setMock(true)
	}

	return c
}

func (c *Client) post(name events.Name, payload any) {
	c.loop.post(func() {
		c.listeners.Dispatch(name, payload)
	})
}

// Initialize replaces the connection with a new one to address. It dials
// right away when opts.AutoConnect is set and the Client is in live mode.
func (c *Client) Initialize(address string, opts Options) {
	c.transport.initialize(address, opts)
}

// Connect dials the last initialized address, or synthesizes a connection
// in mock mode. Failures are reported as connection:error events.
func (c *Client) Connect() { c.transport.connect() }

// Disconnect closes the connection and cancels any pending retry.
func (c *Client) Disconnect() { c.transport.disconnect() }

// Reconnect is Disconnect followed by Connect, regardless of retry policy.
func (c *Client) Reconnect() { c.transport.reconnect() }

// SetMock switches between mock and live mode. Setting the current mode is
// a no-op.
func (c *Client) SetMock(on bool) { c.transport.setMock(on) }

// Mock reports whether the Client is in mock mode.
func (c *Client) Mock() bool {
	_, _, m := c.transport.snapshot()
	return m
}

// State returns the current connection state.
func (c *Client) State() State {
	s, _, _ := c.transport.snapshot()
	return s
}

// Connected reports whether events can currently be sent.
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// LastError returns the message of the most recent connection error, or ""
// once a connection succeeds.
func (c *Client) LastError() string {
	_, e, _ := c.transport.snapshot()
	return e
}

// Subscribe registers fn for name. Names outside the catalog are accepted
// and simply never fire.
func (c *Client) Subscribe(name events.Name, fn Listener) (unsubscribe func()) {
	if !events.Known(name) {
		c.logger.Debug("subscribing to unknown event", "event", string(name))
	}
	return c.listeners.Subscribe(name, fn)
}

// Emit sends payload as name. The only errors are programming errors: an
// unknown name or a payload of the wrong type. Delivery failures are
// reported through connection:error.
func (c *Client) Emit(name events.Name, payload any) error {
	if err := events.Check(name, payload); err != nil {
		return err
	}

	c.transport.emit(name, payload)

	return nil
}

// Close tears down the connection, cancels timers and stops dispatching.
// Work already queued is still delivered.
func (c *Client) Close() {
	c.transport.close()
	c.loop.close()
}

// On subscribes fn to e with its typed payload.
func On[P any](c *Client, e events.Event[P], fn func(P)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	return c.listeners.Subscribe(e.Name(), func(payload any) {
		p, ok := payload.(P)
		if !ok {
			c.logger.Warn("skipping payload of unexpected type", "event", e.String(), "type", fmt.Sprintf("%T", payload))
			return
		}
		fn(p)
	})
}

// Emit sends a typed payload for e.
func Emit[P any](c *Client, e events.Event[P], payload P) {
	c.transport.emit(e.Name(), payload)
}
