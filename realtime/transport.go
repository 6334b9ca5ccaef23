/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
)

// link is one connection object built by initialize. It survives
// disconnect/connect cycles and is replaced wholesale by the next initialize.
type link struct {
	id       string
	endpoint string
	opts     Options
	policy   backoff.BackOff

	conn   Conn
	cancel context.CancelFunc

	writeMu sync.Mutex
}

// transport owns the live connection, the connection state and the retry
// timer. Every goroutine it starts captures the epoch at start and gives up
// once the epoch has moved on, so a torn down connection can never report
// into its replacement.
type transport struct {
	mu sync.Mutex

	dialer    Dialer
	responder *mock.Responder
	dispatch  func(events.Name, any)
	logger    *slog.Logger

	address string
	opts    Options
	link    *link

	state     State
	lastErr   string
	mock      bool
	epoch     uint64
	mockEpoch uint64
	retry     *time.Timer
	closed    bool
}

func newTransport(dispatch func(events.Name, any), dialer Dialer, responder *mock.Responder, logger *slog.Logger) *transport {
	return &transport{
		dialer:    dialer,
		responder: responder,
		dispatch:  dispatch,
		logger:    logger,
		opts:      DefaultOptions(),
	}
}

func (t *transport) initialize(address string, opts Options) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.initializeLocked(address, opts, opts.AutoConnect)
}

func (t *transport) initializeLocked(address string, opts Options, dial bool) {
	t.teardownLocked()
	t.link = nil
	t.address = address
	t.opts = opts

	if !t.mock {
		t.setStateLocked(Disconnected)
	}

	endpoint, err := websocketURL(address, opts.path())
	if err != nil {
		t.reportLocked(err)
		return
	}

	t.link = &link{
		id:       uuid.NewString(),
		endpoint: endpoint,
		opts:     opts,
		policy:   opts.policy(),
	}

	t.logger.Debug("connection initialized",
		"conn_id", t.link.id,
		"endpoint", endpoint,
		"transports", opts.Transports,
		"reconnect_attempts", opts.ReconnectAttempts,
		"reconnect_delay", opts.ReconnectDelay,
	)

	if dial && !t.mock {
		t.dialLocked(t.link)
	}
}

func (t *transport) connect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if t.mock {
		t.forceConnectedLocked()
		return
	}

	if t.link == nil {
		if t.address == "" {
			t.reportLocked(ErrNoAddressConfigured)
			return
		}
		t.initializeLocked(t.address, t.opts, true)
		return
	}

	if t.state == Connecting || t.state == Connected {
		return
	}

	t.stopRetryLocked()
	t.link.policy.Reset()
	t.dialLocked(t.link)
}

func (t *transport) disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.teardownLocked()
	if t.mock {
		t.mockEpoch++
	}
	t.setStateLocked(Disconnected)
}

func (t *transport) reconnect() {
	t.disconnect()
	t.connect()
}

func (t *transport) setMock(on bool) {
	t.mu.Lock()

	if t.closed || t.mock == on {
		t.mu.Unlock()
		return
	}

	t.mock = on
	t.mockEpoch++

	if on {
		t.teardownLocked()
		t.forceConnectedLocked()
		t.mu.Unlock()
		return
	}

	t.setStateLocked(Disconnected)
	t.mu.Unlock()

	t.reconnect()
}

func (t *transport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.teardownLocked()
	t.closed = true
	t.mockEpoch++
	t.state = Disconnected
}

func (t *transport) emit(name events.Name, payload any) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return
	}

	if t.mock {
		// local echo first, as if the server had bounced it back
		t.dispatch(name, payload)
		epoch := t.mockEpoch
		t.mu.Unlock()

		t.simulate(t.responder.Handle(name, payload), epoch)
		return
	}

	if t.address == "" {
		t.reportLocked(ErrNoAddressConfigured)
		t.mu.Unlock()
		return
	}

	l := t.link
	if t.state != Connected || l == nil || l.conn == nil {
		state := t.state
		t.mu.Unlock()

		t.logger.Warn("dropping event", "event", string(name), "state", state.String(), "error", ErrNotConnected)
		return
	}
	conn := l.conn
	t.mu.Unlock()

	env, err := events.Encode(name, payload)
	if err != nil {
		t.logger.Error("encoding event", "event", string(name), "error", err)
		return
	}

	l.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(l.opts.writeTimeout()))
	err = conn.WriteJSON(env)
	l.writeMu.Unlock()

	if err != nil {
		t.logger.Warn("sending event", "conn_id", l.id, "event", string(name), "error", err)

		t.mu.Lock()
		if t.link == l {
			t.reportLocked(fmt.Errorf("send %s: %w", name, err))
		}
		t.mu.Unlock()
	}
}

func (t *transport) simulate(replies []mock.Reply, epoch uint64) {
	for _, r := range replies {
		if err := events.Check(r.Name, r.Payload); err != nil {
			t.logger.Error("dropping simulated reply", "event", string(r.Name), "error", err)
			continue
		}

		if r.Delay <= 0 {
			t.deliver(r, epoch)
			continue
		}

		time.AfterFunc(r.Delay, func() { t.deliver(r, epoch) })
	}
}

func (t *transport) deliver(r mock.Reply, epoch uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || !t.mock || t.mockEpoch != epoch || t.state != Connected {
		return
	}

	t.dispatch(r.Name, r.Payload)
}

func (t *transport) dialLocked(l *link) {
	t.epoch++
	epoch := t.epoch

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if l.opts.DialTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), l.opts.DialTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	l.cancel = cancel

	t.setStateLocked(Connecting)

	go func() {
		conn, err := t.dialer.Dial(ctx, l.endpoint, l.opts.Header)
		cancel()

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.epoch != epoch || t.link != l || t.closed {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}

		l.cancel = nil

		if err != nil {
			t.dropLocked(l, err)
			return
		}

		l.conn = conn
		l.policy.Reset()
		t.lastErr = ""
		t.setStateLocked(Connected)

		t.logger.Debug("connected", "conn_id", l.id, "endpoint", l.endpoint)

		go t.read(l, conn, epoch)
	}()
}

func (t *transport) read(l *link, conn Conn, epoch uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.epoch == epoch && t.link == l && !t.closed {
				l.conn = nil
				_ = conn.Close()
				t.dropLocked(l, err)
			}
			t.mu.Unlock()
			return
		}

		env, payload, err := decodeEnvelope(data)
		if err != nil {
			t.logger.Warn("dropping inbound message", "conn_id", l.id, "error", err)
			continue
		}

		if env.Event == events.ConnectionStatus.Name() {
			t.logger.Warn("ignoring inbound connection status", "conn_id", l.id)
			continue
		}

		t.mu.Lock()
		if t.epoch == epoch && !t.closed {
			// LastError tracks server errors too
			if p, ok := payload.(events.ErrorPayload); ok && env.Event == events.ConnectionError.Name() {
				t.reportLocked(errors.New(p.Message))
			} else {
				t.dispatch(env.Event, payload)
			}
		}
		t.mu.Unlock()
	}
}

// dropLocked handles a failed dial or a lost session.
func (t *transport) dropLocked(l *link, err error) {
	t.logger.Warn("connection lost", "conn_id", l.id, "endpoint", l.endpoint, "error", err)

	t.setStateLocked(Error)
	t.reportLocked(err)
	t.scheduleRetryLocked(l)
}

func (t *transport) scheduleRetryLocked(l *link) {
	t.stopRetryLocked()

	next := l.policy.NextBackOff()
	if next == backoff.Stop {
		t.setStateLocked(Disconnected)
		t.reportLocked(ErrReconnectExhausted)
		return
	}

	t.logger.Debug("scheduling reconnect", "conn_id", l.id, "delay", next)

	epoch := t.epoch
	var timer *time.Timer
	timer = time.AfterFunc(next, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.retry != timer || t.epoch != epoch || t.link != l || t.closed || t.mock {
			return
		}
		t.retry = nil
		t.dialLocked(l)
	})
	t.retry = timer
}

func (t *transport) stopRetryLocked() {
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
}

// teardownLocked stops everything the current link has in flight.
func (t *transport) teardownLocked() {
	t.epoch++
	t.stopRetryLocked()

	l := t.link
	if l == nil {
		return
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// setStateLocked moves to s and reports a connection:status change whenever
// the connected flag flips.
func (t *transport) setStateLocked(s State) {
	was := t.state == Connected
	t.state = s

	if now := s == Connected; now != was {
		t.dispatch(events.ConnectionStatus.Name(), events.StatusPayload{Connected: now})
	}
}

// forceConnectedLocked is the synthetic connect of mock mode; it always
// reports status.
func (t *transport) forceConnectedLocked() {
	t.state = Connected
	t.lastErr = ""
	t.dispatch(events.ConnectionStatus.Name(), events.StatusPayload{Connected: true})
}

func (t *transport) reportLocked(err error) {
	t.lastErr = err.Error()
	t.dispatch(events.ConnectionError.Name(), events.ErrorPayload{Message: t.lastErr})
}

func (t *transport) snapshot() (State, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state, t.lastErr, t.mock
}

func decodeEnvelope(data []byte) (events.Envelope, any, error) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, fmt.Errorf("malformed envelope: %w", err)
	}

	payload, err := env.Payload()
	if err != nil {
		return env, nil, err
	}

	return env, payload, nil
}
