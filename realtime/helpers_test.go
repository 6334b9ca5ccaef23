/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/showbox/events"
)

var errFakeClosed = errors.New("use of closed connection")

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// record subscribes to e and returns the channel its payloads land on.
func record[P any](c *Client, e events.Event[P]) <-chan P {
	ch := make(chan P, 64)
	On(c, e, func(p P) { ch <- p })
	return ch
}

// recv waits for one value so tests never hang.
func recv[P any](t *testing.T, ch <-chan P, within time.Duration) P {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out after %v waiting for %T", within, *new(P))
		var zero P
		return zero
	}
}

func recvNone[P any](t *testing.T, ch <-chan P, within time.Duration) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("expected nothing within %v, got %+v", within, v)
	case <-time.After(within):
	}
}

// recvUntil drains ch until match returns true.
func recvUntil[P any](t *testing.T, ch <-chan P, within time.Duration, match func(P) bool) P {
	t.Helper()

	deadline := time.After(within)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out after %v waiting for matching %T", within, *new(P))
			var zero P
			return zero
		}
	}
}

type fakeConn struct {
	inbound  chan []byte
	outbound chan events.Envelope
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan events.Envelope, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.inbound:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, errFakeClosed
	}
}

func (f *fakeConn) WriteJSON(v any) error {
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}

	env, ok := v.(events.Envelope)
	if !ok {
		return errors.New("unexpected frame")
	}
	f.outbound <- env
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// push delivers an event as if the server had sent it.
func (f *fakeConn) push(t *testing.T, name events.Name, payload any) {
	t.Helper()

	env, err := events.Encode(name, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	f.inbound <- raw
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	fail  error
	block bool

	dials  atomic.Int32
	active atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, url string, _ http.Header) (Conn, error) {
	d.dials.Add(1)
	d.active.Add(1)
	defer d.active.Add(-1)

	d.mu.Lock()
	d.urls = append(d.urls, url)
	fail, block := d.fail, d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail != nil {
		return nil, fail
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()

	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func testOptions() Options {
	o := DefaultOptions()
	o.ReconnectDelay = 10 * time.Millisecond
	o.DialTimeout = time.Second
	return o
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeDialer) {
	t.Helper()

	d := &fakeDialer{}
	c := New(append([]Option{WithDialer(d), WithLogger(quiet())}, opts...)...)
	t.Cleanup(c.Close)

	return c, d
}
