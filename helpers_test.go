/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
)

const wait = 2 * time.Second

func testConfig() *Config {
	return &Config{
		bind:              "127.0.0.1",
		port:              8080,
		cardDelay:         10 * time.Millisecond,
		connectTimeout:    wait,
		reconnectAttempts: 0,
		reconnectDelay:    10 * time.Millisecond,
	}
}

type testRelay struct {
	srv *httptest.Server
	sm  *ShowManager
}

func newTestRelay(t *testing.T, cfg *Config, b *bridge, r *mock.Responder) *testRelay {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	sm := newShowManager(ctx, cfg, b, r)
	srv := httptest.NewServer(newRouter(cfg, sm, make(chan error, 64)))

	t.Cleanup(func() {
		sm.closeAll()
		srv.Close()
		cancel()
	})

	return &testRelay{srv: srv, sm: sm}
}

func (tr *testRelay) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(tr.srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func (tr *testRelay) waitClients(t *testing.T, showID string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		s, ok := tr.sm.lookup(showID)
		return ok && s.count() == n
	}, wait, 5*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, name events.Name, payload any) {
	t.Helper()

	env, err := events.Encode(name, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) events.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))

	var env events.Envelope
	require.NoError(t, conn.ReadJSON(&env))

	return env
}

// readNothing asserts that no frame arrives within d.
func readNothing(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))

	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

// syncBuffer is written by client listeners while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
