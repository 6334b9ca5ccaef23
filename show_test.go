/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
	"github.com/Seednode/showbox/realtime"
)

func TestRelay_FansOutToEveryScreen(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	host := tr.dial(t, "/show/abc/ws")
	overlay := tr.dial(t, "/show/abc/ws")
	other := tr.dial(t, "/show/other/ws")
	tr.waitClients(t, "abc", 2)
	tr.waitClients(t, "other", 1)

	send(t, host, events.CardUse.Name(), events.CardUsePayload{PlayerID: "p1", CardType: "skip"})

	for _, conn := range []*websocket.Conn{host, overlay} {
		env := readEnvelope(t, conn)
		assert.Equal(t, events.CardUse.Name(), env.Event)

		payload, err := env.Payload()
		require.NoError(t, err)
		assert.Equal(t, events.CardUsePayload{PlayerID: "p1", CardType: "skip"}, payload)
	}

	readNothing(t, other, 50*time.Millisecond)
}

func TestRelay_DefaultShow(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	tr.dial(t, "/ws")

	tr.waitClients(t, defaultShowID, 1)
}

func TestRelay_RejectsBadFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  string
	}{
		{name: "unknown event", frame: `{"event":"card:steal","data":{}}`, want: events.ErrUnknownEvent.Error()},
		{name: "reserved event", frame: `{"event":"connection:status","data":{"connected":false}}`, want: errReservedEvent.Error()},
		{name: "bad payload", frame: `{"event":"timer:update","data":{"timeRemaining":"soon"}}`, want: "decode timer:update"},
		{name: "not json", frame: `card:use`, want: "malformed envelope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestRelay(t, testConfig(), nil, nil)

			sender := tr.dial(t, "/show/abc/ws")
			watcher := tr.dial(t, "/show/abc/ws")
			tr.waitClients(t, "abc", 2)

			require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(tc.frame)))

			env := readEnvelope(t, sender)
			require.Equal(t, events.ConnectionError.Name(), env.Event)
			payload, err := env.Payload()
			require.NoError(t, err)
			assert.Contains(t, payload.(events.ErrorPayload).Message, tc.want)

			send(t, sender, events.TimerUpdate.Name(), events.TimerUpdatePayload{TimeRemaining: 5})
			assert.Equal(t, events.TimerUpdate.Name(), readEnvelope(t, watcher).Event)
		})
	}
}

func TestRelay_RealtimeClients(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	opts := realtime.DefaultOptions()
	opts.Path = "/show/live/ws"

	host := realtime.New(realtime.WithLogger(newLogger(testConfig())))
	t.Cleanup(host.Close)
	overlay := realtime.New(realtime.WithLogger(newLogger(testConfig())))
	t.Cleanup(overlay.Close)

	got := make(chan events.QuestionShowPayload, 1)
	realtime.On(overlay, events.QuestionShow, func(p events.QuestionShowPayload) { got <- p })

	host.Initialize(tr.srv.URL, opts)
	overlay.Initialize(tr.srv.URL, opts)
	tr.waitClients(t, "live", 2)
	require.Eventually(t, host.Connected, wait, 5*time.Millisecond)

	q := events.Question{ID: "q1", Text: "Largest planet?", Answer: "Jupiter", Options: []string{"Mars", "Jupiter"}}
	realtime.Emit(host, events.QuestionShow, events.QuestionShowPayload{Question: q})

	select {
	case p := <-got:
		assert.Equal(t, q, p.Question)
	case <-time.After(wait):
		t.Fatal("overlay never received question:show")
	}
}

func TestRelay_Respond(t *testing.T) {
	cfg := testConfig()
	responder := mock.NewGameShow(cfg.cardDelay, mock.WithLogger(newLogger(cfg)))
	tr := newTestRelay(t, cfg, nil, responder)

	player := tr.dial(t, "/show/abc/ws")
	tr.waitClients(t, "abc", 1)

	send(t, player, events.CardUse.Name(), events.CardUsePayload{PlayerID: "p1", CardType: "skip"})

	assert.Equal(t, events.CardUse.Name(), readEnvelope(t, player).Event)

	env := readEnvelope(t, player)
	require.Equal(t, events.CardResolve.Name(), env.Event)
	payload, err := env.Payload()
	require.NoError(t, err)
	assert.Equal(t, events.CardResolvePayload{PlayerID: "p1", CardType: "skip", Success: true}, payload)

	send(t, player, events.RoundStart.Name(), events.RoundPayload{RoundType: "final"})

	assert.Equal(t, events.RoundStart.Name(), readEnvelope(t, player).Event)
	env = readEnvelope(t, player)
	require.Equal(t, events.OverlayUpdate.Name(), env.Event)
	assert.JSONEq(t, `{"question":null,"activePlayerId":null}`, string(env.Data))
}

func TestRelay_QRCode(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	resp, err := http.Get(tr.srv.URL + "/show/abc/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), body[:4])
}

func TestRelay_NewShowRedirect(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(tr.srv.URL + "/show")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, `^/show/[a-z2-7]{8}$`, resp.Header.Get("Location"))
}

func TestRelay_ShowInfo(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	tr.dial(t, "/show/abc/ws")
	tr.waitClients(t, "abc", 1)

	resp, err := http.Get(tr.srv.URL + "/show/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	var info showInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))

	assert.Equal(t, showInfo{Show: "abc", Clients: 1, Websocket: "/show/abc/ws", QR: "/show/abc/qr"}, info)
}

func TestRelay_PlainRoutes(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	cases := map[string]string{
		"/healthz":    "Ok\n",
		"/version":    "showbox v" + releaseVersion + "\n",
		"/robots.txt": "User-agent: *\nDisallow: /show\n",
	}

	for path, want := range cases {
		resp, err := http.Get(tr.srv.URL + path)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(body), path)
	}

	resp, err := http.Get(tr.srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "<code>card:use</code>")
}

func TestShowManager_ReapsIdleShows(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	conn := tr.dial(t, "/show/abc/ws")
	tr.waitClients(t, "abc", 1)

	tr.sm.reap(time.Now().Add(time.Minute))

	_, ok := tr.sm.lookup("abc")
	assert.False(t, ok)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestShowManager_NewShowIDIsFree(t *testing.T) {
	tr := newTestRelay(t, testConfig(), nil, nil)

	seen := map[string]bool{}
	for range 50 {
		id := tr.sm.newShowID()
		assert.Len(t, id, 8)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestShowManager_ReaperHandlesTinyTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.sessionTimeout = time.Nanosecond

	ctx, cancel := context.WithCancel(context.Background())
	sm := &ShowManager{shows: make(map[string]*Show), idleTimeout: cfg.sessionTimeout, cfg: cfg}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sm.reaperLoop(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(wait):
		t.Fatal("reaper did not stop")
	}
}
