/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Showbox relay
//
// The relay is the live peer of the realtime client. Every host, overlay and
// player screen of a show connects to the same websocket; each event a screen
// sends is checked against the event catalog and then fanned out to every
// screen of that show, the sender included.
//
// Routes:
// - $path                 → redirects to a new random show
// - $path/:showid         → show info as JSON
// - $path/:showid/ws      → websocket for that show
// - $path/:showid/qr      → PNG QR code for the show URL
// - /ws                   → websocket for the default show

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/mock"
)

const (
	defaultShowID  = "main"
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var errReservedEvent = errors.New("event is reserved for the transport")

type origin int

const (
	fromClient origin = iota
	fromResponder
	fromBridge
)

func (o origin) String() string {
	switch o {
	case fromClient:
		return "client"
	case fromResponder:
		return "responder"
	case fromBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

type message struct {
	env    events.Envelope
	origin origin
	sender string
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan events.Envelope
}

// Show fans events out to every client connected to one show id.
type Show struct {
	id      string
	clients map[*client]bool

	register chan *client
	unreg    chan *client
	inbound  chan message
	done     chan struct{}
	stop     sync.Once

	bridge    *bridge
	responder *mock.Responder

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newShow(showID string, b *bridge, r *mock.Responder) *Show {
	now := time.Now()
	return &Show{
		id:         showID,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unreg:      make(chan *client),
		inbound:    make(chan message, sendBuffer),
		done:       make(chan struct{}),
		bridge:     b,
		responder:  r,
		createdAt:  now,
		lastActive: now,
	}
}

func (s *Show) run(cfg *Config) {
	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.lastActive = time.Now()
			s.clients[c] = true
			count := len(s.clients)
			s.mu.Unlock()

			logf(cfg, "SHOWS: Client %s joined show %s (%d connected)", c.id, s.id, count)

		case c := <-s.unreg:
			s.mu.Lock()
			s.lastActive = time.Now()
			s.dropLocked(c)
			count := len(s.clients)
			s.mu.Unlock()

			logf(cfg, "SHOWS: Client %s left show %s (%d connected)", c.id, s.id, count)

		case m := <-s.inbound:
			s.handle(cfg, m)

		case <-s.done:
			return
		}
	}
}

func (s *Show) handle(cfg *Config, m message) {
	s.mu.Lock()
	s.lastActive = time.Now()
	for c := range s.clients {
		select {
		case c.send <- m.env:
		default:
			logf(cfg, "SHOWS: Dropping slow client %s from show %s", c.id, s.id)
			s.dropLocked(c)
		}
	}
	s.mu.Unlock()

	if s.bridge != nil && m.origin != fromBridge {
		s.bridge.publish(s.id, m.env)
	}

	if s.responder != nil && m.origin == fromClient {
		s.respond(cfg, m)
	}
}

// respond runs the mock rules against a client event; zero-delay replies
// are broadcast before returning.
func (s *Show) respond(cfg *Config, m message) {
	payload, err := m.env.Payload()
	if err != nil {
		return
	}

	for _, r := range s.responder.Handle(m.env.Event, payload) {
		env, err := events.Encode(r.Name, r.Payload)
		if err != nil {
			logf(cfg, "SHOWS: Skipping reply %s in show %s: %v", r.Name, s.id, err)
			continue
		}

		reply := message{env: env, origin: fromResponder, sender: m.sender}
		if r.Delay <= 0 {
			s.handle(cfg, reply)
			continue
		}

		time.AfterFunc(r.Delay, func() { s.deliver(reply) })
	}
}

// deliver queues m for broadcast unless the show has ended.
func (s *Show) deliver(m message) bool {
	select {
	case s.inbound <- m:
		return true
	case <-s.done:
		return false
	}
}

func (s *Show) join(c *client) bool {
	select {
	case s.register <- c:
		return true
	case <-s.done:
		return false
	}
}

func (s *Show) leave(c *client) {
	select {
	case s.unreg <- c:
	case <-s.done:
	}
}

// sendTo writes env to a single client, if it is still connected.
func (s *Show) sendTo(c *client, env events.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clients[c] {
		return
	}

	select {
	case c.send <- env:
	default:
	}
}

func (s *Show) dropLocked(c *client) {
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Show) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.clients)
}

// closeAll disconnects all clients of this show and stops its loop.
func (s *Show) closeAll() {
	s.stop.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		s.dropLocked(c)
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ShowManager holds a set of shows keyed by show id, so each $path/$showid
// is its own isolated session.
type ShowManager struct {
	mu          sync.Mutex
	shows       map[string]*Show
	idleTimeout time.Duration

	cfg       *Config
	bridge    *bridge
	responder *mock.Responder
}

func newShowManager(ctx context.Context, cfg *Config, b *bridge, r *mock.Responder) *ShowManager {
	sm := &ShowManager{
		shows:       make(map[string]*Show),
		idleTimeout: cfg.sessionTimeout,
		cfg:         cfg,
		bridge:      b,
		responder:   r,
	}
	if sm.idleTimeout > 0 {
		go sm.reaperLoop(ctx)
	}
	return sm
}

func (sm *ShowManager) getShow(showID string) *Show {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.shows[showID]; ok {
		return s
	}

	s := newShow(showID, sm.bridge, sm.responder)
	sm.shows[showID] = s
	go s.run(sm.cfg)

	logf(sm.cfg, "SHOWS: Started show %s", showID)

	return s
}

// lookup returns the show if it is running, without starting one.
func (sm *ShowManager) lookup(showID string) (*Show, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.shows[showID]
	return s, ok
}

// newShowID generates a random show id that no running show uses.
func (sm *ShowManager) newShowID() string {
	for {
		id := strings.ToLower(rand.Text()[:8])

		if _, exists := sm.lookup(id); !exists {
			return id
		}
	}
}

// reaperLoop periodically ends shows that have been idle longer than
// idleTimeout.
func (sm *ShowManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(max(sm.idleTimeout/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sm.closeAll()
			return
		case <-ticker.C:
			sm.reap(time.Now().Add(-sm.idleTimeout))
		}
	}
}

func (sm *ShowManager) reap(cutoff time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, s := range sm.shows {
		s.mu.RLock()
		last := s.lastActive
		s.mu.RUnlock()

		if last.Before(cutoff) {
			delete(sm.shows, id)
			logf(sm.cfg, "SHOWS: Ended idle show %s", id)
			go s.closeAll()
		}
	}
}

func (sm *ShowManager) closeAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, s := range sm.shows {
		delete(sm.shows, id)
		s.closeAll()
	}
}

// checkEnvelope validates a frame sent by a client.
func checkEnvelope(data []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("malformed envelope: %w", err)
	}

	return env, checkEvent(env)
}

// checkEvent rejects unknown and reserved events and undecodable payloads.
func checkEvent(env events.Envelope) error {
	if _, err := events.Lookup(string(env.Event)); err != nil {
		return err
	}

	if env.Event == events.ConnectionStatus.Name() || env.Event == events.ConnectionError.Name() {
		return fmt.Errorf("%w: %s", errReservedEvent, env.Event)
	}

	_, err := env.Payload()
	return err
}

func rejection(err error) events.Envelope {
	env, _ := events.Encode(events.ConnectionError.Name(), events.ErrorPayload{Message: err.Error()})
	return env
}

func serveWS(cfg *Config, sm *ShowManager, fixedID string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		showID := fixedID
		if showID == "" {
			showID = ps.ByName("showid")
		}
		if showID == "" {
			http.Error(w, "missing show id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SHOWS: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan events.Envelope, sendBuffer),
		}

		s := sm.getShow(showID)
		if !s.join(c) {
			_ = conn.Close()
			return
		}

		go c.writePump()
		c.readPump(cfg, s)
	}
}

func (c *client) readPump(cfg *Config, s *Show) {
	defer func() {
		s.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := checkEnvelope(data)
		if err != nil {
			logf(cfg, "SHOWS: Rejected frame from %s in show %s: %v", c.id, s.id, err)
			s.sendTo(c, rejection(err))
			continue
		}

		if !s.deliver(message{env: env, origin: fromClient, sender: c.id}) {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for env := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code pointing screens at the show URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	showID := ps.ByName("showid")
	if showID == "" {
		http.Error(w, "missing show id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

type showInfo struct {
	Show      string `json:"show"`
	Clients   int    `json:"clients"`
	Websocket string `json:"websocket"`
	QR        string `json:"qr"`
}

func serveShowInfo(cfg *Config, path string, sm *ShowManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		showID := ps.ByName("showid")

		info := showInfo{
			Show:      showID,
			Websocket: cfg.prefix + path + "/" + showID + "/ws",
			QR:        cfg.prefix + path + "/" + showID + "/qr",
		}
		if s, ok := sm.lookup(showID); ok {
			info.Clients = s.count()
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(info)
	}
}

// redirectNewShow handles GET /path by generating a new random show id and
// redirecting to /path/:showid.
func redirectNewShow(cfg *Config, path string, sm *ShowManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		showID := sm.newShowID()
		logf(cfg, "SHOWS: Created show %s/%s", path, showID)
		http.Redirect(w, r, cfg.prefix+path+"/"+showID, http.StatusTemporaryRedirect)
	}
}

func registerShows(cfg *Config, path string, sm *ShowManager, mux *httprouter.Router) {
	mux.GET(cfg.prefix+path, redirectNewShow(cfg, path, sm))

	mux.GET(cfg.prefix+path+"/:showid", serveShowInfo(cfg, path, sm))

	mux.GET(cfg.prefix+path+"/:showid/ws", serveWS(cfg, sm, ""))

	mux.GET(cfg.prefix+path+"/:showid/qr", qrHandler)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, sm, defaultShowID))
}
