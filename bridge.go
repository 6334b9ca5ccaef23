/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Seednode/showbox/events"
)

const (
	bridgePrefix  = "showbox:show:"
	bridgeBacklog = 256
)

// PubSub is the broker a bridge fans show events through.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe delivers messages on every channel matching pattern until
	// ctx is done, then closes the returned channel.
	Subscribe(ctx context.Context, pattern string) (<-chan BrokerMessage, error)
}

type BrokerMessage struct {
	Channel string
	Payload []byte
}

type redisPubSub struct {
	client *redis.Client
}

func newRedisPubSub(ctx context.Context, rawURL string) (*redisPubSub, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &redisPubSub{client: client}, nil
}

func (r *redisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *redisPubSub) Subscribe(ctx context.Context, pattern string) (<-chan BrokerMessage, error) {
	ps := r.client.PSubscribe(ctx, pattern)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	out := make(chan BrokerMessage)

	go func() {
		defer close(out)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- BrokerMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *redisPubSub) Close() error {
	return r.client.Close()
}

type bridgeFrame struct {
	Origin   string          `json:"origin"`
	Envelope events.Envelope `json:"envelope"`
}

type outgoing struct {
	showID string
	env    events.Envelope
}

// bridge republishes every local show event to the broker and hands events
// published by other relays to the matching local show.
type bridge struct {
	cfg    *Config
	origin string
	ps     PubSub
	queue  chan outgoing
}

func newBridge(cfg *Config, ps PubSub) *bridge {
	return &bridge{
		cfg:    cfg,
		origin: uuid.NewString(),
		ps:     ps,
		queue:  make(chan outgoing, bridgeBacklog),
	}
}

// publish never blocks the show loop; events are dropped when the broker
// falls behind.
func (b *bridge) publish(showID string, env events.Envelope) {
	select {
	case b.queue <- outgoing{showID: showID, env: env}:
	default:
		logf(b.cfg, "BRIDGE: Backlog full, dropping %s for show %s", env.Event, showID)
	}
}

// run pumps events both ways until ctx is done.
func (b *bridge) run(ctx context.Context, sm *ShowManager) error {
	in, err := b.ps.Subscribe(ctx, bridgePrefix+"*")
	if err != nil {
		return err
	}

	logf(b.cfg, "BRIDGE: Relaying shows as %s", b.origin)

	go b.send(ctx)

	for msg := range in {
		b.receive(sm, msg)
	}

	return nil
}

func (b *bridge) send(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-b.queue:
			payload, err := json.Marshal(bridgeFrame{Origin: b.origin, Envelope: out.env})
			if err != nil {
				logf(b.cfg, "BRIDGE: Encoding %s: %v", out.env.Event, err)
				continue
			}

			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = b.ps.Publish(pubCtx, bridgePrefix+out.showID, payload)
			cancel()
			if err != nil {
				logf(b.cfg, "BRIDGE: Publishing %s for show %s: %v", out.env.Event, out.showID, err)
			}
		}
	}
}

func (b *bridge) receive(sm *ShowManager, msg BrokerMessage) {
	showID, ok := strings.CutPrefix(msg.Channel, bridgePrefix)
	if !ok || showID == "" {
		return
	}

	var frame bridgeFrame
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		logf(b.cfg, "BRIDGE: Malformed frame on %s: %v", msg.Channel, err)
		return
	}

	if frame.Origin == b.origin {
		return
	}

	if err := checkEvent(frame.Envelope); err != nil {
		logf(b.cfg, "BRIDGE: Rejected %s from %s: %v", frame.Envelope.Event, frame.Origin, err)
		return
	}

	// shows without local screens have nobody to deliver to
	s, ok := sm.lookup(showID)
	if !ok {
		return
	}

	s.deliver(message{env: frame.Envelope, origin: fromBridge, sender: frame.Origin})
}
