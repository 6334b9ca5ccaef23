/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Seednode/showbox/events"
	"github.com/Seednode/showbox/realtime"
)

func newClient(cfg *Config) *realtime.Client {
	return realtime.New(
		realtime.WithLogger(newLogger(cfg)),
		realtime.WithMock(cfg.mock),
	)
}

// printAll writes every catalog event the client receives to out as an
// envelope per line. Listeners run one at a time, so out needs no lock.
func printAll(c *realtime.Client, out io.Writer) (unsubscribe func()) {
	enc := json.NewEncoder(out)

	var unsubs []func()
	for _, name := range events.Names() {
		unsubs = append(unsubs, c.Subscribe(name, func(payload any) {
			env, err := events.Encode(name, payload)
			if err != nil {
				return
			}
			_ = enc.Encode(env)
		}))
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func runListen(ctx context.Context, cfg *Config, out io.Writer) error {
	c := newClient(cfg)
	defer c.Close()

	defer printAll(c, out)()

	if !cfg.mock {
		c.Initialize(cfg.address, cfg.clientOptions())
	}

	<-ctx.Done()

	return nil
}

func runEmit(ctx context.Context, cfg *Config, out io.Writer, event, data string) error {
	name, err := events.Lookup(event)
	if err != nil {
		return err
	}

	payload, err := events.Decode(name, json.RawMessage(data))
	if err != nil {
		return err
	}

	c := newClient(cfg)
	defer c.Close()

	connected := make(chan struct{}, 1)
	realtime.On(c, events.ConnectionStatus, func(p events.StatusPayload) {
		if !p.Connected {
			return
		}
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	if !cfg.mock {
		c.Initialize(cfg.address, cfg.clientOptions())
	}

	if !c.Connected() {
		select {
		case <-connected:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.connectTimeout):
			if msg := c.LastError(); msg != "" {
				return fmt.Errorf("connect to %s: %s", cfg.address, msg)
			}
			return fmt.Errorf("connect to %s: timed out after %s", cfg.address, cfg.connectTimeout)
		}
	}

	if cfg.wait > 0 {
		defer printAll(c, out)()
	}

	if err := c.Emit(name, payload); err != nil {
		return err
	}

	if cfg.wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(cfg.wait):
		}
	}

	return nil
}
