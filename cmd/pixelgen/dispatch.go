// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"sync"

	"github.com/gogpu/pixelgen/control"
)

// eventHandler consumes window events. *control.Controller implements it.
type eventHandler interface {
	Handle(ev control.Event) error
}

// dispatcher forwards window events to a handler that only exists after the
// first draw callback. Events that arrive earlier are queued and replayed in
// order by attach.
type dispatcher struct {
	mu      sync.Mutex
	handler eventHandler
	pending []control.Event
}

// attach installs h and replays queued events. It stops at the first error.
func (d *dispatcher) attach(h eventHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handler = h
	pending := d.pending
	d.pending = nil
	for _, ev := range pending {
		if err := h.Handle(ev); err != nil {
			return err
		}
	}
	return nil
}

// dispatch handles ev, or queues it while no handler is attached.
func (d *dispatcher) dispatch(ev control.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler == nil {
		d.pending = append(d.pending, ev)
		return nil
	}
	return d.handler.Handle(ev)
}
