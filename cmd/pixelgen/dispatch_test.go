// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelgen/control"
)

type recordingHandler struct {
	events []control.Event
	failOn control.Event
}

var errEffect = errors.New("effect failed")

func (h *recordingHandler) Handle(ev control.Event) error {
	h.events = append(h.events, ev)
	if h.failOn != nil && ev == h.failOn {
		return errEffect
	}
	return nil
}

func TestDispatcherReplaysEarlyEvents(t *testing.T) {
	var d dispatcher
	early := []control.Event{
		control.KeyDown{Window: window, Key: gpucontext.KeyQ},
		control.KeyDown{Window: window, Key: gpucontext.KeyE},
	}
	for _, ev := range early {
		if err := d.dispatch(ev); err != nil {
			t.Fatalf("dispatch before attach = %v", err)
		}
	}

	h := &recordingHandler{}
	if err := d.attach(h); err != nil {
		t.Fatalf("attach = %v", err)
	}
	if !reflect.DeepEqual(h.events, early) {
		t.Fatalf("replayed %v, want %v", h.events, early)
	}

	redraw := control.RedrawRequested{Window: window}
	if err := d.dispatch(redraw); err != nil {
		t.Fatalf("dispatch = %v", err)
	}
	if got := h.events[len(h.events)-1]; got != redraw {
		t.Errorf("last event = %v, want %v", got, redraw)
	}
	if len(d.pending) != 0 {
		t.Errorf("pending = %v after attach", d.pending)
	}
}

func TestDispatcherReportsErrors(t *testing.T) {
	closeEv := control.CloseRequested{Window: window}

	var d dispatcher
	_ = d.dispatch(closeEv)
	if err := d.attach(&recordingHandler{failOn: closeEv}); !errors.Is(err, errEffect) {
		t.Errorf("attach = %v, want replay error", err)
	}

	var live dispatcher
	_ = live.attach(&recordingHandler{failOn: closeEv})
	if err := live.dispatch(closeEv); !errors.Is(err, errEffect) {
		t.Errorf("dispatch = %v, want handler error", err)
	}
}
