// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package control maps window events to generator actions.
//
// Machine is a pure transition function: given the current State and an
// Event it returns the next State and the Effects to perform, in order.
// Controller interprets those effects against an Executor. Keeping the two
// apart lets the input mapping be tested without a window or a device.
//
//	Idle --CloseRequested--> Closing (Exit)
//	Idle --KeyDown(increase)--> Idle (Rotate(+step), RequestRedraw)
//	Idle --KeyDown(decrease)--> Idle (Rotate(-step), RequestRedraw)
//	Idle --RedrawRequested--> Idle (RenderFrame)
//	Idle --Resized--> Idle (Resize, RequestRedraw)
//
// Events addressed to another window, unmapped keys and anything arriving
// after Closing produce no effects.
package control

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// WindowID identifies the window an event is addressed to.
type WindowID uint64

// State is the controller lifecycle state.
type State int

const (
	// Idle waits for events.
	Idle State = iota

	// Closing is terminal; the event loop should exit.
	Closing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Closing:
		return "Closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a window event. The set of events is closed.
type Event interface {
	Target() WindowID
	event()
}

// CloseRequested is sent when the user asks to close the window.
type CloseRequested struct {
	Window WindowID
}

// Resized is sent when the window's drawable size changes.
type Resized struct {
	Window        WindowID
	Width, Height int
}

// KeyDown is sent on a key press.
type KeyDown struct {
	Window WindowID
	Key    gpucontext.Key
}

// RedrawRequested is sent when the window wants a new frame.
type RedrawRequested struct {
	Window WindowID
}

func (e CloseRequested) Target() WindowID  { return e.Window }
func (e Resized) Target() WindowID         { return e.Window }
func (e KeyDown) Target() WindowID         { return e.Window }
func (e RedrawRequested) Target() WindowID { return e.Window }

func (CloseRequested) event()  {}
func (Resized) event()         {}
func (KeyDown) event()         {}
func (RedrawRequested) event() {}

// Effect is an action the interpreter must perform.
type Effect interface {
	effect()
}

// Rotate turns the camera by Delta radians.
type Rotate struct {
	Delta float32
}

// Resize reports the new drawable size. The output resolution stays fixed.
type Resize struct {
	Width, Height int
}

// RequestRedraw asks the window for another frame.
type RequestRedraw struct{}

// RenderFrame renders and presents one frame.
type RenderFrame struct{}

// Exit stops the event loop.
type Exit struct{}

func (Rotate) effect()        {}
func (Resize) effect()        {}
func (RequestRedraw) effect() {}
func (RenderFrame) effect()   {}
func (Exit) effect()          {}

// Bindings maps keys to camera rotation.
type Bindings struct {
	Increase gpucontext.Key
	Decrease gpucontext.Key
	Step     float32
}

// Machine is the transition function for one window.
type Machine struct {
	Window   WindowID
	Bindings Bindings
}

// Transition returns the state after ev and the effects it causes.
func (m Machine) Transition(s State, ev Event) (State, []Effect) {
	if s == Closing || ev == nil || ev.Target() != m.Window {
		return s, nil
	}
	switch e := ev.(type) {
	case CloseRequested:
		return Closing, []Effect{Exit{}}
	case KeyDown:
		switch e.Key {
		case m.Bindings.Increase:
			return s, []Effect{Rotate{Delta: m.Bindings.Step}, RequestRedraw{}}
		case m.Bindings.Decrease:
			return s, []Effect{Rotate{Delta: -m.Bindings.Step}, RequestRedraw{}}
		}
	case RedrawRequested:
		return s, []Effect{RenderFrame{}}
	case Resized:
		return s, []Effect{Resize{Width: e.Width, Height: e.Height}, RequestRedraw{}}
	}
	return s, nil
}
