// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package control

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor performs effects. *pixelgen.Generator implements it.
type Executor interface {
	Update(delta float32) error
	Resize(width, height int)
	RequestRedraw()
	RenderFrame() error
	Close() error
}

// Controller feeds events through a Machine and executes the resulting
// effects. It is driven from one goroutine.
type Controller struct {
	machine Machine
	exec    Executor
	state   State
	log     *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger. The default discards output.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController returns a controller in the Idle state.
func NewController(m Machine, exec Executor, opts ...ControllerOption) *Controller {
	c := &Controller{
		machine: m,
		exec:    exec,
		state:   Idle,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Done reports whether the controller reached Closing.
func (c *Controller) Done() bool { return c.state == Closing }

// Handle applies one event. Effects run in order and the first error stops
// the rest. A failed frame leaves the state unchanged.
func (c *Controller) Handle(ev Event) error {
	next, effects := c.machine.Transition(c.state, ev)
	if next != c.state {
		c.log.Info("control: state change", "from", c.state, "to", next)
	}
	c.state = next
	for _, eff := range effects {
		if err := c.apply(eff); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) apply(eff Effect) error {
	switch e := eff.(type) {
	case Rotate:
		if err := c.exec.Update(e.Delta); err != nil {
			return fmt.Errorf("control: rotate %v: %w", e.Delta, err)
		}
	case Resize:
		c.exec.Resize(e.Width, e.Height)
	case RequestRedraw:
		c.exec.RequestRedraw()
	case RenderFrame:
		if err := c.exec.RenderFrame(); err != nil {
			return fmt.Errorf("control: render: %w", err)
		}
	case Exit:
		if err := c.exec.Close(); err != nil {
			return fmt.Errorf("control: close: %w", err)
		}
	default:
		return fmt.Errorf("control: unknown effect %T", eff)
	}
	return nil
}

// Run handles events from ch until the controller closes, ch is closed or
// ctx is done. It returns the first effect error.
func (c *Controller) Run(ctx context.Context, ch <-chan Event) error {
	for !c.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.Handle(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
