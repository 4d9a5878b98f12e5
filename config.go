// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pixelgen

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

// Default configuration values.
const (
	DefaultTitle  = "pixelgen"
	DefaultWidth  = 1024
	DefaultHeight = 768
)

// Config holds the fixed startup configuration. Nothing in it changes after
// the generator is created.
//
// Example:
//
//	cfg := pixelgen.DefaultConfig().
//	    WithSize(800, 600).
//	    WithProgram(shader.Direction)
type Config struct {
	// Title is the window title.
	Title string

	// Width and Height are the output resolution in pixels.
	Width, Height int

	// IncreaseKey adds AngleStep to the camera angle, DecreaseKey subtracts it.
	IncreaseKey gpucontext.Key
	DecreaseKey gpucontext.Key

	// AngleStep is the angle change in radians per key press.
	AngleStep float32

	// Program is the pixel program run by the compute stage.
	Program shader.Program
}

// DefaultConfig returns a 1024x768 configuration that turns the camera with
// Q and E in 0.1 radian steps and fills the screen with the magenta sentinel.
func DefaultConfig() Config {
	return Config{
		Title:       DefaultTitle,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		IncreaseKey: gpucontext.KeyQ,
		DecreaseKey: gpucontext.KeyE,
		AngleStep:   camera.DefaultStep,
		Program:     shader.Fill,
	}
}

// WithTitle returns a copy of c with the given window title.
func (c Config) WithTitle(title string) Config {
	c.Title = title
	return c
}

// WithSize returns a copy of c with the given output resolution.
func (c Config) WithSize(width, height int) Config {
	c.Width = width
	c.Height = height
	return c
}

// WithKeys returns a copy of c with the given increase and decrease keys.
func (c Config) WithKeys(increase, decrease gpucontext.Key) Config {
	c.IncreaseKey = increase
	c.DecreaseKey = decrease
	return c
}

// WithAngleStep returns a copy of c with the given step in radians.
func (c Config) WithAngleStep(step float32) Config {
	c.AngleStep = step
	return c
}

// WithProgram returns a copy of c running the given pixel program.
func (c Config) WithProgram(p shader.Program) Config {
	c.Program = p
	return c
}

// Grid returns the dispatch grid for the configured resolution.
func (c Config) Grid() (grid.Grid, error) {
	return grid.New(c.Width, c.Height)
}

// Validate checks the configuration without touching the GPU.
func (c Config) Validate() error {
	if _, err := c.Grid(); err != nil {
		return fmt.Errorf("pixelgen: resolution: %w", err)
	}
	if c.IncreaseKey == c.DecreaseKey {
		return errors.New("pixelgen: increase and decrease keys must differ")
	}
	if c.AngleStep <= 0 {
		return fmt.Errorf("pixelgen: angle step must be positive, got %v", c.AngleStep)
	}
	if c.Program.Shade == nil || c.Program.EntryPoint == "" {
		return fmt.Errorf("pixelgen: %w: %q", shader.ErrInvalidProgram, c.Program.Label)
	}
	return nil
}
