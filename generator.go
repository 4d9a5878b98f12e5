// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pixelgen

import (
	"fmt"

	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

// SurfaceImage is the destination image of one frame. It is acquired from a
// Surface, written once by the backend, then presented and never reused.
type SurfaceImage interface {
	Size() (width, height int)
}

// Surface hands out surface images and takes them back for presentation.
//
// Acquire may block until the presentation queue has a free slot; that is
// the only backpressure between the host and the display.
type Surface interface {
	Acquire() (SurfaceImage, error)
	Present(img SurfaceImage) error
}

// Backend owns the GPU-resident pixel and parameter buffers and executes
// frames on a device.
//
// Allocate is called once before anything else. WriteParameters overwrites
// the whole parameter buffer at offset 0 and is ordered before every later
// RenderFrame. RenderFrame dispatches the pixel program over the full grid
// and copies the pixel buffer into img as one submission.
type Backend interface {
	Allocate(g grid.Grid, p shader.Program) error
	WriteParameters(data []byte) error
	RenderFrame(img SurfaceImage) error
	Close()
}

// Generator is the application state: the camera parameter, the dispatch
// grid and the backend that holds their GPU mirrors.
//
// Generator implements control.Executor. It is driven from the single event
// loop goroutine and is not safe for concurrent use.
type Generator struct {
	cfg     Config
	grid    grid.Grid
	camera  *camera.Camera
	backend Backend
	surface Surface

	redraw        func()
	redrawPending bool
	frames        uint64
	closed        bool
}

// Option configures a Generator during creation.
type Option func(*Generator)

// WithRedrawFunc sets the function called by RequestRedraw, typically the
// window's redraw request. Without it RequestRedraw only marks a redraw as
// pending (see RedrawPending).
func WithRedrawFunc(fn func()) Option {
	return func(g *Generator) {
		g.redraw = fn
	}
}

// New validates cfg, allocates the pixel and parameter buffers on backend and
// uploads the initial camera direction. Any error is an initialization
// failure; the backend is closed before returning it.
func New(cfg Config, backend Backend, surface Surface, opts ...Option) (*Generator, error) {
	g, err := validate(cfg)
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, err
	}

	gen := &Generator{
		cfg:     cfg,
		grid:    g,
		camera:  camera.New(),
		backend: backend,
		surface: surface,
	}
	for _, opt := range opts {
		opt(gen)
	}

	trackBackend(backend)
	if err := backend.Allocate(g, cfg.Program); err != nil {
		gen.release()
		return nil, fmt.Errorf("pixelgen: allocate %v: %w", g, err)
	}
	if err := backend.WriteParameters(gen.camera.Bytes()); err != nil {
		gen.release()
		return nil, fmt.Errorf("pixelgen: upload camera: %w", err)
	}

	Logger().Info("pixelgen: generator ready",
		"grid", g.String(),
		"program", cfg.Program.Label,
		"pixel_bytes", g.ByteSize())
	return gen, nil
}

func validate(cfg Config) (grid.Grid, error) {
	if err := cfg.Validate(); err != nil {
		return grid.Grid{}, err
	}
	if err := cfg.Program.Validate(); err != nil {
		return grid.Grid{}, fmt.Errorf("pixelgen: %w", err)
	}
	return cfg.Grid()
}

// Config returns the configuration the generator was created with.
func (g *Generator) Config() Config { return g.cfg }

// Grid returns the dispatch grid.
func (g *Generator) Grid() grid.Grid { return g.grid }

// Camera returns the parameter store.
func (g *Generator) Camera() *camera.Camera { return g.camera }

// Frames returns the number of frames submitted so far.
func (g *Generator) Frames() uint64 { return g.frames }

// Update turns the camera by delta radians and overwrites the GPU copy.
// The write is queued ahead of any frame rendered afterwards.
func (g *Generator) Update(delta float32) error {
	if g.closed {
		return ErrClosed
	}
	g.camera.Update(delta)
	if err := g.backend.WriteParameters(g.camera.Bytes()); err != nil {
		return fmt.Errorf("pixelgen: write camera: %w", err)
	}
	Logger().Debug("pixelgen: camera updated",
		"angle", g.camera.Angle(),
		"dir", g.camera.Vector())
	return nil
}

// Resize records a new surface size. The output resolution is fixed at
// creation, so the frame is scaled to the surface (GPU) or rejected at copy
// time (software) rather than reallocated.
func (g *Generator) Resize(width, height int) {
	if g.closed {
		return
	}
	if width != int(g.grid.Width()) || height != int(g.grid.Height()) {
		Logger().Warn("pixelgen: surface resized, output resolution unchanged",
			"surface", fmt.Sprintf("%dx%d", width, height),
			"grid", g.grid.String())
	}
}

// RequestRedraw asks for one more frame.
func (g *Generator) RequestRedraw() {
	if g.closed {
		return
	}
	g.redrawPending = true
	if g.redraw != nil {
		g.redraw()
	}
}

// RedrawPending reports whether a redraw was requested since the last frame.
func (g *Generator) RedrawPending() bool { return g.redrawPending }

// RenderFrame runs one frame cycle: acquire the next surface image, dispatch
// the pixel program, copy the pixel buffer into the image, submit, present.
// A zero-sized image (minimized window) skips the frame.
func (g *Generator) RenderFrame() error {
	if g.closed {
		return ErrClosed
	}
	g.redrawPending = false

	img, err := g.surface.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	if w, h := img.Size(); w <= 0 || h <= 0 {
		Logger().Debug("pixelgen: skipping frame for empty surface", "width", w, "height", h)
		return nil
	}
	if err := g.backend.RenderFrame(img); err != nil {
		return fmt.Errorf("pixelgen: render frame %d: %w", g.frames, err)
	}
	if err := g.surface.Present(img); err != nil {
		return fmt.Errorf("pixelgen: present frame %d: %w", g.frames, err)
	}
	g.frames++
	return nil
}

// Close releases the backend. It is safe to call more than once.
func (g *Generator) Close() error {
	if g.closed {
		return nil
	}
	g.release()
	Logger().Info("pixelgen: generator closed", "frames", g.frames)
	return nil
}

func (g *Generator) release() {
	g.closed = true
	untrackBackend(g.backend)
	g.backend.Close()
}
