// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command pixelgen renders one compute-generated color per pixel into a
// 1024x768 window. Q and E turn the camera; closing the window exits.
package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu"

	"github.com/gogpu/pixelgen"
	"github.com/gogpu/pixelgen/control"
	"github.com/gogpu/pixelgen/internal/gpu"
)

// window is the id of the only window.
const window control.WindowID = 1

func main() {
	pixelgen.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := pixelgen.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := runWindow(cfg); err != nil {
		log.Fatal(err)
	}
}

func machine(cfg pixelgen.Config) control.Machine {
	return control.Machine{
		Window: window,
		Bindings: control.Bindings{
			Increase: cfg.IncreaseKey,
			Decrease: cfg.DecreaseKey,
			Step:     cfg.AngleStep,
		},
	}
}

// runWindow drives the generator from gogpu window callbacks.
func runWindow(cfg pixelgen.Config) error {
	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(cfg.Title).
		WithSize(cfg.Width, cfg.Height).
		WithContinuousRender(false))

	var (
		gen          *pixelgen.Generator
		events       dispatcher
		lastW, lastH int
	)
	surface := &windowSurface{}

	// Effect failures have no recovery path.
	fail := func(ev control.Event, err error) {
		pixelgen.Logger().Error("pixelgen: event failed", "event", fmt.Sprintf("%T", ev), "err", err)
		os.Exit(1)
	}
	handle := func(ev control.Event) {
		if err := events.dispatch(ev); err != nil {
			fail(ev, err)
		}
	}

	app.OnDraw(func(dc *gogpu.Context) {
		w, h := dc.Width(), dc.Height()
		if gen == nil {
			provider := app.GPUContextProvider()
			if provider == nil {
				return
			}
			device, err := gpu.FromProvider(provider)
			if err != nil {
				log.Fatalf("pixelgen: %v", err)
			}
			gen, err = pixelgen.New(cfg, device, surface, pixelgen.WithRedrawFunc(app.RequestRedraw))
			if err != nil {
				log.Fatalf("pixelgen: %v", err)
			}
			lastW, lastH = w, h
			ctrl := control.NewController(machine(cfg), gen, control.WithLogger(pixelgen.Logger()))
			if err := events.attach(ctrl); err != nil {
				fail(nil, err)
			}
		}
		if w != lastW || h != lastH {
			lastW, lastH = w, h
			handle(control.Resized{Window: window, Width: w, Height: h})
		}

		view := dc.SurfaceView()
		if view == nil {
			return
		}
		sw, sh := dc.SurfaceSize()
		surface.bind(view, int(sw), int(sh))
		handle(control.RedrawRequested{Window: window})
		surface.unbind()
	})

	app.EventSource().OnKeyPress(func(key gpucontext.Key, _ gpucontext.Modifiers) {
		handle(control.KeyDown{Window: window, Key: key})
	})

	app.OnClose(func() {
		handle(control.CloseRequested{Window: window})
	})

	return app.Run()
}

// windowSurface hands the current draw callback's surface view to the
// generator. The window presents after the callback returns.
type windowSurface struct {
	view          *wgpu.TextureView
	width, height int
}

func (s *windowSurface) bind(view *wgpu.TextureView, w, h int) {
	s.view, s.width, s.height = view, w, h
}

func (s *windowSurface) unbind() {
	s.view = nil
}

func (s *windowSurface) Acquire() (pixelgen.SurfaceImage, error) {
	if s.view == nil {
		return nil, errors.New("no surface view outside the draw callback")
	}
	return gpu.NewSurfaceImage(s.view, s.width, s.height)
}

func (s *windowSurface) Present(pixelgen.SurfaceImage) error { return nil }
