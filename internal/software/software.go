// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software is a CPU reference backend for pixelgen.
//
// It keeps the pixel buffer and parameter buffer in host memory, runs a
// program's host reference over the grid and copies the result into
// *image.RGBA surface images with the same row-major layout the GPU copy
// uses. Tests and headless runs use it in place of a device.
package software

import (
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/pixelgen"
	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

// Image is a host surface image.
type Image struct {
	*image.RGBA
}

// NewImage allocates a width x height image.
func NewImage(width, height int) *Image {
	return &Image{RGBA: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Size returns the image dimensions.
func (m *Image) Size() (width, height int) {
	b := m.Bounds()
	return b.Dx(), b.Dy()
}

// Backend implements pixelgen.Backend on the CPU.
type Backend struct {
	grid    grid.Grid
	program shader.Program
	pixels  []uint32
	params  [camera.GPUSize]byte
	log     *slog.Logger

	allocated bool
	frames    uint64
}

// New returns an unallocated backend.
func New() *Backend {
	return &Backend{log: pixelgen.Logger()}
}

// SetLogger sets the backend logger. Called by pixelgen.SetLogger.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = pixelgen.Logger()
	}
	b.log = l
}

// Allocate creates the pixel buffer (W*H cells) and the parameter buffer.
func (b *Backend) Allocate(g grid.Grid, p shader.Program) error {
	if g.IsZero() {
		return grid.ErrZeroExtent
	}
	if p.Shade == nil {
		return fmt.Errorf("software: %w: %q has no host reference", shader.ErrInvalidProgram, p.Label)
	}
	b.grid = g
	b.program = p
	b.pixels = make([]uint32, g.Cells())
	b.params = [camera.GPUSize]byte{}
	b.allocated = true
	b.log.Info("software: buffers allocated",
		"grid", g.String(), "program", p.Label, "pixel_bytes", g.ByteSize())
	return nil
}

// WriteParameters overwrites the parameter buffer. data must cover it exactly.
func (b *Backend) WriteParameters(data []byte) error {
	if !b.allocated {
		return pixelgen.ErrNotAllocated
	}
	if len(data) != camera.GPUSize {
		return fmt.Errorf("%w: got %d bytes, want %d", pixelgen.ErrParameterSize, len(data), camera.GPUSize)
	}
	copy(b.params[:], data)
	return nil
}

// Direction decodes the camera vector from the parameter buffer.
func (b *Backend) Direction() f32.Vec3 {
	var dir f32.Vec3
	for i := range dir {
		dir[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.params[i*4:]))
	}
	return dir
}

// RenderFrame runs the program over the grid and copies the pixel buffer
// into img, which must be an *Image of exactly the grid size.
func (b *Backend) RenderFrame(img pixelgen.SurfaceImage) error {
	if !b.allocated {
		return pixelgen.ErrNotAllocated
	}
	dst, ok := img.(*Image)
	if !ok {
		return fmt.Errorf("%w: software backend cannot present into %T", pixelgen.ErrSurfaceUnavailable, img)
	}
	if err := b.program.Run(b.grid, b.Direction(), b.pixels); err != nil {
		return fmt.Errorf("software: dispatch: %w", err)
	}
	if err := Blit(dst.RGBA, b.pixels, b.grid); err != nil {
		return err
	}
	b.frames++
	b.log.Debug("software: frame rendered", "frame", b.frames, "grid", b.grid.String())
	return nil
}

// Pixels returns the pixel buffer. It aliases backend memory and is
// overwritten by the next RenderFrame.
func (b *Backend) Pixels() []uint32 { return b.pixels }

// Frames returns the number of rendered frames.
func (b *Backend) Frames() uint64 { return b.frames }

// Close drops the buffers.
func (b *Backend) Close() {
	b.pixels = nil
	b.allocated = false
}

// Blit copies a row-major pixel buffer into dst. Row y of the buffer starts
// at cell y*W and lands on image row y, so pixel (r, c) of dst equals
// src[r*W+c]. dst must be exactly the size of g.
func Blit(dst *image.RGBA, src []uint32, g grid.Grid) error {
	w, h := int(g.Width()), int(g.Height())
	if b := dst.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("software: image %dx%d does not match grid %v", b.Dx(), b.Dy(), g)
	}
	if err := g.CheckCapacity(uint64(len(src)) * grid.CellSize); err != nil {
		return err
	}
	rowBytes := int(g.RowStride())
	for y := range h {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+rowBytes]
		cells := src[y*w : (y+1)*w]
		for x, c := range cells {
			binary.LittleEndian.PutUint32(row[x*grid.CellSize:], c)
		}
	}
	return nil
}
