// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package grid describes the per-pixel dispatch grid shared by the compute
// stage and the presentation bridge.
//
// A Grid of width W and height H covers the coordinates [0,W)x[0,H). Each
// coordinate owns exactly one 32-bit cell of the pixel buffer:
//
//	index = y*W + x
//
// The same mapping fixes the row stride the presentation bridge uses when
// copying the pixel buffer into an image (4*W bytes per row). Both sides
// must agree on it or the output appears transposed.
package grid

import (
	"errors"
	"fmt"
)

// CellSize is the size in bytes of one pixel buffer cell (packed RGBA8).
const CellSize = 4

// MaxWorkgroupsPerDimension is the WebGPU default limit on workgroups per
// dispatch dimension. One workgroup is dispatched per pixel, so it bounds
// both width and height.
const MaxWorkgroupsPerDimension = 65535

// Grid errors.
var (
	// ErrZeroExtent is returned when a grid is created with a zero or
	// negative width or height.
	ErrZeroExtent = errors.New("grid: width and height must be greater than zero")

	// ErrExtentTooLarge is returned when a dimension exceeds the dispatch limit.
	ErrExtentTooLarge = errors.New("grid: extent exceeds workgroup dispatch limit")

	// ErrCapacity is returned when a pixel buffer is too small for the grid.
	ErrCapacity = errors.New("grid: buffer capacity smaller than grid")
)

// Grid is a validated width x height dispatch extent.
// The zero value is not a valid grid; use New.
type Grid struct {
	width  uint32
	height uint32
}

// New validates the extent and returns a Grid.
// Zero sizes are rejected here so that no zero-sized dispatch is ever recorded.
func New(width, height int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("%w: got %dx%d", ErrZeroExtent, width, height)
	}
	if width > MaxWorkgroupsPerDimension || height > MaxWorkgroupsPerDimension {
		return Grid{}, fmt.Errorf("%w: got %dx%d, limit %d",
			ErrExtentTooLarge, width, height, MaxWorkgroupsPerDimension)
	}
	return Grid{width: uint32(width), height: uint32(height)}, nil //nolint:gosec // bounded above
}

// MustNew is like New but panics on error. Intended for tests and constants.
func MustNew(width, height int) Grid {
	g, err := New(width, height)
	if err != nil {
		panic(err)
	}
	return g
}

// Width returns the grid width in pixels.
func (g Grid) Width() uint32 { return g.width }

// Height returns the grid height in pixels.
func (g Grid) Height() uint32 { return g.height }

// IsZero reports whether g is the zero (unallocated) grid.
func (g Grid) IsZero() bool { return g.width == 0 || g.height == 0 }

// Cells returns the number of pixel buffer cells, width*height.
func (g Grid) Cells() int {
	return int(g.width) * int(g.height)
}

// ByteSize returns the pixel buffer size in bytes.
func (g Grid) ByteSize() uint64 {
	return uint64(g.width) * uint64(g.height) * CellSize
}

// RowStride returns the number of bytes per image row, 4*width.
func (g Grid) RowStride() uint32 {
	return g.width * CellSize
}

// Index maps a group coordinate to its pixel buffer index.
func (g Grid) Index(x, y uint32) uint32 {
	return y*g.width + x
}

// Coord is the inverse of Index.
func (g Grid) Coord(index uint32) (x, y uint32) {
	return index % g.width, index / g.width
}

// Contains reports whether (x, y) lies inside the grid.
func (g Grid) Contains(x, y uint32) bool {
	return x < g.width && y < g.height
}

// Workgroups returns the dispatch size: one workgroup per pixel.
func (g Grid) Workgroups() (x, y, z uint32) {
	return g.width, g.height, 1
}

// CheckCapacity returns ErrCapacity if a buffer of size bytes cannot hold
// every cell of the grid. Called once at resource creation, never per dispatch.
func (g Grid) CheckCapacity(size uint64) error {
	if size < g.ByteSize() {
		return fmt.Errorf("%w: %d bytes for %dx%d (need %d)",
			ErrCapacity, size, g.width, g.height, g.ByteSize())
	}
	return nil
}

// String returns "WxH".
func (g Grid) String() string {
	return fmt.Sprintf("%dx%d", g.width, g.height)
}
