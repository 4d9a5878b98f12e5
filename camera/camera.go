// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package camera holds the view direction parameter fed to the compute stage.
//
// The direction is derived from a single accumulated angle θ:
//
//	(x, y, z) = (cos θ, sin θ, 0)
//
// The host copy is authoritative. Callers mirror it to the GPU by writing
// Bytes() over the whole parameter buffer after every Update.
package camera

import (
	"encoding/binary"
	"math"

	"golang.org/x/image/math/f32"
)

// GPUSize is the size of the GPU parameter buffer in bytes.
// A WGSL uniform vec3<f32> occupies 16 bytes, so the vector is padded.
const GPUSize = 16

// DefaultStep is the angle change in radians applied per key press.
const DefaultStep float32 = 0.1

// Camera is the parameter store. The zero value is not ready; use New.
type Camera struct {
	angle float32
	dir   f32.Vec3
}

// New returns a camera at θ = 0, looking along (1, 0, 0).
func New() *Camera {
	c := &Camera{}
	c.recompute()
	return c
}

// Update adds delta radians to θ and recomputes the direction.
// θ is unbounded; the trigonometric functions wrap it.
func (c *Camera) Update(delta float32) {
	c.angle += delta
	c.recompute()
}

func (c *Camera) recompute() {
	a := float64(c.angle)
	c.dir = f32.Vec3{float32(math.Cos(a)), float32(math.Sin(a)), 0}
}

// Angle returns the accumulated angle θ in radians.
func (c *Camera) Angle() float32 { return c.angle }

// Vector returns the current direction.
func (c *Camera) Vector() f32.Vec3 { return c.dir }

// Bytes encodes the direction as the GPU uniform layout: three little-endian
// float32 components followed by 4 bytes of padding.
func (c *Camera) Bytes() []byte {
	buf := make([]byte, GPUSize)
	for i, v := range c.dir {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
