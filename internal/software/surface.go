// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/gogpu/pixelgen"
)

// Surface is an offscreen presentation target. Every Acquire hands out a
// fresh image; Present records it as the latest frame.
type Surface struct {
	mu        sync.Mutex
	width     int
	height    int
	presented uint64
	last      *Image
	onPresent func(*Image)
}

// NewSurface creates a surface producing width x height images.
func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

// OnPresent registers fn to be called with every presented image.
func (s *Surface) OnPresent(fn func(*Image)) {
	s.mu.Lock()
	s.onPresent = fn
	s.mu.Unlock()
}

// Resize changes the size of images acquired from now on.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

// Acquire returns a new image of the current surface size.
func (s *Surface) Acquire() (pixelgen.SurfaceImage, error) {
	s.mu.Lock()
	w, h := s.width, s.height
	s.mu.Unlock()
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return NewImage(w, h), nil
}

// Present records img as the latest frame.
func (s *Surface) Present(img pixelgen.SurfaceImage) error {
	m, ok := img.(*Image)
	if !ok {
		return pixelgen.ErrSurfaceUnavailable
	}
	s.mu.Lock()
	s.last = m
	s.presented++
	fn := s.onPresent
	s.mu.Unlock()
	if fn != nil {
		fn(m)
	}
	return nil
}

// Last returns the most recently presented image, or nil.
func (s *Surface) Last() *Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Presented returns the number of presented frames.
func (s *Surface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// EncodePNG writes the latest frame to w.
func (s *Surface) EncodePNG(w io.Writer) error {
	last := s.Last()
	if last == nil {
		return pixelgen.ErrSurfaceUnavailable
	}
	return png.Encode(w, image.Image(last.RGBA))
}
