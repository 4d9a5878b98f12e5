// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pixelgen

import "errors"

// Generator errors. Backends wrap these so callers can classify failures
// with errors.Is.
var (
	// ErrDeviceUnavailable is returned when no GPU adapter or device can be
	// opened. It is fatal: nothing may proceed past initialization.
	ErrDeviceUnavailable = errors.New("pixelgen: GPU device unavailable")

	// ErrSurfaceUnavailable is returned when the next surface image cannot be
	// acquired, or when it is not an image the backend can present into.
	ErrSurfaceUnavailable = errors.New("pixelgen: surface image unavailable")

	// ErrNotAllocated is returned when a backend is used before Allocate.
	ErrNotAllocated = errors.New("pixelgen: resources not allocated")

	// ErrParameterSize is returned when a parameter write does not cover the
	// whole parameter buffer.
	ErrParameterSize = errors.New("pixelgen: parameter write must overwrite the whole buffer")

	// ErrClosed is returned by operations on a closed generator.
	ErrClosed = errors.New("pixelgen: generator closed")
)
