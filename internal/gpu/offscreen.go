//go:build !nogpu

package gpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelgen"
)

// copyPitchAlignment is the WebGPU bytesPerRow alignment for texture copies.
const copyPitchAlignment = 256

// Offscreen is a headless surface backed by a device texture. Present reads
// the rendered frame back into host memory.
type Offscreen struct {
	d             *Device
	width, height uint32
	rowPitch      uint32

	tex     hal.Texture
	view    hal.TextureView
	staging hal.Buffer

	last *image.RGBA
}

// NewOffscreen creates a width x height render target in the device format.
func (d *Device) NewOffscreen(width, height int) (*Offscreen, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gpu: offscreen %dx%d: %w", width, height, pixelgen.ErrSurfaceUnavailable)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil, pixelgen.ErrClosed
	}

	w, h := uint32(width), uint32(height) //nolint:gosec // positive, checked above
	o := &Offscreen{
		d: d, width: w, height: h,
		rowPitch: (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1),
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "pixelgen_offscreen",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create offscreen texture: %w", err)
	}
	o.tex = tex

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "pixelgen_offscreen_view",
		Format:        d.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		o.destroyLocked()
		return nil, fmt.Errorf("create offscreen view: %w", err)
	}
	o.view = view

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pixelgen_offscreen_staging",
		Size:  uint64(o.rowPitch) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		o.destroyLocked()
		return nil, fmt.Errorf("create offscreen staging buffer: %w", err)
	}
	o.staging = staging
	return o, nil
}

// Acquire returns the render target. The same texture backs every frame.
func (o *Offscreen) Acquire() (pixelgen.SurfaceImage, error) {
	if o.view == nil {
		return nil, pixelgen.ErrSurfaceUnavailable
	}
	return SurfaceImage{View: o.view, Width: int(o.width), Height: int(o.height)}, nil
}

// Present copies the target into the staging buffer, waits for it, maps the
// buffer and decodes the result as RGBA.
func (o *Offscreen) Present(img pixelgen.SurfaceImage) error {
	si, ok := img.(SurfaceImage)
	if !ok || si.View != o.view {
		return fmt.Errorf("%w: image was not acquired from this surface", pixelgen.ErrSurfaceUnavailable)
	}

	d := o.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return pixelgen.ErrClosed
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "pixelgen_readback_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("pixelgen_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: o.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(o.tex, o.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: o.rowPitch, RowsPerImage: o.height},
		TextureBase:  hal.ImageCopyTexture{Texture: o.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: o.width, Height: o.height, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: o.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}

	// Submitted after the frame, so its completion covers both.
	if err := d.waitInflightLocked(); err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return err
	}
	if err := d.submitLocked(cmdBuf); err != nil {
		return err
	}
	if err := d.waitInflightLocked(); err != nil {
		return err
	}

	size := uint64(o.rowPitch) * uint64(o.height)
	mapping, err := d.device.MapBuffer(o.staging, 0, size)
	if err != nil {
		return fmt.Errorf("map readback buffer: %w", err)
	}
	readback := make([]byte, size)
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.device.UnmapBuffer(o.staging); err != nil {
		return fmt.Errorf("unmap readback buffer: %w", err)
	}
	o.last = decodeRows(readback, o.width, o.height, o.rowPitch, d.format == gputypes.TextureFormatBGRA8Unorm)
	return nil
}

// decodeRows strips row padding and, for BGRA targets, swaps red and blue.
func decodeRows(src []byte, w, h, pitch uint32, bgra bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	rowBytes := int(w) * 4
	for y := 0; y < int(h); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		copy(row, src[y*int(pitch):y*int(pitch)+rowBytes])
		if bgra {
			for i := 0; i < rowBytes; i += 4 {
				row[i], row[i+2] = row[i+2], row[i]
			}
		}
	}
	return img
}

// Image returns the last presented frame, or nil before the first Present.
func (o *Offscreen) Image() *image.RGBA { return o.last }

// Close destroys the render target.
func (o *Offscreen) Close() {
	o.d.mu.Lock()
	defer o.d.mu.Unlock()
	o.destroyLocked()
}

func (o *Offscreen) destroyLocked() {
	dev := o.d.device
	if dev == nil {
		return
	}
	if o.staging != nil {
		dev.DestroyBuffer(o.staging)
		o.staging = nil
	}
	if o.view != nil {
		dev.DestroyTextureView(o.view)
		o.view = nil
	}
	if o.tex != nil {
		dev.DestroyTexture(o.tex)
		o.tex = nil
	}
}
