//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register Vulkan backend

	"github.com/gogpu/pixelgen"
	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

// frameTimeout bounds every wait for a submission to complete.
const frameTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls.
const pollInterval = 100 * time.Microsecond

// Device errors.
var (
	// ErrFrameTimeout is returned when a frame does not complete in time.
	ErrFrameTimeout = errors.New("gpu: frame submission timed out")

	// ErrNotHAL is returned when a provider or view does not expose HAL types.
	ErrNotHAL = errors.New("gpu: value does not expose wgpu HAL types")
)

// SurfaceImage is a surface texture view handed to RenderFrame.
type SurfaceImage struct {
	View          hal.TextureView
	Width, Height int
}

// Size returns the surface image dimensions.
func (s SurfaceImage) Size() (width, height int) { return s.Width, s.Height }

// halViewer is implemented by wgpu texture views.
type halViewer interface {
	HalTextureView() hal.TextureView
}

// NewSurfaceImage wraps a surface view: a *wgpu.TextureView as returned by
// gogpu.Context.SurfaceView, anything else exposing HalTextureView, or a bare
// hal.TextureView.
func NewSurfaceImage(view any, width, height int) (SurfaceImage, error) {
	var tv hal.TextureView
	switch v := view.(type) {
	case *wgpu.TextureView:
		if v != nil {
			tv = v.HalTextureView()
		}
	case halViewer:
		tv = v.HalTextureView()
	case hal.TextureView:
		tv = v
	}
	if tv == nil {
		return SurfaceImage{}, fmt.Errorf("%w: surface view %T", ErrNotHAL, view)
	}
	return SurfaceImage{View: tv, Width: width, Height: height}, nil
}

// Device implements pixelgen.Backend on a wgpu HAL device.
type Device struct {
	mu sync.Mutex

	instance hal.Instance // nil when the device is shared
	device   hal.Device
	queue    hal.Queue
	format   gputypes.TextureFormat
	limits   gputypes.Limits
	adapter  string

	// externalDevice is set when the device belongs to a provider and must
	// not be destroyed here.
	externalDevice bool

	grid    grid.Grid
	compute *computeStage
	bridge  *presentBridge

	// submission is the queue index of the frame in flight.
	submission uint64
	inflight   hal.CommandBuffer
	frames     uint64
}

// Open creates a standalone Vulkan device rendering into RGBA8Unorm targets.
// Every failure wraps pixelgen.ErrDeviceUnavailable.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", pixelgen.ErrDeviceUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", pixelgen.ErrDeviceUnavailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", pixelgen.ErrDeviceUnavailable)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", pixelgen.ErrDeviceUnavailable, err)
	}

	d, err := NewDevice(openDev.Device, openDev.Queue, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.externalDevice = false
	d.limits = limits
	d.adapter = selected.Info.Name
	slogger().Info("gpu: device opened", "adapter", d.adapter)
	return d, nil
}

// halDeviceSource is implemented by *wgpu.Device.
type halDeviceSource interface {
	HalDevice() hal.Device
	HalQueue() hal.Queue
}

// FromProvider shares the device of a window provider such as
// gogpu.App.GPUContextProvider. provider.Device() must be a *wgpu.Device (or
// expose HalDevice and HalQueue). The present pipeline targets the provider's
// surface format, or BGRA8Unorm when it reports none.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", pixelgen.ErrDeviceUnavailable)
	}
	var src halDeviceSource
	switch v := provider.Device().(type) {
	case *wgpu.Device:
		if v != nil {
			src = v
		}
	case halDeviceSource:
		src = v
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %w: provider device %T", pixelgen.ErrDeviceUnavailable, ErrNotHAL, provider.Device())
	}
	device, queue := src.HalDevice(), src.HalQueue()

	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}

	d, err := NewDevice(device, queue, format)
	if err != nil {
		return nil, err
	}
	if lp, ok := src.(interface{ Limits() gputypes.Limits }); ok {
		d.limits = lp.Limits()
	}
	slogger().Info("gpu: using shared device",
		"adapter", provider.AdapterInfo().Name, "format", format)
	return d, nil
}

// NewDevice wraps an open device and queue with the default WebGPU limits.
// The device is treated as external: Close releases pixelgen's resources
// but not the device.
func NewDevice(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", pixelgen.ErrDeviceUnavailable)
	}
	return &Device{
		device:         device,
		queue:          queue,
		format:         format,
		limits:         gputypes.DefaultLimits(),
		externalDevice: true,
	}, nil
}

// SetLogger sets the logger for GPU diagnostics. Called by pixelgen.SetLogger.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Format returns the color format the present pipeline writes.
func (d *Device) Format() gputypes.TextureFormat { return d.format }

// Frames returns the number of submitted frames.
func (d *Device) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// maxPixelBytes is the largest pixel buffer the device can bind as storage.
func (d *Device) maxPixelBytes() uint64 {
	return min(d.limits.MaxStorageBufferBindingSize, d.limits.MaxBufferSize)
}

// Allocate creates the pixel buffer, the parameter buffer and both
// pipelines for g. Calling it again replaces the previous resources.
// A grid whose pixel buffer exceeds the device limits fails with
// grid.ErrCapacity.
func (d *Device) Allocate(g grid.Grid, p shader.Program) error {
	if g.IsZero() {
		return grid.ErrZeroExtent
	}
	if err := g.CheckCapacity(d.maxPixelBytes()); err != nil {
		return fmt.Errorf("gpu: pixel buffer exceeds device limits: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return pixelgen.ErrClosed
	}
	if err := d.waitInflightLocked(); err != nil {
		return err
	}
	d.releaseLocked()

	compute, err := newComputeStage(d.device, g, p)
	if err != nil {
		return fmt.Errorf("gpu: compute stage: %w", err)
	}
	bridge, err := newPresentBridge(d.device, d.queue, g, d.format, compute.pixels)
	if err != nil {
		compute.destroy()
		return fmt.Errorf("gpu: present bridge: %w", err)
	}
	d.grid = g
	d.compute = compute
	d.bridge = bridge
	slogger().Info("gpu: buffers allocated",
		"grid", g.String(),
		"pixel_bytes", g.ByteSize(),
		"param_bytes", camera.GPUSize,
		"program", p.Label)
	return nil
}

// WriteParameters overwrites the whole parameter buffer. The write is
// queued and takes effect for every frame submitted afterwards.
func (d *Device) WriteParameters(data []byte) error {
	if len(data) != camera.GPUSize {
		return fmt.Errorf("%w: got %d bytes, want %d", pixelgen.ErrParameterSize, len(data), camera.GPUSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compute == nil {
		return pixelgen.ErrNotAllocated
	}
	if err := d.queue.WriteBuffer(d.compute.params, 0, data); err != nil {
		return fmt.Errorf("gpu: write parameters: %w", err)
	}
	return nil
}

// RenderFrame records the compute dispatch and the present pass into one
// command buffer and submits it without waiting for completion. The
// previous frame must have completed first, so at most one is in flight.
func (d *Device) RenderFrame(img pixelgen.SurfaceImage) error {
	si, ok := img.(SurfaceImage)
	if !ok || si.View == nil {
		return fmt.Errorf("%w: gpu backend cannot present into %T", pixelgen.ErrSurfaceUnavailable, img)
	}
	if si.Width <= 0 || si.Height <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compute == nil {
		return pixelgen.ErrNotAllocated
	}
	if err := d.waitInflightLocked(); err != nil {
		return err
	}

	if err := d.bridge.prepare(uint32(si.Width), uint32(si.Height)); err != nil { //nolint:gosec // positive, checked above
		return err
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "pixelgen_frame_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("pixelgen_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	d.compute.record(encoder)
	d.bridge.record(encoder, si.View)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}

	if err := d.submitLocked(cmdBuf); err != nil {
		return err
	}
	d.frames++
	slogger().Debug("gpu: frame submitted",
		"frame", d.frames, "submission", d.submission, "surface_w", si.Width, "surface_h", si.Height)
	return nil
}

// submitLocked submits cmdBuf and records it as the work in flight.
func (d *Device) submitLocked(cmdBuf hal.CommandBuffer) error {
	index, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: %w", err)
	}
	d.submission = index
	d.inflight = cmdBuf
	return nil
}

// waitInflightLocked blocks until the queue reports the submission in
// flight as completed and frees its command buffer.
func (d *Device) waitInflightLocked() error {
	if d.inflight == nil {
		return nil
	}
	deadline := time.Now().Add(frameTimeout)
	for d.queue.PollCompleted() < d.submission {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: submission %d after %v", ErrFrameTimeout, d.submission, frameTimeout)
		}
		time.Sleep(pollInterval)
	}
	d.device.FreeCommandBuffer(d.inflight)
	d.inflight = nil
	return nil
}

func (d *Device) releaseLocked() {
	if d.bridge != nil {
		d.bridge.destroy()
		d.bridge = nil
	}
	if d.compute != nil {
		d.compute.destroy()
		d.compute = nil
	}
}

// Close waits for the last frame and destroys every resource. A device
// opened with Open is destroyed as well.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return
	}
	if err := d.waitInflightLocked(); err != nil {
		slogger().Warn("gpu: close without draining last frame", "err", err)
	}
	d.releaseLocked()
	if !d.externalDevice {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.device = nil
	d.queue = nil
	slogger().Info("gpu: device closed", "frames", d.frames)
}
