//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/pixelgen"
	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newAllocatedDevice(t *testing.T, w, h int) (*Device, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	d, err := NewDevice(device, queue, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		cleanup()
		t.Fatalf("NewDevice: %v", err)
	}
	if err := d.Allocate(grid.MustNew(w, h), shader.Fill); err != nil {
		d.Close()
		cleanup()
		t.Fatalf("Allocate: %v", err)
	}
	return d, func() {
		d.Close()
		cleanup()
	}
}

// mockProvider is shaped like the gogpu window provider: Device returns a
// *wgpu.Device wrapping the HAL device and queue.
type mockProvider struct {
	device gpucontext.Device
	format gputypes.TextureFormat
}

func (p *mockProvider) Device() gpucontext.Device              { return p.device }
func (p *mockProvider) Queue() gpucontext.Queue                { return nil }
func (p *mockProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *mockProvider) Adapter() gpucontext.Adapter            { return nil }
func (p *mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeUnknown}
}

func newMockProvider(t *testing.T, device hal.Device, queue hal.Queue, limits gputypes.Limits, format gputypes.TextureFormat) *mockProvider {
	t.Helper()
	dev, err := wgpu.NewDeviceFromHAL(device, queue, 0, limits, "pixelgen-test")
	if err != nil {
		t.Fatalf("NewDeviceFromHAL: %v", err)
	}
	return &mockProvider{device: dev, format: format}
}

type foreignImage struct{}

func (foreignImage) Size() (int, int) { return 1, 1 }

func TestPresentShaderCompiles(t *testing.T) {
	spirv, err := naga.Compile(presentShaderSource)
	if err != nil {
		t.Fatalf("naga.Compile(present.wgsl): %v", err)
	}
	if len(spirv) == 0 {
		t.Error("empty SPIR-V")
	}
}

// TestOpenVulkan needs a Vulkan driver and skips without one.
func TestOpenVulkan(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hardware device in short mode")
	}
	d, err := Open()
	if errors.Is(err, pixelgen.ErrDeviceUnavailable) {
		t.Skipf("no Vulkan device: %v", err)
	}
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if d.externalDevice || d.instance == nil {
		t.Error("standalone device must own its instance")
	}
	if d.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", d.Format())
	}
}

func TestNewDeviceRejectsNil(t *testing.T) {
	if _, err := NewDevice(nil, nil, gputypes.TextureFormatRGBA8Unorm); !errors.Is(err, pixelgen.ErrDeviceUnavailable) {
		t.Errorf("NewDevice(nil) = %v, want ErrDeviceUnavailable", err)
	}
}

func TestFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d, err := FromProvider(newMockProvider(t, device, queue, gputypes.DefaultLimits(), gputypes.TextureFormatRGBA8Unorm))
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	defer d.Close()
	if d.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want provider format", d.Format())
	}
	if !d.externalDevice || d.device != device || d.queue != queue {
		t.Error("shared device must unwrap the provider's HAL device and queue and stay external")
	}

	d2, err := FromProvider(newMockProvider(t, device, queue, gputypes.DefaultLimits(), gputypes.TextureFormatUndefined))
	if err != nil {
		t.Fatalf("FromProvider without format: %v", err)
	}
	defer d2.Close()
	if d2.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("default format = %v, want BGRA8Unorm", d2.Format())
	}
}

func TestFromProviderRejectsNonHAL(t *testing.T) {
	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
	}{
		{"nil provider", nil},
		{"no hal methods", &mockProvider{device: "not a device"}},
		{"nil device", &mockProvider{}},
		{"nil wgpu device", &mockProvider{device: (*wgpu.Device)(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromProvider(tt.provider); !errors.Is(err, pixelgen.ErrDeviceUnavailable) {
				t.Errorf("FromProvider = %v, want ErrDeviceUnavailable", err)
			}
		})
	}
}

func TestAllocateCreatesResources(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 48)
	defer cleanup()

	if d.compute == nil || d.bridge == nil {
		t.Fatal("Allocate left stages nil")
	}
	if d.compute.pixels == nil || d.compute.params == nil || d.compute.bindGroup == nil {
		t.Error("compute stage missing buffers or bind group")
	}
	if d.compute.pipeline == nil || d.bridge.pipeline == nil {
		t.Error("missing pipelines")
	}
	if d.grid != grid.MustNew(64, 48) {
		t.Errorf("grid = %v, want 64x48", d.grid)
	}
}

func TestAllocateRejectsZeroGrid(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	d, err := NewDevice(device, queue, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Allocate(grid.Grid{}, shader.Fill); !errors.Is(err, grid.ErrZeroExtent) {
		t.Errorf("Allocate(zero) = %v, want ErrZeroExtent", err)
	}
}

func TestWriteParameters(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	d, err := NewDevice(device, queue, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.WriteParameters(camera.New().Bytes()); !errors.Is(err, pixelgen.ErrNotAllocated) {
		t.Errorf("WriteParameters before Allocate = %v, want ErrNotAllocated", err)
	}
	if err := d.Allocate(grid.MustNew(64, 2), shader.Fill); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteParameters(camera.New().Bytes()); err != nil {
		t.Errorf("WriteParameters = %v", err)
	}
	if err := d.WriteParameters(make([]byte, 12)); !errors.Is(err, pixelgen.ErrParameterSize) {
		t.Errorf("short write = %v, want ErrParameterSize", err)
	}
}

func TestRenderFrameOffscreen(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 48)
	defer cleanup()

	surface, err := d.NewOffscreen(64, 48)
	if err != nil {
		t.Fatalf("NewOffscreen: %v", err)
	}
	defer surface.Close()

	for i := range 3 {
		img, err := surface.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if err := d.RenderFrame(img); err != nil {
			t.Fatalf("frame %d: RenderFrame: %v", i, err)
		}
		if err := surface.Present(img); err != nil {
			t.Fatalf("frame %d: Present: %v", i, err)
		}
	}
	if d.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", d.Frames())
	}
	if d.inflight != nil {
		t.Error("frame still in flight after readback")
	}
	if img := surface.Image(); img == nil || img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("readback image = %v, want 64x48", img)
	}
}

var errQueueLost = errors.New("queue lost")

// lostQueue fails every buffer upload.
type lostQueue struct {
	hal.Queue
}

func (lostQueue) WriteBuffer(hal.Buffer, uint64, []byte) error { return errQueueLost }

func TestWriteBufferErrorsPropagate(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d, err := NewDevice(device, lostQueue{Queue: queue}, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Allocate(grid.MustNew(8, 8), shader.Fill); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := d.WriteParameters(camera.New().Bytes()); !errors.Is(err, errQueueLost) {
		t.Errorf("WriteParameters = %v, want wrapped queue error", err)
	}

	surface, err := d.NewOffscreen(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer surface.Close()
	img, _ := surface.Acquire()
	if err := d.RenderFrame(img); !errors.Is(err, errQueueLost) {
		t.Errorf("RenderFrame = %v, want wrapped queue error", err)
	}
	if d.Frames() != 0 {
		t.Errorf("Frames() = %d after a failed upload", d.Frames())
	}
}

func TestRenderFramePacing(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 4)
	defer cleanup()
	surface, err := d.NewOffscreen(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer surface.Close()

	img, _ := surface.Acquire()
	for range 4 {
		if err := d.RenderFrame(img); err != nil {
			t.Fatal(err)
		}
		if d.inflight == nil {
			t.Fatal("standalone frame should stay in flight until the next one")
		}
	}
	if d.submission != 4 {
		t.Errorf("submission index = %d, want 4", d.submission)
	}
}

func TestRenderFrameSharedDevice(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	d, err := FromProvider(newMockProvider(t, device, queue, gputypes.DefaultLimits(), gputypes.TextureFormatUndefined))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Allocate(grid.MustNew(64, 4), shader.Direction); err != nil {
		t.Fatal(err)
	}
	surface, err := d.NewOffscreen(128, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer surface.Close()
	img, _ := surface.Acquire()
	if err := d.RenderFrame(img); err != nil {
		t.Fatal(err)
	}
	if d.inflight == nil {
		t.Error("shared device should not block on the frame it just submitted")
	}
	if d.bridge.surfaceW != 128 || d.bridge.surfaceH != 8 {
		t.Errorf("present extent = %dx%d, want 128x8", d.bridge.surfaceW, d.bridge.surfaceH)
	}
}

func TestRenderFrameRejectsForeignImage(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 4)
	defer cleanup()
	if err := d.RenderFrame(foreignImage{}); !errors.Is(err, pixelgen.ErrSurfaceUnavailable) {
		t.Errorf("RenderFrame(foreign) = %v, want ErrSurfaceUnavailable", err)
	}
}

func TestNewSurfaceImage(t *testing.T) {
	if _, err := NewSurfaceImage("not a view", 1, 1); !errors.Is(err, ErrNotHAL) {
		t.Errorf("NewSurfaceImage(string) = %v, want ErrNotHAL", err)
	}
	if _, err := NewSurfaceImage(nil, 1, 1); !errors.Is(err, ErrNotHAL) {
		t.Errorf("NewSurfaceImage(nil) = %v, want ErrNotHAL", err)
	}

	d, cleanup := newAllocatedDevice(t, 64, 4)
	defer cleanup()
	surface, err := d.NewOffscreen(64, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer surface.Close()
	si, err := NewSurfaceImage(surface.view, 64, 4)
	if err != nil {
		t.Fatalf("NewSurfaceImage(view) = %v", err)
	}
	if w, h := si.Size(); w != 64 || h != 4 {
		t.Errorf("Size() = %dx%d", w, h)
	}

	// gogpu.Context.SurfaceView returns a *wgpu.TextureView.
	si, err = NewSurfaceImage(wgpu.NewTextureViewFromHAL(surface.view, nil), 1024, 768)
	if err != nil {
		t.Fatalf("NewSurfaceImage(*wgpu.TextureView) = %v", err)
	}
	if si.View != surface.view {
		t.Error("NewSurfaceImage did not unwrap the HAL view")
	}
	if _, err := NewSurfaceImage((*wgpu.TextureView)(nil), 1, 1); !errors.Is(err, ErrNotHAL) {
		t.Errorf("NewSurfaceImage(nil *wgpu.TextureView) = %v, want ErrNotHAL", err)
	}
	if _, err := NewSurfaceImage(&wgpu.TextureView{}, 1, 1); !errors.Is(err, ErrNotHAL) {
		t.Errorf("NewSurfaceImage(empty *wgpu.TextureView) = %v, want ErrNotHAL", err)
	}
}

func TestAllocateRejectsGridOverLimits(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 4)
	defer cleanup()

	err := d.Allocate(grid.MustNew(20000, 20000), shader.Fill)
	if !errors.Is(err, grid.ErrCapacity) {
		t.Fatalf("Allocate(20000x20000) = %v, want grid.ErrCapacity", err)
	}
	if d.grid != grid.MustNew(64, 4) || d.compute == nil {
		t.Error("rejected Allocate released the previous resources")
	}
}

func TestFromProviderUsesDeviceLimits(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	limits := gputypes.DefaultLimits()
	limits.MaxStorageBufferBindingSize = 1024
	d, err := FromProvider(newMockProvider(t, device, queue, limits, gputypes.TextureFormatUndefined))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Allocate(grid.MustNew(16, 16), shader.Fill); err != nil {
		t.Errorf("Allocate(16x16, 1024 bytes) = %v", err)
	}
	if err := d.Allocate(grid.MustNew(64, 48), shader.Fill); !errors.Is(err, grid.ErrCapacity) {
		t.Errorf("Allocate(64x48) over a 1024-byte limit = %v, want grid.ErrCapacity", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d, cleanup := newAllocatedDevice(t, 64, 4)
	defer cleanup()
	d.Close()
	d.Close()
	if err := d.Allocate(grid.MustNew(64, 4), shader.Fill); !errors.Is(err, pixelgen.ErrClosed) {
		t.Errorf("Allocate after Close = %v, want ErrClosed", err)
	}
}

func TestFrameUniform(t *testing.T) {
	buf := frameUniform(grid.MustNew(1024, 768), 1920, 1080)
	want := []uint32{1024, 768, 1920, 1080}
	for i, v := range want {
		if got := binary.LittleEndian.Uint32(buf[i*4:]); got != v {
			t.Errorf("word %d = %d, want %d", i, got, v)
		}
	}
}

func TestDecodeRows(t *testing.T) {
	// 2x2 image, pitch 12 bytes (4 bytes padding per row), BGRA source.
	src := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0,
		9, 10, 11, 12, 13, 14, 15, 16, 0, 0, 0, 0,
	}
	img := decodeRows(src, 2, 2, 12, true)
	c := img.RGBAAt(1, 1)
	if c.R != 15 || c.G != 14 || c.B != 13 || c.A != 16 {
		t.Errorf("pixel (1,1) = %v, want {15 14 13 16}", c)
	}
	img = decodeRows(src, 2, 2, 12, false)
	if c := img.RGBAAt(0, 1); c.R != 9 || c.B != 11 {
		t.Errorf("pixel (0,1) = %v, want R=9 B=11", c)
	}
}

var _ pixelgen.Backend = (*Device)(nil)
var _ pixelgen.Surface = (*Offscreen)(nil)
