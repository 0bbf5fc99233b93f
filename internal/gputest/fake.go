// Package gputest provides in-memory GPU doubles for tests.
//
// FakeAdapter implements gpucore.GPUAdapter without a GPU: buffers live in
// host memory, commands are counted, and failures can be injected per call.
// FakeProvider wraps a FakeAdapter as a gpucontext.DeviceProvider.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Injected errors.
var (
	ErrInjected = errors.New("gputest: injected failure")
	ErrLost     = errors.New("gputest: device lost")
)

// Dispatch records one Dispatch call.
type Dispatch struct {
	Pipeline  gpucore.ComputePipelineID
	BindGroup gpucore.BindGroupID
	X, Y, Z   uint32
}

// FakeAdapter is an in-memory gpucore.GPUAdapter.
type FakeAdapter struct {
	mu sync.Mutex

	// Limits reported by the adapter. Zero values mean WebGPU defaults.
	NoCompute      bool
	MaxBuffer      uint64
	MaxWorkgroups  uint32
	WorkgroupLimit [3]uint32

	// Failure injection.
	FailShader   bool
	FailPipeline bool
	FailBuffer   bool
	FailSubmit   bool

	// BeforeRead, if set, runs at the start of ReadBuffer without the
	// adapter lock held.
	BeforeRead func()

	// Kernel, if set, runs on Submit for every recorded dispatch. It gets the
	// contents of the bound buffers in binding order.
	Kernel func(bindings [][]byte)

	nextID     uint64
	lost       error
	buffers    map[gpucore.BufferID][]byte
	textures   map[gpucore.TextureID]*fakeTexture
	live       map[uint64]string
	bindGroups map[gpucore.BindGroupID][]gpucore.BindGroupEntry
	pending    []Dispatch

	// Counters.
	Submits      int
	Dispatches   []Dispatch
	Copies       int
	BufferWrites int
	Created      int
	Destroyed    int
}

type fakeTexture struct {
	width, height int
	data          []byte
}

var _ gpucore.GPUAdapter = (*FakeAdapter)(nil)

// NewFakeAdapter returns a fake with WebGPU default limits.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		nextID:     1,
		buffers:    make(map[gpucore.BufferID][]byte),
		textures:   make(map[gpucore.TextureID]*fakeTexture),
		live:       make(map[uint64]string),
		bindGroups: make(map[gpucore.BindGroupID][]gpucore.BindGroupEntry),
	}
}

func (f *FakeAdapter) newIDLocked(kind string) uint64 {
	id := f.nextID
	f.nextID++
	f.live[id] = kind
	f.Created++
	return id
}

func (f *FakeAdapter) releaseLocked(id uint64) {
	if _, ok := f.live[id]; ok {
		delete(f.live, id)
		f.Destroyed++
	}
}

// Lose marks the device lost.
func (f *FakeAdapter) Lose() {
	f.mu.Lock()
	f.lost = ErrLost
	f.mu.Unlock()
}

// LiveResources returns how many created resources are not yet destroyed.
// Textures added with AddTexture are not counted.
func (f *FakeAdapter) LiveResources() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// LiveBuffers returns the sizes of all live buffers.
func (f *FakeAdapter) LiveBuffers() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, 0, len(f.buffers))
	for _, b := range f.buffers {
		sizes = append(sizes, len(b))
	}
	return sizes
}

// AddTexture registers a host texture filled with tightly packed RGBA data.
// A nil data slice yields a zeroed texture.
func (f *FakeAdapter) AddTexture(width, height int, data []byte) gpucore.TextureID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data == nil {
		data = make([]byte, width*height*gpucore.BytesPerPixel)
	}
	id := gpucore.TextureID(f.nextID)
	f.nextID++
	f.textures[id] = &fakeTexture{width: width, height: height, data: data}
	return id
}

func (f *FakeAdapter) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{Name: "Fake GPU", DeviceType: "virtual", Backend: "fake"}
}

func (f *FakeAdapter) SupportsCompute() bool { return !f.NoCompute }

func (f *FakeAdapter) MaxWorkgroupSize() [3]uint32 {
	if f.WorkgroupLimit != [3]uint32{} {
		return f.WorkgroupLimit
	}
	return [3]uint32{256, 256, 64}
}

func (f *FakeAdapter) MaxWorkgroupsPerDimension() uint32 {
	if f.MaxWorkgroups != 0 {
		return f.MaxWorkgroups
	}
	return 65535
}

func (f *FakeAdapter) MaxBufferSize() uint64 {
	if f.MaxBuffer != 0 {
		return f.MaxBuffer
	}
	return 256 << 20
}

func (f *FakeAdapter) Lost() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lost
}

func (f *FakeAdapter) CreateShaderModule(wgsl, label string) (gpucore.ShaderModuleID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailShader || wgsl == "" {
		return gpucore.InvalidID, fmt.Errorf("shader %q: %w", label, ErrInjected)
	}
	return gpucore.ShaderModuleID(f.newIDLocked("shader")), nil
}

func (f *FakeAdapter) DestroyShaderModule(id gpucore.ShaderModuleID) { f.destroy(uint64(id)) }

func (f *FakeAdapter) destroy(id uint64) {
	f.mu.Lock()
	f.releaseLocked(id)
	f.mu.Unlock()
}

func (f *FakeAdapter) CreateBuffer(label string, size uint64, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBuffer {
		return gpucore.InvalidID, fmt.Errorf("buffer %q: %w", label, ErrInjected)
	}
	if size == 0 || size > f.MaxBufferSize() {
		return gpucore.InvalidID, fmt.Errorf("buffer %q: bad size %d", label, size)
	}
	id := gpucore.BufferID(f.newIDLocked("buffer"))
	f.buffers[id] = make([]byte, size)
	return id, nil
}

func (f *FakeAdapter) DestroyBuffer(id gpucore.BufferID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buffers, id)
	f.releaseLocked(uint64(id))
}

func (f *FakeAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buffers[id]
	if !ok {
		return fmt.Errorf("write buffer %d: unknown", id)
	}
	if offset+uint64(len(data)) > uint64(len(b)) {
		return fmt.Errorf("write buffer %d: overflow", id)
	}
	copy(b[offset:], data)
	f.BufferWrites++
	return nil
}

func (f *FakeAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	if f.BeforeRead != nil {
		f.BeforeRead()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost != nil {
		return nil, f.lost
	}
	b, ok := f.buffers[id]
	if !ok {
		return nil, fmt.Errorf("read buffer %d: unknown", id)
	}
	if offset+size > uint64(len(b)) {
		return nil, fmt.Errorf("read buffer %d: out of range", id)
	}
	out := make([]byte, size)
	copy(out, b[offset:offset+size])
	return out, nil
}

func (f *FakeAdapter) CreateTexture(width, height int, _ gpucore.TextureFormat) (gpucore.TextureID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("bad texture size %dx%d", width, height)
	}
	return f.AddTexture(width, height, nil), nil
}

func (f *FakeAdapter) DestroyTexture(id gpucore.TextureID) {
	f.mu.Lock()
	delete(f.textures, id)
	f.mu.Unlock()
}

func (f *FakeAdapter) WriteTexture(id gpucore.TextureID, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.textures[id]
	if !ok {
		return fmt.Errorf("write texture %d: unknown", id)
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("write texture %d: size mismatch", id)
	}
	copy(t.data, data)
	return nil
}

func (f *FakeAdapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if desc == nil {
		return gpucore.InvalidID, errors.New("nil layout")
	}
	return gpucore.BindGroupLayoutID(f.newIDLocked("bgl")), nil
}

func (f *FakeAdapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) { f.destroy(uint64(id)) }

func (f *FakeAdapter) CreatePipelineLayout(string, []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gpucore.PipelineLayoutID(f.newIDLocked("pl")), nil
}

func (f *FakeAdapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) { f.destroy(uint64(id)) }

func (f *FakeAdapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPipeline || desc == nil {
		return gpucore.InvalidID, fmt.Errorf("compute pipeline: %w", ErrInjected)
	}
	return gpucore.ComputePipelineID(f.newIDLocked("pipeline")), nil
}

func (f *FakeAdapter) DestroyComputePipeline(id gpucore.ComputePipelineID) { f.destroy(uint64(id)) }

func (f *FakeAdapter) CreateBindGroup(label string, _ gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		if _, ok := f.buffers[e.Buffer]; !ok {
			return gpucore.InvalidID, fmt.Errorf("bind group %q: unknown buffer %d", label, e.Buffer)
		}
	}
	id := gpucore.BindGroupID(f.newIDLocked("bg"))
	f.bindGroups[id] = append([]gpucore.BindGroupEntry(nil), entries...)
	return id, nil
}

func (f *FakeAdapter) DestroyBindGroup(id gpucore.BindGroupID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bindGroups, id)
	f.releaseLocked(uint64(id))
}

// CopyTextureToBuffer copies rows with the aligned stride, as WebGPU does.
func (f *FakeAdapter) CopyTextureToBuffer(src gpucore.TextureID, dst gpucore.BufferID, width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.textures[src]
	if !ok {
		return fmt.Errorf("texture %d: unknown", src)
	}
	b, ok := f.buffers[dst]
	if !ok {
		return fmt.Errorf("buffer %d: unknown", dst)
	}
	if width > t.width || height > t.height {
		return fmt.Errorf("copy %dx%d exceeds texture %dx%d", width, height, t.width, t.height)
	}
	stride := int(gpucore.AlignedBytesPerRow(width))
	if stride*height > len(b) {
		return fmt.Errorf("copy overflows buffer %d", dst)
	}
	row := width * gpucore.BytesPerPixel
	for y := 0; y < height; y++ {
		copy(b[y*stride:y*stride+row], t.data[y*t.width*gpucore.BytesPerPixel:])
	}
	f.Copies++
	return nil
}

func (f *FakeAdapter) BeginComputePass(string) gpucore.ComputePassEncoder {
	return &fakePass{f: f}
}

// Submit runs the Kernel hook for each pending dispatch.
func (f *FakeAdapter) Submit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.pending
	f.pending = nil
	if f.lost != nil {
		return f.lost
	}
	if f.FailSubmit {
		return fmt.Errorf("submit: %w", ErrInjected)
	}
	f.Submits++
	f.Dispatches = append(f.Dispatches, pending...)
	if f.Kernel != nil {
		for _, d := range pending {
			entries := f.bindGroups[d.BindGroup]
			bindings := make([][]byte, len(entries))
			for i, e := range entries {
				bindings[i] = f.buffers[e.Buffer]
			}
			f.Kernel(bindings)
		}
	}
	return nil
}

func (f *FakeAdapter) WaitIdle() error { return f.Lost() }

type fakePass struct {
	f     *FakeAdapter
	d     Dispatch
	ended bool
}

func (p *fakePass) SetPipeline(id gpucore.ComputePipelineID) { p.d.Pipeline = id }

func (p *fakePass) SetBindGroup(_ uint32, id gpucore.BindGroupID) { p.d.BindGroup = id }

func (p *fakePass) Dispatch(x, y, z uint32) {
	d := p.d
	d.X, d.Y, d.Z = x, y, z
	p.f.mu.Lock()
	p.f.pending = append(p.f.pending, d)
	p.f.mu.Unlock()
}

func (p *fakePass) End() { p.ended = true }

// FakeProvider is a gpucontext.DeviceProvider handing out a FakeAdapter.
type FakeProvider struct {
	GPU    *FakeAdapter
	NilDev bool
}

var _ gpucontext.DeviceProvider = (*FakeProvider)(nil)

// NewFakeProvider returns a provider around a fresh FakeAdapter.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{GPU: NewFakeAdapter()}
}

func (p *FakeProvider) Device() gpucontext.Device {
	if p.NilDev {
		return nil
	}
	return fakeDevice{}
}

func (p *FakeProvider) Queue() gpucontext.Queue { return fakeQueue{} }

func (p *FakeProvider) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports the fake as a software adapter.
func (p *FakeProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "Fake GPU", Type: gpucontext.AdapterTypeSoftware}
}

func (p *FakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// ComputeAdapter makes FakeProvider a device.AdapterProvider.
func (p *FakeProvider) ComputeAdapter() gpucore.GPUAdapter {
	if p.GPU == nil {
		return nil
	}
	return p.GPU
}

type fakeDevice struct{}

func (fakeDevice) Poll(bool) {}
func (fakeDevice) Destroy()  {}

type fakeQueue struct{}
