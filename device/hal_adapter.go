// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js

package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// DefaultSubmitTimeout bounds how long Submit and ReadBuffer wait for the
// queue to report a submission complete.
const DefaultSubmitTimeout = 5 * time.Second

// completionPollInterval is the sleep between PollCompleted checks.
const completionPollInterval = 100 * time.Microsecond

// defaultMaxWorkgroupsPerDimension is the WebGPU default limit.
const defaultMaxWorkgroupsPerDimension = 65535

type halBuffer struct {
	buf  hal.Buffer
	size uint64
}

type halTexture struct {
	tex    hal.Texture
	width  int
	height int
	owned  bool // false for textures imported from the host
}

// HALAdapter implements gpucore.GPUAdapter using gogpu/wgpu/hal directly.
// It borrows the device and queue; Close releases only what it created.
//
// Thread Safety: HALAdapter is safe for concurrent use from multiple goroutines.
// All resource operations are protected by a mutex.
type HALAdapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	info         gpucore.AdapterInfo
	maxBufferSz  uint64
	maxWorkgroup [3]uint32
	timeout      time.Duration

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	buffers          map[gpucore.BufferID]*halBuffer
	textures         map[gpucore.TextureID]*halTexture
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	computePipelines map[gpucore.ComputePipelineID]hal.ComputePipeline
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup

	// Command encoder for the pending submission
	encoder    hal.CommandEncoder
	hasEncoder bool

	lost error
}

var _ gpucore.GPUAdapter = (*HALAdapter)(nil)

// NewHALAdapter creates a new HALAdapter wrapping the given device and queue.
func NewHALAdapter(device hal.Device, queue hal.Queue, info gpucore.AdapterInfo) *HALAdapter {
	lim := gputypes.DefaultLimits()

	a := &HALAdapter{
		device:           device,
		queue:            queue,
		info:             info,
		maxBufferSz:      lim.MaxBufferSize,
		maxWorkgroup:     [3]uint32{lim.MaxComputeWorkgroupSizeX, lim.MaxComputeWorkgroupSizeY, lim.MaxComputeWorkgroupSizeZ},
		timeout:          DefaultSubmitTimeout,
		buffers:          make(map[gpucore.BufferID]*halBuffer),
		textures:         make(map[gpucore.TextureID]*halTexture),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		computePipelines: make(map[gpucore.ComputePipelineID]hal.ComputePipeline),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
	}

	// Start ID generation at 1 (0 is invalid)
	a.nextID.Store(1)

	return a
}

// SetTimeout changes the completion wait timeout. Non-positive values are ignored.
func (a *HALAdapter) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	a.mu.Lock()
	a.timeout = d
	a.mu.Unlock()
}

func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// === Capabilities ===

func (a *HALAdapter) Info() gpucore.AdapterInfo { return a.info }

func (a *HALAdapter) SupportsCompute() bool { return true }

func (a *HALAdapter) MaxWorkgroupSize() [3]uint32 { return a.maxWorkgroup }

func (a *HALAdapter) MaxWorkgroupsPerDimension() uint32 { return defaultMaxWorkgroupsPerDimension }

func (a *HALAdapter) MaxBufferSize() uint64 { return a.maxBufferSz }

// Lost reports the device-lost error recorded by a failed submit.
func (a *HALAdapter) Lost() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lost
}

// === Shader Compilation ===

// CreateShaderModule compiles WGSL to SPIR-V with naga and creates a module.
func (a *HALAdapter) CreateShaderModule(wgsl, label string) (gpucore.ShaderModuleID, error) {
	spirv, err := CompileWGSL(wgsl)
	if err != nil {
		return gpucore.InvalidID, err
	}

	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create shader module %q: %w", label, err)
	}

	id := gpucore.ShaderModuleID(a.newID())
	a.mu.Lock()
	a.shaderModules[id] = module
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.shaderModules[id]
	delete(a.shaderModules, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyShaderModule(module)
	}
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// === Buffer Management ===

func (a *HALAdapter) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("buffer %q: size must be positive", label)
	}

	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create buffer %q: %w", label, err)
	}

	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = &halBuffer{buf: buf, size: size}
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBuffer(b.buf)
	}
}

func (a *HALAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	a.mu.RLock()
	b, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("write buffer %d: %w", id, ErrUnknownResource)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write buffer %d: %d bytes at %d overflow size %d", id, len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if err := a.queue.WriteBuffer(b.buf, offset, data); err != nil {
		return fmt.Errorf("write buffer %d: %w", id, err)
	}
	return nil
}

// ReadBuffer flushes pending commands, copies the range into a staging
// buffer and maps it once the submission completes.
func (a *HALAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lost != nil {
		return nil, a.lost
	}
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("read buffer %d: %w", id, ErrUnknownResource)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("read buffer %d: range %d+%d exceeds size %d", id, offset, size, b.size)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder, err := a.pendingEncoderLocked()
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	if err := a.submitLocked(); err != nil {
		return nil, err
	}

	mapping, err := a.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("readback: map staging buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := a.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("readback: unmap staging buffer: %w", err)
	}
	return out, nil
}

// === Texture Management ===

func (a *HALAdapter) CreateTexture(width, height int, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("texture dimensions must be positive, got %dx%d", width, height)
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "frame_texture",
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}, //nolint:gosec // validated positive
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        convertTextureFormat(format),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create texture: %w", err)
	}

	id := gpucore.TextureID(a.newID())
	a.mu.Lock()
	a.textures[id] = &halTexture{tex: tex, width: width, height: height, owned: true}
	a.mu.Unlock()
	return id, nil
}

// ImportTexture registers a texture owned by the host (for example a gogpu
// render target) so frames can reference it by ID. The adapter never
// destroys imported textures.
func (a *HALAdapter) ImportTexture(tex hal.Texture, width, height int) (gpucore.TextureID, error) {
	if tex == nil || width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("import texture: invalid texture %dx%d", width, height)
	}
	id := gpucore.TextureID(a.newID())
	a.mu.Lock()
	a.textures[id] = &halTexture{tex: tex, width: width, height: height}
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	t, ok := a.textures[id]
	delete(a.textures, id)
	a.mu.Unlock()
	if ok && t.owned {
		a.device.DestroyTexture(t.tex)
	}
}

// WriteTexture uploads tightly packed RGBA rows covering the whole texture.
func (a *HALAdapter) WriteTexture(id gpucore.TextureID, data []byte) error {
	a.mu.RLock()
	t, ok := a.textures[id]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("write texture %d: %w", id, ErrUnknownResource)
	}
	want := t.width * t.height * gpucore.BytesPerPixel
	if len(data) != want {
		return fmt.Errorf("write texture %d: got %d bytes, want %d", id, len(data), want)
	}

	w, h := uint32(t.width), uint32(t.height) //nolint:gosec // validated at creation
	err := a.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * gpucore.BytesPerPixel, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %d: %w", id, err)
	}
	return nil
}

// === Pipeline Management ===

func (a *HALAdapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("nil bind group layout descriptor")
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = convertBindGroupLayoutEntry(e)
	}

	layout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group layout %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupLayoutID(a.newID())
	a.mu.Lock()
	a.bindGroupLayouts[id] = layout
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	layout, ok := a.bindGroupLayouts[id]
	delete(a.bindGroupLayouts, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBindGroupLayout(layout)
	}
}

func (a *HALAdapter) CreatePipelineLayout(label string, layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.RLock()
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		layout, ok := a.bindGroupLayouts[id]
		if !ok {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("bind group layout %d: %w", id, ErrUnknownResource)
		}
		halLayouts[i] = layout
	}
	a.mu.RUnlock()

	pl, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: halLayouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create pipeline layout %q: %w", label, err)
	}

	id := gpucore.PipelineLayoutID(a.newID())
	a.mu.Lock()
	a.pipelineLayouts[id] = pl
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	pl, ok := a.pipelineLayouts[id]
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyPipelineLayout(pl)
	}
}

func (a *HALAdapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("nil compute pipeline descriptor")
	}

	a.mu.RLock()
	layout, layoutOK := a.pipelineLayouts[desc.Layout]
	module, moduleOK := a.shaderModules[desc.ShaderModule]
	a.mu.RUnlock()
	if !layoutOK {
		return gpucore.InvalidID, fmt.Errorf("pipeline layout %d: %w", desc.Layout, ErrUnknownResource)
	}
	if !moduleOK {
		return gpucore.InvalidID, fmt.Errorf("shader module %d: %w", desc.ShaderModule, ErrUnknownResource)
	}

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create compute pipeline %q: %w", desc.Label, err)
	}

	id := gpucore.ComputePipelineID(a.newID())
	a.mu.Lock()
	a.computePipelines[id] = pipeline
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	a.mu.Lock()
	p, ok := a.computePipelines[id]
	delete(a.computePipelines, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyComputePipeline(p)
	}
}

func (a *HALAdapter) CreateBindGroup(label string, layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	a.mu.RLock()
	halLayout, ok := a.bindGroupLayouts[layout]
	if !ok {
		a.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("bind group layout %d: %w", layout, ErrUnknownResource)
	}
	halEntries := make([]gputypes.BindGroupEntry, len(entries))
	for i, e := range entries {
		b, found := a.buffers[e.Buffer]
		if !found {
			a.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("bind group %q binding %d: buffer %d: %w", label, e.Binding, e.Buffer, ErrUnknownResource)
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		halEntries[i] = gputypes.BindGroupEntry{
			Binding:  e.Binding,
			Resource: gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: e.Offset, Size: size},
		}
	}
	a.mu.RUnlock()

	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  halLayout,
		Entries: halEntries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group %q: %w", label, err)
	}

	id := gpucore.BindGroupID(a.newID())
	a.mu.Lock()
	a.bindGroups[id] = bg
	a.mu.Unlock()
	return id, nil
}

func (a *HALAdapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	bg, ok := a.bindGroups[id]
	delete(a.bindGroups, id)
	a.mu.Unlock()
	if ok {
		a.device.DestroyBindGroup(bg)
	}
}

// === Command Recording and Execution ===

// pendingEncoderLocked returns the open command encoder, creating one if
// needed. Must be called with mu held.
func (a *HALAdapter) pendingEncoderLocked() (hal.CommandEncoder, error) {
	if a.hasEncoder {
		return a.encoder, nil
	}
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	a.encoder = encoder
	a.hasEncoder = true
	return encoder, nil
}

func (a *HALAdapter) CopyTextureToBuffer(src gpucore.TextureID, dst gpucore.BufferID, width, height int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.textures[src]
	if !ok {
		return fmt.Errorf("texture %d: %w", src, ErrUnknownResource)
	}
	b, ok := a.buffers[dst]
	if !ok {
		return fmt.Errorf("buffer %d: %w", dst, ErrUnknownResource)
	}
	if width > t.width || height > t.height {
		return fmt.Errorf("copy %dx%d exceeds texture %d (%dx%d)", width, height, src, t.width, t.height)
	}
	stride := gpucore.AlignedBytesPerRow(width)
	h := uint32(height) //nolint:gosec // validated by caller
	if uint64(stride)*uint64(h) > b.size {
		return fmt.Errorf("copy %dx%d overflows buffer %d (%d bytes)", width, height, dst, b.size)
	}

	encoder, err := a.pendingEncoderLocked()
	if err != nil {
		return err
	}
	encoder.CopyTextureToBuffer(t.tex, b.buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: stride, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: uint32(width), Height: h, DepthOrArrayLayers: 1}, //nolint:gosec // validated by caller
	}})
	return nil
}

func (a *HALAdapter) BeginComputePass(label string) gpucore.ComputePassEncoder {
	a.mu.Lock()
	defer a.mu.Unlock()

	encoder, err := a.pendingEncoderLocked()
	if err != nil {
		slogger().Warn("device: begin compute pass", "err", err)
		// Return a no-op encoder; Submit reports the failure.
		return &halComputePassEncoder{adapter: a}
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	return &halComputePassEncoder{adapter: a, pass: pass}
}

// Submit ends the pending encoder, submits it and waits until the queue
// reports the submission complete.
func (a *HALAdapter) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitLocked()
}

func (a *HALAdapter) submitLocked() error {
	if a.lost != nil {
		a.discardLocked()
		return a.lost
	}
	if !a.hasEncoder {
		return fmt.Errorf("submit: no commands recorded")
	}

	cmdBuf, err := a.encoder.EndEncoding()
	a.encoder = nil
	a.hasEncoder = false
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}

	idx, err := a.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		a.device.FreeCommandBuffer(cmdBuf)
		if errors.Is(err, hal.ErrDeviceLost) {
			// Every later call fails fast.
			a.lost = fmt.Errorf("%w: %w", ErrDeviceLost, err)
			slogger().Warn("device: submit reported device lost", "err", err)
			return a.lost
		}
		return fmt.Errorf("submit: %w", err)
	}
	if err := a.waitLocked(idx); err != nil {
		// The GPU may still own the command buffer; it is not freed.
		return err
	}
	a.device.FreeCommandBuffer(cmdBuf)
	return nil
}

// waitLocked blocks until submission idx is complete or the timeout passes.
func (a *HALAdapter) waitLocked(idx uint64) error {
	deadline := time.Now().Add(a.timeout)
	for a.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: %w after %v", hal.ErrTimeout, a.timeout)
		}
		time.Sleep(completionPollInterval)
	}
	return nil
}

func (a *HALAdapter) discardLocked() {
	if a.hasEncoder {
		a.encoder.DiscardEncoding()
		a.encoder = nil
		a.hasEncoder = false
	}
}

// WaitIdle is satisfied by Submit, which already blocks until completion.
func (a *HALAdapter) WaitIdle() error {
	return a.Lost()
}

// Close releases every resource the adapter still tracks. The device and
// queue belong to the caller.
func (a *HALAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.discardLocked()
	for id, bg := range a.bindGroups {
		a.device.DestroyBindGroup(bg)
		delete(a.bindGroups, id)
	}
	for id, p := range a.computePipelines {
		a.device.DestroyComputePipeline(p)
		delete(a.computePipelines, id)
	}
	for id, pl := range a.pipelineLayouts {
		a.device.DestroyPipelineLayout(pl)
		delete(a.pipelineLayouts, id)
	}
	for id, l := range a.bindGroupLayouts {
		a.device.DestroyBindGroupLayout(l)
		delete(a.bindGroupLayouts, id)
	}
	for id, m := range a.shaderModules {
		a.device.DestroyShaderModule(m)
		delete(a.shaderModules, id)
	}
	for id, b := range a.buffers {
		a.device.DestroyBuffer(b.buf)
		delete(a.buffers, id)
	}
	for id, t := range a.textures {
		if t.owned {
			a.device.DestroyTexture(t.tex)
		}
		delete(a.textures, id)
	}
}

// === Type Conversion Helpers ===

func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage
	if usage&gpucore.BufferUsageMapRead != 0 {
		result |= gputypes.BufferUsageMapRead
	}
	if usage&gpucore.BufferUsageMapWrite != 0 {
		result |= gputypes.BufferUsageMapWrite
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		result |= gputypes.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageVertex != 0 {
		result |= gputypes.BufferUsageVertex
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		result |= gputypes.BufferUsageStorage
	}
	return result
}

func convertTextureFormat(format gpucore.TextureFormat) gputypes.TextureFormat {
	if format == gpucore.TextureFormatBGRA8Unorm {
		return gputypes.TextureFormatBGRA8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func convertBindGroupLayoutEntry(entry gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	result := gputypes.BindGroupLayoutEntry{
		Binding:    entry.Binding,
		Visibility: gputypes.ShaderStageCompute,
	}
	switch entry.Type {
	case gpucore.BindingTypeUniformBuffer:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: entry.MinBindingSize}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage, MinBindingSize: entry.MinBindingSize}
	default:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage, MinBindingSize: entry.MinBindingSize}
	}
	return result
}

// === Compute Pass Encoder ===

// halComputePassEncoder implements gpucore.ComputePassEncoder.
type halComputePassEncoder struct {
	adapter *HALAdapter
	pass    hal.ComputePassEncoder
}

func (e *halComputePassEncoder) SetPipeline(pipeline gpucore.ComputePipelineID) {
	if e.pass == nil {
		return
	}
	e.adapter.mu.RLock()
	p, ok := e.adapter.computePipelines[pipeline]
	e.adapter.mu.RUnlock()
	if ok {
		e.pass.SetPipeline(p)
	}
}

func (e *halComputePassEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if e.pass == nil {
		return
	}
	e.adapter.mu.RLock()
	bg, ok := e.adapter.bindGroups[group]
	e.adapter.mu.RUnlock()
	if ok {
		e.pass.SetBindGroup(index, bg, nil)
	}
}

func (e *halComputePassEncoder) Dispatch(x, y, z uint32) {
	if e.pass == nil {
		return
	}
	e.pass.Dispatch(x, y, z)
}

func (e *halComputePassEncoder) End() {
	if e.pass == nil {
		return
	}
	e.pass.End()
}
