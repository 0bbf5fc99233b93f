package processor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/cvcore/device"
	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Processor.
type State int

// Processor states.
const (
	Uninitialized State = iota
	Ready
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// maxInvocationsPerWorkgroup is the WebGPU default limit.
const maxInvocationsPerWorkgroup = 256

// paramsSize is the size of the Params uniform: four u32 words.
const paramsSize = 16

// pipeline holds the objects built once per device.
type pipeline struct {
	module   gpucore.ShaderModuleID
	layout   gpucore.BindGroupLayoutID
	plLayout gpucore.PipelineLayoutID
	compute  gpucore.ComputePipelineID
}

// frameBuffers holds the per-size resources, re-created on resize.
type frameBuffers struct {
	width, height int
	params        gpucore.BufferID
	input         gpucore.BufferID
	output        gpucore.BufferID
	bindGroup     gpucore.BindGroupID
}

// Processor runs a compute kernel over host textures on a host-supplied device.
//
// Calls are serialized by a mutex; the processor is safe to share between
// goroutines but does no work concurrently.
type Processor struct {
	mu  sync.Mutex
	opt options

	state   State
	err     error
	adapter gpucore.GPUAdapter
	pipe    *pipeline
	bufs    *frameBuffers

	seq       uint64
	haveFrame bool
	stats     Stats
}

// New creates an uninitialized processor.
func New(opts ...Option) *Processor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Processor{opt: o}
}

func (p *Processor) log() *slog.Logger {
	if p.opt.logger != nil {
		return p.opt.logger
	}
	return loggerPtr.Load()
}

// State returns the current state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the cause of the last initialization failure or device loss.
// It is nil while Ready.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Kernel returns the configured kernel.
func (p *Processor) Kernel() Kernel { return p.opt.kernel }

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Initialize builds the compute pipeline on the provider's device.
//
// Resources from an earlier device are released first, so calling
// Initialize again with a fresh device recovers a Failed processor. On
// failure the processor is Failed and the error wraps ErrInitialization.
func (p *Processor) Initialize(provider gpucontext.DeviceProvider) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	p.adapter = nil

	if err := p.initLocked(provider); err != nil {
		p.releaseLocked()
		p.adapter = nil
		p.state = Failed
		p.err = fmt.Errorf("%w: %w", ErrInitialization, err)
		p.log().Warn("processor: initialization failed", "kernel", p.opt.kernel.Name, "err", err)
		return p.err
	}

	p.state = Ready
	p.err = nil
	p.log().Info("processor: ready",
		"adapter", p.adapter.Info().String(),
		"kernel", p.opt.kernel.Name,
		"width", p.bufs.width, "height", p.bufs.height)
	return nil
}

func (p *Processor) initLocked(provider gpucontext.DeviceProvider) error {
	k := p.opt.kernel
	if err := k.Validate(); err != nil {
		return err
	}

	adapter, err := device.Resolve(provider)
	if err != nil {
		return err
	}
	if err := adapter.Lost(); err != nil {
		return err
	}
	if !adapter.SupportsCompute() {
		return errors.New("adapter does not support compute shaders")
	}
	maxWG := adapter.MaxWorkgroupSize()
	if k.WorkgroupSize[0] > maxWG[0] || k.WorkgroupSize[1] > maxWG[1] ||
		k.WorkgroupSize[0]*k.WorkgroupSize[1] > maxInvocationsPerWorkgroup {
		return fmt.Errorf("kernel %q workgroup %v exceeds device limit %v", k.Name, k.WorkgroupSize, maxWG)
	}
	p.adapter = adapter

	pipe, err := p.buildPipeline()
	if err != nil {
		return err
	}
	p.pipe = pipe

	bufs, err := p.allocate(p.opt.width, p.opt.height)
	if err != nil {
		return err
	}
	p.bufs = bufs
	return nil
}

func (p *Processor) buildPipeline() (*pipeline, error) {
	a := p.adapter
	k := p.opt.kernel
	pipe := &pipeline{}

	var err error
	pipe.module, err = a.CreateShaderModule(k.Source, k.Name)
	if err != nil {
		return nil, fmt.Errorf("shader module: %w", err)
	}

	pipe.layout, err = a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: k.Name + "_bgl",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, MinBindingSize: paramsSize},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer},
			{Binding: 2, Type: gpucore.BindingTypeStorageBuffer},
		},
	})
	if err != nil {
		p.destroyPipeline(pipe)
		return nil, fmt.Errorf("bind group layout: %w", err)
	}

	pipe.plLayout, err = a.CreatePipelineLayout(k.Name+"_layout", []gpucore.BindGroupLayoutID{pipe.layout})
	if err != nil {
		p.destroyPipeline(pipe)
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}

	pipe.compute, err = a.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        k.Name,
		Layout:       pipe.plLayout,
		ShaderModule: pipe.module,
		EntryPoint:   k.EntryPoint,
	})
	if err != nil {
		p.destroyPipeline(pipe)
		return nil, fmt.Errorf("compute pipeline: %w", err)
	}

	p.log().Debug("processor: pipeline built", "kernel", k.Name, "entry", k.EntryPoint)
	return pipe, nil
}

func (p *Processor) destroyPipeline(pipe *pipeline) {
	a := p.adapter
	if pipe.compute != gpucore.InvalidID {
		a.DestroyComputePipeline(pipe.compute)
	}
	if pipe.plLayout != gpucore.InvalidID {
		a.DestroyPipelineLayout(pipe.plLayout)
	}
	if pipe.layout != gpucore.InvalidID {
		a.DestroyBindGroupLayout(pipe.layout)
	}
	if pipe.module != gpucore.InvalidID {
		a.DestroyShaderModule(pipe.module)
	}
}

// frameSizes returns the input and output buffer sizes for a frame.
func frameSizes(width, height int) (input, output uint64) {
	input = uint64(gpucore.AlignedBytesPerRow(width)) * uint64(height) //nolint:gosec // positive
	output = uint64(width) * uint64(height) * gpucore.BytesPerPixel    //nolint:gosec // positive
	return input, output
}

// checkLimits reports ErrResourceExhausted when a frame does not fit the device.
func (p *Processor) checkLimits(width, height int) error {
	input, output := frameSizes(width, height)
	limit := p.adapter.MaxBufferSize()
	if input > limit || output > limit {
		return fmt.Errorf("%w: %dx%d needs %d bytes, device allows %d", ErrResourceExhausted, width, height, max(input, output), limit)
	}
	wg := p.opt.kernel.WorkgroupSize
	gx, gy := gpucore.WorkgroupCount(width, wg[0]), gpucore.WorkgroupCount(height, wg[1])
	if maxGroups := p.adapter.MaxWorkgroupsPerDimension(); gx > maxGroups || gy > maxGroups {
		return fmt.Errorf("%w: %dx%d needs %dx%d workgroups, device allows %d per dimension",
			ErrResourceExhausted, width, height, gx, gy, maxGroups)
	}
	return nil
}

func (p *Processor) allocate(width, height int) (*frameBuffers, error) {
	if err := p.checkLimits(width, height); err != nil {
		return nil, err
	}
	a := p.adapter
	inSize, outSize := frameSizes(width, height)
	b := &frameBuffers{width: width, height: height}

	var err error
	if b.params, err = a.CreateBuffer("frame_params", paramsSize, gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst); err != nil {
		return nil, fmt.Errorf("params buffer: %w", err)
	}
	if b.input, err = a.CreateBuffer("frame_input", inSize, gpucore.BufferUsageStorage|gpucore.BufferUsageCopyDst); err != nil {
		p.destroyBuffers(b)
		return nil, fmt.Errorf("input buffer: %w", err)
	}
	if b.output, err = a.CreateBuffer("frame_output", outSize, gpucore.BufferUsageStorage|gpucore.BufferUsageCopySrc); err != nil {
		p.destroyBuffers(b)
		return nil, fmt.Errorf("output buffer: %w", err)
	}
	b.bindGroup, err = a.CreateBindGroup("frame_bind_group", p.pipe.layout, []gpucore.BindGroupEntry{
		{Binding: 0, Buffer: b.params, Size: paramsSize},
		{Binding: 1, Buffer: b.input, Size: inSize},
		{Binding: 2, Buffer: b.output, Size: outSize},
	})
	if err != nil {
		p.destroyBuffers(b)
		return nil, fmt.Errorf("bind group: %w", err)
	}

	params := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(width))                                           //nolint:gosec // positive
	binary.LittleEndian.PutUint32(params[4:], uint32(height))                                          //nolint:gosec // positive
	binary.LittleEndian.PutUint32(params[8:], gpucore.AlignedBytesPerRow(width)/gpucore.BytesPerPixel) // stride in u32 words
	binary.LittleEndian.PutUint32(params[12:], uint32(width))                                          //nolint:gosec // positive
	if err := a.WriteBuffer(b.params, 0, params); err != nil {
		p.destroyBuffers(b)
		return nil, fmt.Errorf("write params: %w", err)
	}

	p.log().Debug("processor: frame buffers allocated",
		"width", width, "height", height, "input_bytes", inSize, "output_bytes", outSize)
	return b, nil
}

func (p *Processor) destroyBuffers(b *frameBuffers) {
	a := p.adapter
	if b.bindGroup != gpucore.InvalidID {
		a.DestroyBindGroup(b.bindGroup)
	}
	for _, id := range []gpucore.BufferID{b.output, b.input, b.params} {
		if id != gpucore.InvalidID {
			a.DestroyBuffer(id)
		}
	}
}

// releaseLocked destroys every GPU object the processor owns. The adapter
// and its device stay untouched.
func (p *Processor) releaseLocked() {
	if p.adapter == nil {
		p.pipe, p.bufs = nil, nil
		return
	}
	if p.bufs != nil {
		p.destroyBuffers(p.bufs)
		p.bufs = nil
	}
	if p.pipe != nil {
		p.destroyPipeline(p.pipe)
		p.pipe = nil
	}
	p.haveFrame = false
}

// markLostLocked moves to Failed after the device went away.
func (p *Processor) markLostLocked(cause error) {
	p.releaseLocked()
	p.adapter = nil
	p.state = Failed
	p.err = cause
	p.stats.DeviceLosses++
	p.log().Warn("processor: device lost", "err", cause)
}

// ProcessFrame runs the kernel over one host texture.
//
// It never panics and never returns an error value: failures are reported
// in the result. A processor that is not Ready does no GPU work.
func (p *Processor) ProcessFrame(texture gpucore.TextureID, width, height int) ProcessedFrame {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	res := p.processLocked(texture, width, height, start)
	p.stats.LastDuration = res.Duration
	if res.Processed {
		p.stats.Frames++
	} else {
		p.stats.Failures++
		p.log().Debug("processor: frame failed", "kind", res.Kind.String(), "err", res.Error)
	}
	return res
}

func (p *Processor) processLocked(texture gpucore.TextureID, width, height int, start time.Time) ProcessedFrame {
	if p.state != Ready {
		return failedFrame(KindInvalidState, ErrNotReady, start)
	}
	if lost := p.adapter.Lost(); lost != nil {
		p.markLostLocked(lost)
		return failedFrame(KindDispatch, fmt.Errorf("%w: %w", ErrDispatch, lost), start)
	}
	if width <= 0 || height <= 0 {
		return failedFrame(KindInvalidArgument, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidFrame, width, height), start)
	}
	if texture == gpucore.InvalidID {
		return failedFrame(KindInvalidArgument, fmt.Errorf("%w: texture reference is invalid", ErrInvalidFrame), start)
	}

	if p.bufs.width != width || p.bufs.height != height {
		bufs, err := p.allocate(width, height)
		if err != nil {
			return failedFrame(KindDispatch, fmt.Errorf("%w: %w", ErrDispatch, err), start)
		}
		p.destroyBuffers(p.bufs)
		p.bufs = bufs
		p.haveFrame = false
		p.stats.Resizes++
		p.log().Info("processor: frame size changed", "width", width, "height", height)
	}

	a := p.adapter
	b := p.bufs
	if err := a.CopyTextureToBuffer(texture, b.input, width, height); err != nil {
		return failedFrame(KindInvalidArgument, fmt.Errorf("%w: texture %d: %w", ErrInvalidFrame, texture, err), start)
	}

	wg := p.opt.kernel.WorkgroupSize
	pass := a.BeginComputePass(p.opt.kernel.Name)
	pass.SetPipeline(p.pipe.compute)
	pass.SetBindGroup(0, b.bindGroup)
	pass.Dispatch(gpucore.WorkgroupCount(width, wg[0]), gpucore.WorkgroupCount(height, wg[1]), 1)
	pass.End()

	if err := a.Submit(); err != nil {
		return p.dispatchFailed(err, start)
	}
	if err := a.WaitIdle(); err != nil {
		return p.dispatchFailed(err, start)
	}

	p.seq++
	p.haveFrame = true
	p.stats.Width, p.stats.Height = width, height
	return ProcessedFrame{
		Processed: true,
		Width:     width,
		Height:    height,
		Seq:       p.seq,
		TraceID:   uuid.New().String(),
		Duration:  time.Since(start),
	}
}

func (p *Processor) dispatchFailed(err error, start time.Time) ProcessedFrame {
	if lost := p.adapter.Lost(); lost != nil {
		p.markLostLocked(lost)
	}
	return failedFrame(KindDispatch, fmt.Errorf("%w: %w", ErrDispatch, err), start)
}

// ReadOutput copies the last successful frame back to the CPU as tightly
// packed RGBA bytes. It stalls until the GPU is done.
func (p *Processor) ReadOutput() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, size, err := p.outputLocked()
	if err != nil {
		return nil, err
	}
	return p.adapter.ReadBuffer(id, 0, size)
}

// asyncReader is implemented by adapters whose readback completes later,
// such as the browser adapter.
type asyncReader interface {
	ReadBufferAsync(id gpucore.BufferID, offset, size uint64, done func([]byte, error))
}

// ReadOutputAsync is ReadOutput for hosts that cannot block. done is called
// exactly once, possibly before ReadOutputAsync returns.
//
// The lock is not held while the read is in flight. If Close or Initialize
// releases the output buffer before the read completes, done gets
// ErrNotReady.
func (p *Processor) ReadOutputAsync(done func([]byte, error)) {
	p.mu.Lock()
	id, size, err := p.outputLocked()
	a, bufs := p.adapter, p.bufs
	p.mu.Unlock()
	if err != nil {
		done(nil, err)
		return
	}
	finish := func(data []byte, err error) {
		if err != nil && !p.holds(bufs) {
			err = fmt.Errorf("%w: output released during readback: %w", ErrNotReady, err)
		}
		done(data, err)
	}
	if ar, ok := a.(asyncReader); ok {
		ar.ReadBufferAsync(id, 0, size, finish)
		return
	}
	finish(a.ReadBuffer(id, 0, size))
}

// holds reports whether bufs are still the processor's live frame buffers.
func (p *Processor) holds(bufs *frameBuffers) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Ready && p.bufs == bufs
}

func (p *Processor) outputLocked() (gpucore.BufferID, uint64, error) {
	if p.state != Ready {
		return gpucore.InvalidID, 0, ErrNotReady
	}
	if !p.haveFrame {
		return gpucore.InvalidID, 0, ErrNoFrame
	}
	_, size := frameSizes(p.bufs.width, p.bufs.height)
	return p.bufs.output, size, nil
}

// Close releases the processor's GPU objects and returns it to
// Uninitialized. The host's device is never destroyed.
func (p *Processor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
	p.adapter = nil
	p.state = Uninitialized
	p.err = nil
}
