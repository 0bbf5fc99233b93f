// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package device

import (
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/gogpu/cvcore/gpucore"
)

// GPUShaderStage, GPUTextureUsage and GPUMapMode bits from the WebGPU API.
const (
	shaderStageCompute = 0x4

	textureUsageCopySrc        = 0x01
	textureUsageCopyDst        = 0x02
	textureUsageTextureBinding = 0x04

	mapModeRead = 0x1
)

type jsBuffer struct {
	v    js.Value
	size uint64
}

type jsTexture struct {
	v             js.Value
	width, height int
	owned         bool
}

// JSAdapter implements gpucore.GPUAdapter on top of the page's GPUDevice.
// Exceptions thrown by WebGPU calls are recovered and returned as errors.
type JSAdapter struct {
	mu     sync.Mutex
	device js.Value
	queue  js.Value
	info   gpucore.AdapterInfo

	maxBufferSize uint64
	maxWorkgroup  [3]uint32
	maxWorkgroups uint32
	nextID        uint64
	buffers       map[gpucore.BufferID]*jsBuffer
	textures      map[gpucore.TextureID]*jsTexture
	objects       map[uint64]js.Value // modules, layouts, pipelines, bind groups
	encoder       js.Value
	hasEncoder    bool
	lost          error
	lostCallback  js.Func

	// gpuErr holds the first uncaptured GPU error since the last Submit
	// or WaitIdle. It has its own lock because the browser may fire the
	// event while mu is held.
	errMu         sync.Mutex
	gpuErr        error
	errorCallback js.Func
	hasErrorCB    bool
}

var _ gpucore.GPUAdapter = (*JSAdapter)(nil)

// NewJSAdapter wraps a GPUDevice and subscribes to its lost promise and
// its uncapturederror event.
func NewJSAdapter(device js.Value) *JSAdapter {
	a := &JSAdapter{
		device:        device,
		queue:         device.Get("queue"),
		info:          adapterInfoFromJS(device.Get("adapterInfo")),
		maxBufferSize: 1 << 27,
		maxWorkgroup:  [3]uint32{256, 256, 64},
		maxWorkgroups: 65535,
		nextID:        1,
		buffers:       make(map[gpucore.BufferID]*jsBuffer),
		textures:      make(map[gpucore.TextureID]*jsTexture),
		objects:       make(map[uint64]js.Value),
	}

	if lim := device.Get("limits"); lim.Type() == js.TypeObject {
		if v := lim.Get("maxStorageBufferBindingSize"); v.Type() == js.TypeNumber {
			a.maxBufferSize = uint64(v.Float())
		}
		for i, key := range []string{"maxComputeWorkgroupSizeX", "maxComputeWorkgroupSizeY", "maxComputeWorkgroupSizeZ"} {
			if v := lim.Get(key); v.Type() == js.TypeNumber {
				a.maxWorkgroup[i] = uint32(v.Int())
			}
		}
		if v := lim.Get("maxComputeWorkgroupsPerDimension"); v.Type() == js.TypeNumber {
			a.maxWorkgroups = uint32(v.Int())
		}
	}

	if lost := device.Get("lost"); lost.Type() == js.TypeObject && lost.Get("then").Type() == js.TypeFunction {
		a.lostCallback = js.FuncOf(func(_ js.Value, args []js.Value) any {
			reason := "unknown"
			if len(args) > 0 && args[0].Type() == js.TypeObject {
				if msg := args[0].Get("message"); msg.Type() == js.TypeString && msg.String() != "" {
					reason = msg.String()
				} else if r := args[0].Get("reason"); r.Type() == js.TypeString {
					reason = r.String()
				}
			}
			a.mu.Lock()
			a.lost = fmt.Errorf("%w: %s", ErrDeviceLost, reason)
			a.mu.Unlock()
			slogger().Warn("device: GPUDevice lost", "reason", reason)
			return nil
		})
		lost.Call("then", a.lostCallback)
	}

	if device.Get("addEventListener").Type() == js.TypeFunction {
		a.errorCallback = js.FuncOf(func(_ js.Value, args []js.Value) any {
			msg := "unknown error"
			if len(args) > 0 && args[0].Type() == js.TypeObject {
				if e := args[0].Get("error"); e.Type() == js.TypeObject {
					if m := e.Get("message"); m.Type() == js.TypeString && m.String() != "" {
						msg = m.String()
					}
				}
			}
			a.errMu.Lock()
			if a.gpuErr == nil {
				a.gpuErr = fmt.Errorf("%w: %s", ErrGPUValidation, msg)
			}
			a.errMu.Unlock()
			slogger().Warn("device: uncaptured GPU error", "message", msg)
			return nil
		})
		a.hasErrorCB = true
		device.Call("addEventListener", "uncapturederror", a.errorCallback)
	}
	return a
}

// takeGPUError returns and clears the pending uncaptured GPU error.
func (a *JSAdapter) takeGPUError() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	err := a.gpuErr
	a.gpuErr = nil
	return err
}

// call runs fn, converting a thrown JS exception into an error.
func call(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var jsErr js.Error
			if e, ok := r.(error); ok && errors.As(e, &jsErr) {
				err = fmt.Errorf("%s: %s", op, jsErr.Value.Get("message").String())
				return
			}
			err = fmt.Errorf("%s: %v", op, r)
		}
	}()
	fn()
	return nil
}

func (a *JSAdapter) newID() uint64 {
	id := a.nextID
	a.nextID++
	return id
}

func (a *JSAdapter) Info() gpucore.AdapterInfo { return a.info }

func (a *JSAdapter) SupportsCompute() bool { return true }

func (a *JSAdapter) MaxWorkgroupSize() [3]uint32 { return a.maxWorkgroup }

func (a *JSAdapter) MaxWorkgroupsPerDimension() uint32 { return a.maxWorkgroups }

func (a *JSAdapter) MaxBufferSize() uint64 { return a.maxBufferSize }

// Lost reports the reason the device was lost, once the lost promise resolved.
func (a *JSAdapter) Lost() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lost
}

// create runs a device factory call and stores the result under a new ID.
func (a *JSAdapter) create(op string, fn func() js.Value) (uint64, error) {
	var v js.Value
	if err := call(op, func() { v = fn() }); err != nil {
		return gpucore.InvalidID, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.newID()
	a.objects[id] = v
	return id, nil
}

func (a *JSAdapter) object(id uint64) (js.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.objects[id]
	if !ok {
		return js.Undefined(), fmt.Errorf("object %d: %w", id, ErrUnknownResource)
	}
	return v, nil
}

func (a *JSAdapter) forget(id uint64) {
	a.mu.Lock()
	delete(a.objects, id)
	a.mu.Unlock()
}

func (a *JSAdapter) CreateShaderModule(wgsl, label string) (gpucore.ShaderModuleID, error) {
	id, err := a.create("create shader module", func() js.Value {
		return a.device.Call("createShaderModule", map[string]any{"label": label, "code": wgsl})
	})
	return gpucore.ShaderModuleID(id), err
}

func (a *JSAdapter) DestroyShaderModule(id gpucore.ShaderModuleID) { a.forget(uint64(id)) }

func (a *JSAdapter) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("buffer %q: size must be positive", label)
	}
	var v js.Value
	err := call("create buffer "+label, func() {
		v = a.device.Call("createBuffer", map[string]any{
			"label": label,
			"size":  float64(size),
			"usage": uint32(usage),
		})
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BufferID(a.newID())
	a.buffers[id] = &jsBuffer{v: v, size: size}
	return id, nil
}

func (a *JSAdapter) buffer(id gpucore.BufferID) (*jsBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("buffer %d: %w", id, ErrUnknownResource)
	}
	return b, nil
}

func (a *JSAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		_ = call("destroy buffer", func() { b.v.Call("destroy") })
	}
}

func (a *JSAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, err := a.buffer(id)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write buffer %d: %d bytes at %d overflow size %d", id, len(data), offset, b.size)
	}
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return call("write buffer", func() {
		a.queue.Call("writeBuffer", b.v, float64(offset), arr)
	})
}

// ReadBuffer cannot complete synchronously in the browser.
func (a *JSAdapter) ReadBuffer(gpucore.BufferID, uint64, uint64) ([]byte, error) {
	return nil, ErrAsyncReadback
}

// ReadBufferAsync copies the range into a mappable staging buffer, submits
// pending work and calls done from the event loop once mapAsync resolves.
// done is called exactly once.
func (a *JSAdapter) ReadBufferAsync(id gpucore.BufferID, offset, size uint64, done func([]byte, error)) {
	if err := a.Lost(); err != nil {
		done(nil, err)
		return
	}
	b, err := a.buffer(id)
	if err != nil {
		done(nil, err)
		return
	}
	if offset+size > b.size {
		done(nil, fmt.Errorf("read buffer %d: range %d+%d exceeds size %d", id, offset, size, b.size))
		return
	}

	var staging js.Value
	err = call("readback", func() {
		staging = a.device.Call("createBuffer", map[string]any{
			"label": "readback_staging",
			"size":  float64(size),
			"usage": uint32(gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst),
		})
	})
	if err != nil {
		done(nil, err)
		return
	}

	a.mu.Lock()
	enc, err := a.pendingEncoderLocked()
	if err == nil {
		err = call("readback copy", func() {
			enc.Call("copyBufferToBuffer", b.v, float64(offset), staging, 0, float64(size))
		})
	}
	if err == nil {
		err = a.submitLocked()
	}
	a.mu.Unlock()
	if err != nil {
		_ = call("destroy staging", func() { staging.Call("destroy") })
		done(nil, err)
		return
	}

	var onOK, onErr js.Func
	release := func() {
		onOK.Release()
		onErr.Release()
		_ = call("destroy staging", func() { staging.Call("destroy") })
	}
	onOK = js.FuncOf(func(js.Value, []js.Value) any {
		out := make([]byte, size)
		err := call("read mapped range", func() {
			mapped := js.Global().Get("Uint8Array").New(staging.Call("getMappedRange"))
			js.CopyBytesToGo(out, mapped)
			staging.Call("unmap")
		})
		release()
		if err != nil {
			done(nil, err)
			return nil
		}
		done(out, nil)
		return nil
	})
	onErr = js.FuncOf(func(_ js.Value, args []js.Value) any {
		msg := "mapAsync rejected"
		if len(args) > 0 && args[0].Type() == js.TypeObject {
			if m := args[0].Get("message"); m.Type() == js.TypeString {
				msg = m.String()
			}
		}
		release()
		done(nil, fmt.Errorf("readback: %s", msg))
		return nil
	})
	if err := call("mapAsync", func() {
		staging.Call("mapAsync", mapModeRead).Call("then", onOK, onErr)
	}); err != nil {
		release()
		done(nil, err)
	}
}

// RegisterTexture makes a host GPUTexture addressable by ID. The adapter
// never destroys registered textures.
// Values without numeric width and height are not textures and get
// InvalidID.
func (a *JSAdapter) RegisterTexture(tex js.Value) gpucore.TextureID {
	if tex.Type() != js.TypeObject {
		return gpucore.InvalidID
	}
	w, h := tex.Get("width"), tex.Get("height")
	if w.Type() != js.TypeNumber || h.Type() != js.TypeNumber || w.Int() <= 0 || h.Int() <= 0 {
		return gpucore.InvalidID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.newID())
	a.textures[id] = &jsTexture{v: tex, width: w.Int(), height: h.Int()}
	return id
}

// ReleaseTexture forgets a registered texture.
func (a *JSAdapter) ReleaseTexture(id gpucore.TextureID) {
	a.mu.Lock()
	delete(a.textures, id)
	a.mu.Unlock()
}

func (a *JSAdapter) CreateTexture(width, height int, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("texture dimensions must be positive, got %dx%d", width, height)
	}
	var v js.Value
	err := call("create texture", func() {
		v = a.device.Call("createTexture", map[string]any{
			"size":   []any{width, height},
			"format": format.String(),
			"usage":  textureUsageTextureBinding | textureUsageCopySrc | textureUsageCopyDst,
		})
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.newID())
	a.textures[id] = &jsTexture{v: v, width: width, height: height, owned: true}
	return id, nil
}

func (a *JSAdapter) texture(id gpucore.TextureID) (*jsTexture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return nil, fmt.Errorf("texture %d: %w", id, ErrUnknownResource)
	}
	return t, nil
}

func (a *JSAdapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	t, ok := a.textures[id]
	delete(a.textures, id)
	a.mu.Unlock()
	if ok && t.owned {
		_ = call("destroy texture", func() { t.v.Call("destroy") })
	}
}

func (a *JSAdapter) WriteTexture(id gpucore.TextureID, data []byte) error {
	t, err := a.texture(id)
	if err != nil {
		return err
	}
	w, h := t.width, t.height
	if want := w * h * gpucore.BytesPerPixel; len(data) != want {
		return fmt.Errorf("write texture %d: got %d bytes, want %d", id, len(data), want)
	}
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return call("write texture", func() {
		a.queue.Call("writeTexture",
			map[string]any{"texture": t.v},
			arr,
			map[string]any{"bytesPerRow": w * gpucore.BytesPerPixel, "rowsPerImage": h},
			[]any{w, h},
		)
	})
}

func (a *JSAdapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("nil bind group layout descriptor")
	}
	entries := make([]any, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = map[string]any{
			"binding":    e.Binding,
			"visibility": shaderStageCompute,
			"buffer": map[string]any{
				"type":           bufferBindingType(e.Type),
				"minBindingSize": float64(e.MinBindingSize),
			},
		}
	}
	id, err := a.create("create bind group layout", func() js.Value {
		return a.device.Call("createBindGroupLayout", map[string]any{"label": desc.Label, "entries": entries})
	})
	return gpucore.BindGroupLayoutID(id), err
}

func (a *JSAdapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) { a.forget(uint64(id)) }

func (a *JSAdapter) CreatePipelineLayout(label string, layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	jsLayouts := make([]any, len(layouts))
	for i, l := range layouts {
		v, err := a.object(uint64(l))
		if err != nil {
			return gpucore.InvalidID, err
		}
		jsLayouts[i] = v
	}
	id, err := a.create("create pipeline layout", func() js.Value {
		return a.device.Call("createPipelineLayout", map[string]any{"label": label, "bindGroupLayouts": jsLayouts})
	})
	return gpucore.PipelineLayoutID(id), err
}

func (a *JSAdapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) { a.forget(uint64(id)) }

func (a *JSAdapter) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("nil compute pipeline descriptor")
	}
	layout, err := a.object(uint64(desc.Layout))
	if err != nil {
		return gpucore.InvalidID, err
	}
	module, err := a.object(uint64(desc.ShaderModule))
	if err != nil {
		return gpucore.InvalidID, err
	}
	id, err := a.create("create compute pipeline", func() js.Value {
		return a.device.Call("createComputePipeline", map[string]any{
			"label":   desc.Label,
			"layout":  layout,
			"compute": map[string]any{"module": module, "entryPoint": desc.EntryPoint},
		})
	})
	return gpucore.ComputePipelineID(id), err
}

func (a *JSAdapter) DestroyComputePipeline(id gpucore.ComputePipelineID) { a.forget(uint64(id)) }

func (a *JSAdapter) CreateBindGroup(label string, layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	jsLayout, err := a.object(uint64(layout))
	if err != nil {
		return gpucore.InvalidID, err
	}
	jsEntries := make([]any, len(entries))
	for i, e := range entries {
		b, err := a.buffer(e.Buffer)
		if err != nil {
			return gpucore.InvalidID, err
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		jsEntries[i] = map[string]any{
			"binding":  e.Binding,
			"resource": map[string]any{"buffer": b.v, "offset": float64(e.Offset), "size": float64(size)},
		}
	}
	id, err := a.create("create bind group", func() js.Value {
		return a.device.Call("createBindGroup", map[string]any{"label": label, "layout": jsLayout, "entries": jsEntries})
	})
	return gpucore.BindGroupID(id), err
}

func (a *JSAdapter) DestroyBindGroup(id gpucore.BindGroupID) { a.forget(uint64(id)) }

func (a *JSAdapter) pendingEncoderLocked() (js.Value, error) {
	if a.hasEncoder {
		return a.encoder, nil
	}
	var enc js.Value
	if err := call("create command encoder", func() {
		enc = a.device.Call("createCommandEncoder", map[string]any{"label": "frame_encoder"})
	}); err != nil {
		return js.Undefined(), err
	}
	a.encoder = enc
	a.hasEncoder = true
	return enc, nil
}

func (a *JSAdapter) CopyTextureToBuffer(src gpucore.TextureID, dst gpucore.BufferID, width, height int) error {
	t, err := a.texture(src)
	if err != nil {
		return err
	}
	b, err := a.buffer(dst)
	if err != nil {
		return err
	}
	if width > t.width || height > t.height {
		return fmt.Errorf("copy %dx%d exceeds texture %d (%dx%d)", width, height, src, t.width, t.height)
	}
	stride := gpucore.AlignedBytesPerRow(width)
	if uint64(stride)*uint64(height) > b.size {
		return fmt.Errorf("copy %dx%d overflows buffer %d (%d bytes)", width, height, dst, b.size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	enc, err := a.pendingEncoderLocked()
	if err != nil {
		return err
	}
	return call("copy texture to buffer", func() {
		enc.Call("copyTextureToBuffer",
			map[string]any{"texture": t.v},
			map[string]any{"buffer": b.v, "bytesPerRow": stride, "rowsPerImage": height},
			[]any{width, height, 1},
		)
	})
}

func (a *JSAdapter) BeginComputePass(label string) gpucore.ComputePassEncoder {
	a.mu.Lock()
	defer a.mu.Unlock()
	enc, err := a.pendingEncoderLocked()
	if err != nil {
		slogger().Warn("device: begin compute pass", "err", err)
		return &jsComputePassEncoder{adapter: a}
	}
	var pass js.Value
	if err := call("begin compute pass", func() {
		pass = enc.Call("beginComputePass", map[string]any{"label": label})
	}); err != nil {
		slogger().Warn("device: begin compute pass", "err", err)
		return &jsComputePassEncoder{adapter: a}
	}
	return &jsComputePassEncoder{adapter: a, pass: pass, ok: true}
}

// Submit finishes the pending encoder and queues it. The browser queue is
// ordered, so there is nothing to wait on. A GPU error reported since the
// last Submit or WaitIdle fails the call and drops the pending commands.
func (a *JSAdapter) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitLocked()
}

func (a *JSAdapter) submitLocked() error {
	if a.lost != nil {
		a.encoder = js.Undefined()
		a.hasEncoder = false
		return a.lost
	}
	if err := a.takeGPUError(); err != nil {
		a.encoder = js.Undefined()
		a.hasEncoder = false
		return err
	}
	if !a.hasEncoder {
		return fmt.Errorf("submit: no commands recorded")
	}
	enc := a.encoder
	a.encoder = js.Undefined()
	a.hasEncoder = false
	return call("submit", func() {
		a.queue.Call("submit", []any{enc.Call("finish")})
	})
}

// WaitIdle reports device loss or a GPU error raised since the last check.
// Errors the browser reports later surface on the next Submit or WaitIdle.
func (a *JSAdapter) WaitIdle() error {
	if err := a.Lost(); err != nil {
		return err
	}
	return a.takeGPUError()
}

// Close destroys the buffers and textures the adapter created and drops
// every other handle. Registered host textures are left alone.
func (a *JSAdapter) Close() {
	a.mu.Lock()
	buffers := a.buffers
	textures := a.textures
	a.buffers = make(map[gpucore.BufferID]*jsBuffer)
	a.textures = make(map[gpucore.TextureID]*jsTexture)
	a.objects = make(map[uint64]js.Value)
	a.encoder = js.Undefined()
	a.hasEncoder = false
	hasErrorCB := a.hasErrorCB
	a.hasErrorCB = false
	a.mu.Unlock()

	if hasErrorCB {
		_ = call("remove uncapturederror listener", func() {
			a.device.Call("removeEventListener", "uncapturederror", a.errorCallback)
		})
		a.errorCallback.Release()
	}
	for _, b := range buffers {
		_ = call("destroy buffer", func() { b.v.Call("destroy") })
	}
	for _, t := range textures {
		if t.owned {
			_ = call("destroy texture", func() { t.v.Call("destroy") })
		}
	}
}

func bufferBindingType(t gpucore.BindingType) string {
	switch t {
	case gpucore.BindingTypeUniformBuffer:
		return "uniform"
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		return "read-only-storage"
	default:
		return "storage"
	}
}

type jsComputePassEncoder struct {
	adapter *JSAdapter
	pass    js.Value
	ok      bool
}

func (e *jsComputePassEncoder) SetPipeline(pipeline gpucore.ComputePipelineID) {
	if !e.ok {
		return
	}
	if p, err := e.adapter.object(uint64(pipeline)); err == nil {
		_ = call("set pipeline", func() { e.pass.Call("setPipeline", p) })
	}
}

func (e *jsComputePassEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if !e.ok {
		return
	}
	if bg, err := e.adapter.object(uint64(group)); err == nil {
		_ = call("set bind group", func() { e.pass.Call("setBindGroup", index, bg) })
	}
}

func (e *jsComputePassEncoder) Dispatch(x, y, z uint32) {
	if !e.ok {
		return
	}
	_ = call("dispatch", func() { e.pass.Call("dispatchWorkgroups", x, y, z) })
}

func (e *jsComputePassEncoder) End() {
	if !e.ok {
		return
	}
	_ = call("end compute pass", func() { e.pass.Call("end") })
}
