// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package device

import (
	"strings"
	"sync"
	"syscall/js"

	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

const backendName = "webgpu"

// IsAvailable reports whether the page exposes navigator.gpu.
func IsAvailable() bool {
	nav := js.Global().Get("navigator")
	if nav.IsUndefined() || nav.IsNull() {
		return false
	}
	gpu := nav.Get("gpu")
	return !gpu.IsUndefined() && !gpu.IsNull()
}

// Adapter wraps a GPUAdapter obtained by the host page.
// It implements gpucontext.Adapter.
type Adapter struct {
	v js.Value
}

var _ gpucontext.Adapter = (*Adapter)(nil)

// NewAdapter wraps a JS GPUAdapter. It returns nil for null, undefined and
// other non-objects.
func NewAdapter(v js.Value) *Adapter {
	if v.Type() != js.TypeObject {
		return nil
	}
	return &Adapter{v: v}
}

// Info reads GPUAdapterInfo from the adapter.
func (a *Adapter) Info() gpucore.AdapterInfo {
	return adapterInfoFromJS(a.v.Get("info"))
}

// DescribeAdapter returns a human-readable description of adapter, or
// NoAdapterDescription when it is nil or not a browser adapter.
func DescribeAdapter(adapter gpucontext.Adapter) string {
	a, ok := adapter.(*Adapter)
	if !ok || a == nil {
		return NoAdapterDescription
	}
	return a.Info().String()
}

// CreateDevice always returns nil in the browser: requestDevice resolves a
// Promise on a later event-loop turn, and device acquisition belongs to the
// host page. Pass the host's GPUDevice to NewJSProvider instead.
func CreateDevice(adapter gpucontext.Adapter) gpucontext.DeviceProvider {
	slogger().Warn("device: create device is unavailable in the browser; the host must supply a GPUDevice",
		"adapter", DescribeAdapter(adapter))
	return nil
}

// JSProvider is a gpucontext.DeviceProvider wrapping a GPUDevice supplied by
// the host page. The core never destroys it.
type JSProvider struct {
	once    sync.Once
	device  js.Value
	compute *JSAdapter
}

var (
	_ gpucontext.DeviceProvider = (*JSProvider)(nil)
	_ AdapterProvider           = (*JSProvider)(nil)
)

// NewJSProvider wraps a host GPUDevice. It returns nil when device is null,
// undefined or not a GPUDevice.
func NewJSProvider(device js.Value) *JSProvider {
	if device.Type() != js.TypeObject || device.Get("queue").Type() != js.TypeObject {
		return nil
	}
	return &JSProvider{device: device}
}

// Device returns the device handle.
func (p *JSProvider) Device() gpucontext.Device { return jsDeviceHandle{} }

// Queue returns the queue handle.
func (p *JSProvider) Queue() gpucontext.Queue { return jsQueueHandle{} }

// Adapter returns nil: a GPUDevice does not reference its adapter.
func (p *JSProvider) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports what the device exposes through adapterInfo.
func (p *JSProvider) AdapterInfo() gpucontext.AdapterInfo {
	return contextAdapterInfo(adapterInfoFromJS(p.device.Get("adapterInfo")))
}

// SurfaceFormat returns the canvas's preferred format.
func (p *JSProvider) SurfaceFormat() gputypes.TextureFormat {
	gpu := js.Global().Get("navigator").Get("gpu")
	if gpu.Truthy() && gpu.Get("getPreferredCanvasFormat").Type() == js.TypeFunction {
		if gpu.Call("getPreferredCanvasFormat").String() == "rgba8unorm" {
			return gputypes.TextureFormatRGBA8Unorm
		}
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// ComputeAdapter returns the compute adapter bound to the device.
func (p *JSProvider) ComputeAdapter() gpucore.GPUAdapter {
	return p.JS()
}

// JS returns the concrete browser adapter.
func (p *JSProvider) JS() *JSAdapter {
	p.once.Do(func() {
		p.compute = NewJSAdapter(p.device)
	})
	return p.compute
}

// RegisterTexture makes a host GPUTexture addressable by ID.
func (p *JSProvider) RegisterTexture(tex js.Value) gpucore.TextureID {
	return p.JS().RegisterTexture(tex)
}

// ReleaseTexture forgets a registered texture without destroying it.
func (p *JSProvider) ReleaseTexture(id gpucore.TextureID) {
	p.JS().ReleaseTexture(id)
}

// Release frees the GPU objects created through the provider. The host's
// device itself is left alone.
func (p *JSProvider) Release() {
	if p.compute != nil {
		p.compute.Close()
	}
}

type jsDeviceHandle struct{}

func (jsDeviceHandle) Poll(bool) {}
func (jsDeviceHandle) Destroy()  {}

type jsQueueHandle struct{}

// resolveHAL never succeeds in the browser; there is no HAL.
func resolveHAL(halProvider) (gpucore.GPUAdapter, error) {
	return nil, ErrUnsupportedProvider
}

func adapterInfoFromJS(info js.Value) gpucore.AdapterInfo {
	if info.Type() != js.TypeObject {
		return gpucore.AdapterInfo{Backend: backendName}
	}
	str := func(key string) string {
		v := info.Get(key)
		if v.Type() != js.TypeString {
			return ""
		}
		return v.String()
	}
	name := str("description")
	if name == "" {
		name = strings.TrimSpace(str("vendor") + " " + str("architecture"))
	}
	return gpucore.AdapterInfo{
		Name:       name,
		Vendor:     str("vendor"),
		DeviceType: str("architecture"),
		Backend:    backendName,
	}
}
