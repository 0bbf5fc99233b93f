// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js

package device

import (
	"fmt"
	"sync"

	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

const backendName = "vulkan"

// IsAvailable reports whether a WebGPU backend with at least one adapter is
// present. It never fails; every error is reported as false.
func IsAvailable() bool {
	adapter, err := RequestAdapter()
	if err != nil {
		slogger().Debug("device: WebGPU not available", "err", err)
		return false
	}
	adapter.Release()
	return true
}

// Adapter is an enumerated HAL adapter together with the instance that owns
// it. It implements gpucontext.Adapter.
type Adapter struct {
	exposed  hal.ExposedAdapter
	instance hal.Instance
	once     sync.Once
}

var _ gpucontext.Adapter = (*Adapter)(nil)

// Info describes the adapter.
func (a *Adapter) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{
		Name:       a.exposed.Info.Name,
		DeviceType: deviceTypeName(a.exposed.Info.DeviceType),
		Backend:    backendName,
	}
}

// Release destroys the instance backing the adapter. Devices opened from it
// must be destroyed first.
func (a *Adapter) Release() {
	a.once.Do(func() {
		if a.instance != nil {
			a.instance.Destroy()
		}
	})
}

// RequestAdapter creates a Vulkan instance and picks a discrete or
// integrated GPU, falling back to the first adapter found.
func RequestAdapter() (*Adapter, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrBackendUnavailable
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrBackendUnavailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := 0
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = i
			break
		}
	}
	return &Adapter{exposed: adapters[selected], instance: instance}, nil
}

// DescribeAdapter returns a human-readable description of adapter, or
// NoAdapterDescription when it is nil or not a HAL adapter.
func DescribeAdapter(adapter gpucontext.Adapter) string {
	a, ok := adapter.(*Adapter)
	if !ok || a == nil {
		return NoAdapterDescription
	}
	return a.Info().String()
}

// CreateDevice opens a device on adapter. It returns nil on any failure and
// logs the reason; callers treat nil as "no GPU".
func CreateDevice(adapter gpucontext.Adapter) gpucontext.DeviceProvider {
	a, ok := adapter.(*Adapter)
	if !ok || a == nil {
		slogger().Warn("device: create device: no HAL adapter given")
		return nil
	}
	p, err := openProvider(a, false)
	if err != nil {
		slogger().Warn("device: create device failed", "adapter", a.exposed.Info.Name, "err", err)
		return nil
	}
	return p
}

// OpenDefault requests the default adapter and opens a device on it. The
// returned provider owns both; Destroy releases them.
func OpenDefault() (*HALProvider, error) {
	a, err := RequestAdapter()
	if err != nil {
		return nil, err
	}
	p, err := openProvider(a, true)
	if err != nil {
		a.Release()
		return nil, err
	}
	return p, nil
}

func openProvider(a *Adapter, ownsAdapter bool) (*HALProvider, error) {
	openDev, err := a.exposed.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	p := &HALProvider{
		adapter:     a,
		device:      openDev.Device,
		queue:       openDev.Queue,
		ownsAdapter: ownsAdapter,
	}
	slogger().Info("device: opened", "adapter", a.Info().String())
	return p, nil
}

// HALProvider is a gpucontext.DeviceProvider backed by a HAL device it owns.
// It also satisfies the HalDevice/HalQueue contract used by gg accelerators,
// so the same device can be shared with a renderer.
type HALProvider struct {
	mu          sync.Mutex
	adapter     *Adapter
	device      hal.Device
	queue       hal.Queue
	compute     *HALAdapter
	ownsAdapter bool
}

var (
	_ gpucontext.DeviceProvider = (*HALProvider)(nil)
	_ AdapterProvider           = (*HALProvider)(nil)
)

// Device returns the device handle, or nil once destroyed.
func (p *HALProvider) Device() gpucontext.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return nil
	}
	return halDeviceHandle{p: p}
}

// Queue returns the queue handle.
func (p *HALProvider) Queue() gpucontext.Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		return nil
	}
	return p.queue
}

// Adapter returns the adapter the device was opened on.
func (p *HALProvider) Adapter() gpucontext.Adapter { return p.adapter }

// AdapterInfo reports the name and type of the adapter the device was
// opened on.
func (p *HALProvider) AdapterInfo() gpucontext.AdapterInfo {
	if p.adapter == nil {
		return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
	}
	return contextAdapterInfo(p.adapter.Info())
}

// SurfaceFormat reports the preferred texture format. Compute-only devices
// have no surface, so RGBA8 is reported.
func (p *HALProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// HalDevice returns the underlying hal.Device.
func (p *HALProvider) HalDevice() any { return p.device }

// HalQueue returns the underlying hal.Queue.
func (p *HALProvider) HalQueue() any { return p.queue }

// ComputeAdapter returns the compute adapter for this device, creating it on
// first use. Every caller shares the same adapter so texture IDs imported by
// the host are visible to the processor.
func (p *HALProvider) ComputeAdapter() gpucore.GPUAdapter {
	a := p.HAL()
	if a == nil {
		return nil
	}
	return a
}

// HAL returns the concrete compute adapter, or nil once destroyed.
func (p *HALProvider) HAL() *HALAdapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return nil
	}
	if p.compute == nil {
		p.compute = NewHALAdapter(p.device, p.queue, p.adapter.Info())
	}
	return p.compute
}

// Destroy releases the compute adapter's resources and the device. When the
// provider came from OpenDefault the instance is released too.
func (p *HALProvider) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return
	}
	if p.compute != nil {
		p.compute.Close()
		p.compute = nil
	}
	p.device.Destroy()
	p.device = nil
	p.queue = nil
	if p.ownsAdapter && p.adapter != nil {
		p.adapter.Release()
	}
	slogger().Info("device: destroyed")
}

// halDeviceHandle is the gpucontext.Device view of a HALProvider.
type halDeviceHandle struct {
	p *HALProvider
}

// Poll is a no-op: HALAdapter.Submit waits for its own submissions.
func (halDeviceHandle) Poll(bool) {}

// Destroy destroys the owning provider.
func (d halDeviceHandle) Destroy() { d.p.Destroy() }

// resolveHAL adapts a provider exposing HAL handles that is not a
// HALProvider, such as a gogpu application window.
func resolveHAL(hp halProvider) (gpucore.GPUAdapter, error) {
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, ErrNilDevice
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("HalQueue() is not a hal.Queue: %w", ErrUnsupportedProvider)
	}
	return NewHALAdapter(dev, queue, gpucore.AdapterInfo{Name: "host device", Backend: backendName}), nil
}

func deviceTypeName(t gputypes.DeviceType) string {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	case gputypes.DeviceTypeCPU:
		return "cpu"
	default:
		return "other"
	}
}
