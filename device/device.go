// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"
	"reflect"

	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/gpucontext"
)

// NoAdapterDescription is what DescribeAdapter reports for a nil or
// unrecognized adapter.
const NoAdapterDescription = "No adapter available"

// AdapterProvider is implemented by device providers that can hand out a
// ready compute adapter directly. The browser provider and test doubles
// implement it; native HAL providers are adapted by Resolve instead.
type AdapterProvider interface {
	ComputeAdapter() gpucore.GPUAdapter
}

// halProvider is the contract shared with gg accelerators: a provider that
// exposes wgpu/hal device and queue handles.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// DescribeProvider describes the adapter behind provider using the
// metadata the provider reports, or returns NoAdapterDescription.
func DescribeProvider(provider gpucontext.DeviceProvider) string {
	if isNil(provider) {
		return NoAdapterDescription
	}
	info := provider.AdapterInfo()
	if info.Name == "" {
		return NoAdapterDescription
	}
	return fmt.Sprintf("%s (%s)", info.Name, info.Type)
}

// contextAdapterInfo converts adapter metadata to the gpucontext form.
func contextAdapterInfo(info gpucore.AdapterInfo) gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case "discrete":
		t = gpucontext.AdapterTypeDiscrete
	case "integrated":
		t = gpucontext.AdapterTypeIntegrated
	case "cpu", "software":
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Name, Type: t}
}

// Resolve turns a host-supplied device provider into a compute adapter.
//
// A nil provider, or one whose Device() is nil, yields ErrNilDevice. The
// returned adapter borrows the host's device: destroying it is the host's
// business, never the caller's.
func Resolve(provider gpucontext.DeviceProvider) (gpucore.GPUAdapter, error) {
	if isNil(provider) || isNil(provider.Device()) {
		return nil, ErrNilDevice
	}
	if ap, ok := provider.(AdapterProvider); ok {
		a := ap.ComputeAdapter()
		if isNil(a) {
			return nil, ErrNilDevice
		}
		return a, nil
	}
	if hp, ok := provider.(halProvider); ok {
		a, err := resolveHAL(hp)
		if err != nil {
			return nil, fmt.Errorf("device: resolve HAL provider: %w", err)
		}
		return a, nil
	}
	return nil, ErrUnsupportedProvider
}

// isNil reports whether v is nil or a typed nil pointer wrapped in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
