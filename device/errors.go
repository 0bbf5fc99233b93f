// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "errors"

// Package errors for the device layer.
var (
	// ErrNilDevice is returned when the host supplied no device, or a
	// provider whose Device() is nil. Retrying with the same provider
	// cannot succeed.
	ErrNilDevice = errors.New("device: no GPU device provided")

	// ErrUnsupportedProvider is returned when a provider exposes neither a
	// compute adapter nor HAL handles.
	ErrUnsupportedProvider = errors.New("device: provider does not expose a compute adapter")

	// ErrDeviceLost is returned once the host environment revoked the device.
	ErrDeviceLost = errors.New("device: GPU device lost")

	// ErrNoAdapter is returned when no GPU adapter could be enumerated.
	ErrNoAdapter = errors.New("device: no GPU adapter available")

	// ErrBackendUnavailable is returned when the platform has no WebGPU backend.
	ErrBackendUnavailable = errors.New("device: WebGPU backend not available")

	// ErrAsyncReadback is returned by synchronous readback in the browser,
	// where buffer mapping only completes on a later event-loop turn.
	ErrAsyncReadback = errors.New("device: synchronous readback not supported, use ReadBufferAsync")

	// ErrGPUValidation is returned when the browser reported an uncaptured
	// GPU error, such as a rejected command buffer.
	ErrGPUValidation = errors.New("device: GPU reported an error")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("device: unknown resource id")
)
