// Package cvcore is a WebGPU frame-processing core for industrial computer
// vision in the browser.
//
// # Overview
//
// A host web page owns the GPU: it acquires the adapter and device, decodes
// camera frames into textures and drives the render loop. cvcore receives
// the device, builds a compute pipeline on it and runs a kernel over each
// frame texture the host hands in.
//
// # Quick Start
//
//	// Browser build (GOOS=js GOARCH=wasm), see cmd/cvcore-wasm:
//	host.Register(js.Global())
//
//	// JavaScript:
//	const core = new IndustrialCVCore(device);
//	core.initializeGraphics();
//	const r = core.processFrame(core.registerTexture(tex), 640, 480);
//
// Native builds run the same processor on gogpu/wgpu, see cmd/cvframe.
//
// # Architecture
//
// The module is organized into:
//   - gpucore: the GPUAdapter abstraction and resource ids
//   - device: capability checks and adapters for browser WebGPU and wgpu/hal
//   - processor: pipeline lifecycle, per-frame dispatch, kernels
//   - host: the facade the host page talks to
//
// # Logging
//
// Nothing is logged until [SetLogger] is called.
package cvcore

// Version information
const (
	// Version is the string reported to the host page.
	Version = "Industrial CV POC v" + VersionNumber

	// VersionNumber is the semantic version.
	VersionNumber = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
