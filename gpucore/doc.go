// Package gpucore provides the GPU abstraction shared by the cvcore packages.
//
// This package defines the [GPUAdapter] interface, which abstracts over the
// WebGPU implementations the frame processor can run on:
//   - the browser's WebGPU, reached through syscall/js (GOOS=js)
//   - gogpu/wgpu, the Pure Go WebGPU HAL (native builds)
//
// # Architecture
//
//	               +------------------+
//	               |    processor     |
//	               | (pipeline, frame)|
//	               +--------+---------+
//	                        |
//	                +-------v-------+
//	                |  GPUAdapter   |
//	                +-------+-------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|   HAL adapter   |          |   JS adapter    |
//	|  (hal.Device)   |          |  (GPUDevice)    |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID], etc.).
// Adapters track the mapping between IDs and backend resources. The zero
// value [InvalidID] never names a live resource, which lets the host's
// integer texture handles cross the binding boundary without conversion.
//
// # Texture input
//
// Kernels read frames from a storage buffer rather than a sampled texture.
// [GPUAdapter.CopyTextureToBuffer] stages the host texture into that buffer
// with rows [AlignedBytesPerRow] bytes apart, which is the layout WebGPU
// mandates for texture-to-buffer copies.
package gpucore
