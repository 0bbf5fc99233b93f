package gpucore

// GPUAdapter abstracts over the WebGPU implementations the core runs on.
//
// Two implementations exist: the browser adapter, which drives the host
// page's GPUDevice through syscall/js, and the HAL adapter, which drives
// gogpu/wgpu directly on native builds. The frame processor only ever talks
// to this interface, so it can be exercised with a fake in tests.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and must not be reused
//
// Command recording is implicit: BeginComputePass and CopyTextureToBuffer
// append to a pending command encoder that Submit finishes and executes.
type GPUAdapter interface {
	// === Capabilities ===

	// Info describes the adapter and device.
	Info() AdapterInfo

	// SupportsCompute returns whether compute shaders are supported.
	SupportsCompute() bool

	// MaxWorkgroupSize returns the maximum workgroup size in each dimension.
	MaxWorkgroupSize() [3]uint32

	// MaxWorkgroupsPerDimension returns the maximum dispatch size per dimension.
	MaxWorkgroupsPerDimension() uint32

	// MaxBufferSize returns the maximum buffer size in bytes.
	MaxBufferSize() uint64

	// Lost returns a non-nil error once the device has been lost.
	// After that every other call is a no-op or fails.
	Lost() error

	// === Shader Compilation ===

	// CreateShaderModule creates a shader module from WGSL source.
	// Adapters that need another representation compile it themselves.
	CreateShaderModule(wgsl, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer of size bytes.
	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer through the queue.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer copies size bytes starting at offset back to the CPU.
	// This causes a GPU-CPU synchronization stall.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Texture Management ===

	// CreateTexture creates an RGBA texture the adapter owns.
	// Host textures are registered by the platform layer instead.
	CreateTexture(width, height int, format TextureFormat) (TextureID, error)

	// DestroyTexture releases a texture created with CreateTexture.
	DestroyTexture(id TextureID)

	// WriteTexture uploads tightly packed pixel rows to a texture.
	WriteTexture(id TextureID, data []byte) error

	// === Pipeline Management ===

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout.
	CreatePipelineLayout(label string, layouts []BindGroupLayoutID) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(id ComputePipelineID)

	// CreateBindGroup binds buffers to a bind group layout.
	CreateBindGroup(label string, layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Command Recording and Execution ===

	// CopyTextureToBuffer records a copy of the whole texture into dst.
	// Rows are written AlignedBytesPerRow(width) bytes apart.
	CopyTextureToBuffer(src TextureID, dst BufferID, width, height int) error

	// BeginComputePass begins a compute pass.
	// The encoder must be ended with ComputePassEncoder.End().
	BeginComputePass(label string) ComputePassEncoder

	// Submit finishes the pending commands and executes them.
	Submit() error

	// WaitIdle waits for all submitted GPU work to complete.
	WaitIdle() error
}

// ComputePassEncoder records compute commands.
//
// Usage:
//  1. Obtain encoder from GPUAdapter.BeginComputePass()
//  2. Set pipeline and bind groups
//  3. Dispatch compute workgroups
//  4. Call End() to finish recording
//  5. Call GPUAdapter.Submit() to execute
//
// The encoder is single-use and cannot be reused after End().
type ComputePassEncoder interface {
	// SetPipeline sets the active compute pipeline.
	SetPipeline(pipeline ComputePipelineID)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroupID)

	// Dispatch dispatches compute workgroups.
	Dispatch(x, y, z uint32)

	// End finishes the compute pass.
	End()
}
