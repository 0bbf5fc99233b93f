// Package processor runs a compute kernel over frames that live in GPU
// textures owned by the host.
//
// A [Processor] starts Uninitialized. [Processor.Initialize] resolves the
// host's device, builds the kernel's compute pipeline and allocates frame
// buffers; it leaves the processor Ready or Failed. Each
// [Processor.ProcessFrame] call copies the texture into a staging buffer,
// dispatches the kernel and reports the outcome as a [ProcessedFrame].
// Failures never escape as panics.
//
// Frames of a new size re-create the buffers. A lost device moves the
// processor to Failed; Initialize with a fresh device recovers it.
//
// Basic usage:
//
//	p := processor.New(processor.WithKernel(processor.SobelKernel))
//	if err := p.Initialize(provider); err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	res := p.ProcessFrame(tex, 640, 480)
//	if !res.Processed {
//	    log.Println(res.Error)
//	}
package processor
