package processor

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
)

//go:embed shaders/luma.wgsl
var lumaWGSL string

//go:embed shaders/sobel.wgsl
var sobelWGSL string

// Kernel is a compute shader plugged into the processor.
//
// The shader must declare the standard frame bindings in group 0:
//
//	@binding(0) var<uniform> params: Params;            // width, height, in_stride, out_stride (u32)
//	@binding(1) var<storage, read> src: array<u32>;      // packed RGBA8, in_stride words per row
//	@binding(2) var<storage, read_write> dst: array<u32>; // packed RGBA8, out_stride words per row
//
// Invocations outside width x height must return without writing.
type Kernel struct {
	Name          string
	Source        string
	EntryPoint    string
	WorkgroupSize [2]uint32
}

// Validate reports whether k is usable.
func (k Kernel) Validate() error {
	var errs []error
	if k.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if strings.TrimSpace(k.Source) == "" {
		errs = append(errs, errors.New("source is empty"))
	}
	if k.EntryPoint == "" {
		errs = append(errs, errors.New("entry point is empty"))
	}
	if k.WorkgroupSize[0] == 0 || k.WorkgroupSize[1] == 0 {
		errs = append(errs, fmt.Errorf("workgroup size %v has a zero dimension", k.WorkgroupSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("kernel %q: %w", k.Name, err)
	}
	return nil
}

// Built-in kernels.
var (
	// LumaKernel converts frames to BT.601 grayscale. It is the default.
	LumaKernel = Kernel{Name: "luma", Source: lumaWGSL, EntryPoint: "luma_main", WorkgroupSize: [2]uint32{8, 8}}

	// SobelKernel computes the 3x3 Sobel gradient magnitude.
	SobelKernel = Kernel{Name: "sobel", Source: sobelWGSL, EntryPoint: "sobel_main", WorkgroupSize: [2]uint32{8, 8}}
)

var builtinKernels = map[string]Kernel{
	LumaKernel.Name:  LumaKernel,
	SobelKernel.Name: SobelKernel,
}

// LookupKernel returns the built-in kernel with the given name.
func LookupKernel(name string) (Kernel, bool) {
	k, ok := builtinKernels[strings.ToLower(name)]
	return k, ok
}

// KernelNames returns the names of the built-in kernels, sorted.
func KernelNames() []string {
	names := make([]string, 0, len(builtinKernels))
	for n := range builtinKernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
