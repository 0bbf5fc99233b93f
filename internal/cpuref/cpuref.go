// Package cpuref holds CPU versions of the processor kernels. They mirror
// the WGSL arithmetic in float32 and are used to check GPU output.
package cpuref

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/cvcore/internal/parallel"
)

// ErrUnknownKernel is returned for a kernel name with no CPU version.
var ErrUnknownKernel = errors.New("cpuref: unknown kernel")

// ParamsSize is the size of the kernel params uniform in bytes.
const ParamsSize = 16

// Params mirrors the kernel params uniform. Strides are in pixels.
type Params struct {
	Width, Height       uint32
	InStride, OutStride uint32
}

// ParseParams decodes a params uniform.
func ParseParams(b []byte) (Params, error) {
	if len(b) < ParamsSize {
		return Params{}, fmt.Errorf("cpuref: params: got %d bytes, want %d", len(b), ParamsSize)
	}
	return Params{
		Width:     binary.LittleEndian.Uint32(b[0:]),
		Height:    binary.LittleEndian.Uint32(b[4:]),
		InStride:  binary.LittleEndian.Uint32(b[8:]),
		OutStride: binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// Tight returns params for tightly packed input and output.
func Tight(width, height int) Params {
	w, h := uint32(width), uint32(height) //nolint:gosec // caller passes frame dimensions
	return Params{Width: w, Height: h, InStride: w, OutStride: w}
}

type pixelFunc func(p Params, src []byte, x, y uint32) uint32

var kernels = map[string]pixelFunc{
	"luma":  lumaPixel,
	"sobel": sobelPixel,
}

// Run executes kernel over src into dst, split into row bands on pool.
// A nil pool runs on the calling goroutine.
func Run(pool *parallel.Pool, kernel string, p Params, src, dst []byte) error {
	fn, ok := kernels[strings.ToLower(kernel)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKernel, kernel)
	}
	if p.Width == 0 || p.Height == 0 {
		return nil
	}
	if need := int(((p.Height-1)*p.InStride + p.Width) * 4); len(src) < need {
		return fmt.Errorf("cpuref: src: got %d bytes, want %d", len(src), need)
	}
	if need := int(((p.Height-1)*p.OutStride + p.Width) * 4); len(dst) < need {
		return fmt.Errorf("cpuref: dst: got %d bytes, want %d", len(dst), need)
	}

	rows := func(y0, y1 int) {
		for y := uint32(y0); y < uint32(y1); y++ { //nolint:gosec // bounded by p.Height
			for x := uint32(0); x < p.Width; x++ {
				binary.LittleEndian.PutUint32(dst[(y*p.OutStride+x)*4:], fn(p, src, x, y))
			}
		}
	}
	if pool == nil {
		rows(0, int(p.Height))
		return nil
	}
	pool.Rows(int(p.Height), rows)
	return nil
}

// Apply runs kernel over a tightly packed RGBA frame and returns a new one.
func Apply(pool *parallel.Pool, kernel string, pix []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, fmt.Errorf("cpuref: frame %dx%d with %d bytes", width, height, len(pix))
	}
	out := make([]byte, len(pix))
	if err := Run(pool, kernel, Tight(width, height), pix, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Hook adapts Run to a dispatch callback that receives the bound buffers
// as params, src, dst.
func Hook(pool *parallel.Pool, kernel string) func(bindings [][]byte) {
	return func(b [][]byte) {
		if len(b) < 3 {
			return
		}
		p, err := ParseParams(b[0])
		if err != nil {
			return
		}
		_ = Run(pool, kernel, p, b[1], b[2])
	}
}

// Diff compares two RGBA frames byte by byte. It returns the largest
// channel difference and how many channels differ by more than tol.
func Diff(a, b []byte, tol int) (maxDelta, over int) {
	n := min(len(a), len(b))
	over = max(len(a), len(b)) - n
	for i := 0; i < n; i++ {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		maxDelta = max(maxDelta, d)
		if d > tol {
			over++
		}
	}
	return maxDelta, over
}

func channel(px, shift uint32) float32 {
	return float32((px >> shift) & 0xff)
}

func luma(px uint32) float32 {
	return 0.299*channel(px, 0) + 0.587*channel(px, 8) + 0.114*channel(px, 16)
}

func gray(v, alpha uint32) uint32 {
	return alpha | v<<16 | v<<8 | v
}

func lumaPixel(p Params, src []byte, x, y uint32) uint32 {
	px := binary.LittleEndian.Uint32(src[(y*p.InStride+x)*4:])
	v := min(uint32(luma(px)+0.5), 255)
	return gray(v, px&0xff000000)
}

func sobelPixel(p Params, src []byte, x, y uint32) uint32 {
	at := func(dx, dy int) float32 {
		cx := clamp(int(x)+dx, int(p.Width)-1)
		cy := clamp(int(y)+dy, int(p.Height)-1)
		return luma(binary.LittleEndian.Uint32(src[(uint32(cy)*p.InStride+uint32(cx))*4:])) //nolint:gosec // clamped
	}
	tl, tc, tr := at(-1, -1), at(0, -1), at(1, -1)
	ml, mr := at(-1, 0), at(1, 0)
	bl, bc, br := at(-1, 1), at(0, 1), at(1, 1)

	gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
	gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
	mag := float32(math.Sqrt(float64(gx*gx + gy*gy)))
	v := min(uint32(mag), 255)
	return gray(v, 0xff000000)
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}
