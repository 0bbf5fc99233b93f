//go:build !js

// Command cvframe runs a cvcore kernel over a still image on the local GPU.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/cvcore"
	"github.com/gogpu/cvcore/device"
	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/cvcore/internal/cpuref"
	"github.com/gogpu/cvcore/internal/imageio"
	"github.com/gogpu/cvcore/internal/parallel"
	"github.com/gogpu/cvcore/processor"
	"github.com/gogpu/gpucontext"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var (
		input   = flag.String("input", "", "input image (PNG, JPEG, BMP, TIFF, WebP); a test pattern when empty")
		output  = flag.String("output", "cvframe.png", "output PNG file")
		kernel  = flag.String("kernel", processor.LumaKernel.Name, "kernel name")
		width   = flag.Int("width", 0, "resize input to this width")
		height  = flag.Int("height", 0, "resize input to this height")
		frames  = flag.Int("frames", 1, "number of times to run the kernel")
		verify  = flag.Bool("verify", false, "compare the GPU output with the CPU kernel")
		verbose = flag.Bool("v", false, "log to stderr")
	)
	flag.Parse()

	if *verbose {
		cvcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	k, ok := processor.LookupKernel(*kernel)
	if !ok {
		log.Fatalf("Unknown kernel %q (have %v)", *kernel, processor.KernelNames())
	}

	src, err := loadInput(*input, *width, *height)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	prov, err := device.OpenDefault()
	if err != nil {
		log.Fatalf("No GPU: %v", err)
	}
	defer prov.Destroy()

	gpu := prov.HAL()
	tex, err := gpu.CreateTexture(src.Width, src.Height, gpucore.TextureFormatRGBA8Unorm)
	if err != nil {
		log.Fatalf("Failed to create texture: %v", err)
	}
	defer gpu.DestroyTexture(tex)
	if err := gpu.WriteTexture(tex, src.Pix); err != nil {
		log.Fatalf("Failed to upload texture: %v", err)
	}

	proc := processor.New(processor.WithKernel(k), processor.WithInitialSize(src.Width, src.Height))
	defer proc.Close()
	if err := proc.Initialize(prov); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	start := time.Now()
	for i := 0; i < *frames; i++ {
		r := proc.ProcessFrame(tex, src.Width, src.Height)
		if !r.Processed {
			log.Fatalf("Frame %d failed (%s): %s", i, r.Kind, r.Error)
		}
	}
	elapsed := time.Since(start)

	pix, err := proc.ReadOutput()
	if err != nil {
		log.Fatalf("Failed to read output: %v", err)
	}
	out := &imageio.Frame{Pix: pix, Width: src.Width, Height: src.Height}
	if err := out.SavePNG(*output); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	report(prov, k, proc.Stats(), *frames, elapsed, *output)

	if *verify {
		if err := verifyOutput(k.Name, src, pix); err != nil {
			log.Fatalf("Verify failed: %v", err)
		}
	}
}

// verifyOutput runs the CPU kernel and allows one level of rounding
// difference per channel.
func verifyOutput(kernel string, src *imageio.Frame, gpu []byte) error {
	pool := parallel.NewPool(0)
	defer pool.Close()

	want, err := cpuref.Apply(pool, kernel, src.Pix, src.Width, src.Height)
	if err != nil {
		return err
	}
	maxDelta, over := cpuref.Diff(gpu, want, 1)
	p := message.NewPrinter(language.English)
	p.Printf("Verify:   max delta %d, %d of %d channels off\n", maxDelta, over, len(want))
	if over > 0 {
		return fmt.Errorf("%d channels differ from the CPU kernel", over)
	}
	return nil
}

func loadInput(path string, width, height int) (*imageio.Frame, error) {
	if path == "" {
		if width <= 0 || height <= 0 {
			width, height = processor.DefaultWidth, processor.DefaultHeight
		}
		return imageio.FromImage(testPattern(width, height), 0, 0), nil
	}
	f, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}
	if width > 0 && height > 0 {
		return f.Resize(width, height)
	}
	return f, nil
}

// testPattern draws color bars over a horizontal gradient.
func testPattern(w, h int) image.Image {
	bars := []color.NRGBA{
		{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
		{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y < h*2/3 {
				img.SetNRGBA(x, y, bars[x*len(bars)/w])
				continue
			}
			v := uint8(x * 255 / max(w-1, 1))
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func report(prov gpucontext.DeviceProvider, k processor.Kernel, s processor.Stats, frames int, elapsed time.Duration, output string) {
	p := message.NewPrinter(language.English)
	p.Printf("Adapter:  %s\n", device.DescribeAdapter(prov.Adapter()))
	p.Printf("Device:   %s\n", device.DescribeProvider(prov))
	p.Printf("Kernel:   %s\n", k.Name)
	p.Printf("Frame:    %d x %d (%d pixels)\n", s.Width, s.Height, s.Width*s.Height)
	p.Printf("Frames:   %d in %v (%.2f ms/frame)\n", frames, elapsed.Round(time.Microsecond),
		float64(elapsed.Microseconds())/1000/float64(max(frames, 1)))
	p.Printf("Failures: %d\n", s.Failures)
	p.Printf("Saved to %s\n", output)
}
