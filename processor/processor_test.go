package processor

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/cvcore/device"
	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/cvcore/internal/gputest"
)

func newReady(t *testing.T, opts ...Option) (*Processor, *gputest.FakeAdapter) {
	t.Helper()
	prov := gputest.NewFakeProvider()
	p := New(opts...)
	if err := p.Initialize(prov); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return p, prov.GPU
}

func checkFrameInvariant(t *testing.T, r ProcessedFrame) {
	t.Helper()
	if r.Processed {
		if r.Error != "" || r.Kind != KindNone || r.Width <= 0 || r.Height <= 0 {
			t.Errorf("successful frame violates invariant: %+v", r)
		}
		return
	}
	if r.Error == "" || r.Width != 0 || r.Height != 0 {
		t.Errorf("failed frame violates invariant: %+v", r)
	}
}

func TestNew_Uninitialized(t *testing.T) {
	p := New()
	if got := p.State(); got != Uninitialized {
		t.Errorf("State() = %v, want %v", got, Uninitialized)
	}
	if p.Kernel().Name != "luma" {
		t.Errorf("default kernel = %q, want luma", p.Kernel().Name)
	}
}

func TestProcessFrame_BeforeInitialize(t *testing.T) {
	p := New()
	r := p.ProcessFrame(5, 640, 480)
	checkFrameInvariant(t, r)
	if r.Processed {
		t.Fatal("Processed = true before Initialize")
	}
	if r.Kind != KindInvalidState {
		t.Errorf("Kind = %v, want %v", r.Kind, KindInvalidState)
	}
	if r.Error != "device/pipeline not initialized" {
		t.Errorf("Error = %q", r.Error)
	}
	if p.State() != Uninitialized {
		t.Errorf("State() = %v, want unchanged", p.State())
	}
}

func TestInitialize_NilDevice(t *testing.T) {
	tests := []struct {
		name string
		prov *gputest.FakeProvider
	}{
		{"nil provider", nil},
		{"nil device", &gputest.FakeProvider{GPU: gputest.NewFakeAdapter(), NilDev: true}},
		{"nil adapter", &gputest.FakeProvider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			var err error
			if tt.prov == nil {
				err = p.Initialize(nil)
			} else {
				err = p.Initialize(tt.prov)
			}
			if !errors.Is(err, ErrInitialization) {
				t.Fatalf("Initialize() error = %v, want ErrInitialization", err)
			}
			if !errors.Is(err, device.ErrNilDevice) {
				t.Errorf("Initialize() error = %v, want ErrNilDevice", err)
			}
			if p.State() != Failed {
				t.Errorf("State() = %v, want Failed", p.State())
			}
			if r := p.ProcessFrame(1, 4, 4); r.Processed || r.Kind != KindInvalidState {
				t.Errorf("ProcessFrame after failed init = %+v", r)
			}
		})
	}
}

func TestInitialize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *gputest.FakeAdapter)
		kernel *Kernel
	}{
		{"no compute", func(f *gputest.FakeAdapter) { f.NoCompute = true }, nil},
		{"shader", func(f *gputest.FakeAdapter) { f.FailShader = true }, nil},
		{"pipeline", func(f *gputest.FakeAdapter) { f.FailPipeline = true }, nil},
		{"buffer", func(f *gputest.FakeAdapter) { f.FailBuffer = true }, nil},
		{"lost", func(f *gputest.FakeAdapter) { f.Lose() }, nil},
		{"workgroup too large", func(f *gputest.FakeAdapter) { f.WorkgroupLimit = [3]uint32{4, 4, 1} }, nil},
		{"invalid kernel", func(*gputest.FakeAdapter) {}, &Kernel{Name: "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := gputest.NewFakeProvider()
			tt.setup(prov.GPU)
			var opts []Option
			if tt.kernel != nil {
				opts = append(opts, WithKernel(*tt.kernel))
			}
			p := New(opts...)
			err := p.Initialize(prov)
			if !errors.Is(err, ErrInitialization) {
				t.Fatalf("Initialize() error = %v, want ErrInitialization", err)
			}
			if p.State() != Failed {
				t.Errorf("State() = %v, want Failed", p.State())
			}
			if p.Err() == nil {
				t.Error("Err() = nil after failure")
			}
			if n := prov.GPU.LiveResources(); n != 0 {
				t.Errorf("LiveResources() = %d after failed init, want 0", n)
			}
		})
	}
}

func TestProcessFrame_Success(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)

	r := p.ProcessFrame(tex, 640, 480)
	checkFrameInvariant(t, r)
	if !r.Processed {
		t.Fatalf("ProcessFrame() = %+v", r)
	}
	if r.Width != 640 || r.Height != 480 {
		t.Errorf("dims = %dx%d, want 640x480", r.Width, r.Height)
	}
	if r.Seq != 1 || r.TraceID == "" {
		t.Errorf("Seq = %d TraceID = %q", r.Seq, r.TraceID)
	}
	if len(gpu.Dispatches) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(gpu.Dispatches))
	}
	d := gpu.Dispatches[0]
	if d.X != 80 || d.Y != 60 || d.Z != 1 {
		t.Errorf("dispatch = %dx%dx%d, want 80x60x1", d.X, d.Y, d.Z)
	}

	r2 := p.ProcessFrame(tex, 640, 480)
	if r2.Seq != 2 || r2.TraceID == r.TraceID {
		t.Errorf("second frame Seq = %d TraceID = %q", r2.Seq, r2.TraceID)
	}
	if s := p.Stats(); s.Frames != 2 || s.Failures != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestProcessFrame_WorkgroupCeil(t *testing.T) {
	p, gpu := newReady(t, WithInitialSize(9, 17))
	tex := gpu.AddTexture(9, 17, nil)
	if r := p.ProcessFrame(tex, 9, 17); !r.Processed {
		t.Fatalf("ProcessFrame() = %+v", r)
	}
	d := gpu.Dispatches[0]
	if d.X != 2 || d.Y != 3 {
		t.Errorf("dispatch = %dx%d, want 2x3", d.X, d.Y)
	}
}

func TestProcessFrame_InvalidArguments(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)

	tests := []struct {
		name          string
		tex           gpucore.TextureID
		width, height int
	}{
		{"zero width", tex, 0, 480},
		{"zero height", tex, 640, 0},
		{"negative", tex, -1, -1},
		{"invalid texture", gpucore.InvalidID, 640, 480},
		{"unknown texture", 9999, 640, 480},
		{"larger than texture", tex, 1280, 960},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.ProcessFrame(tt.tex, tt.width, tt.height)
			checkFrameInvariant(t, r)
			if r.Processed {
				t.Fatal("Processed = true")
			}
			if r.Kind != KindInvalidArgument {
				t.Errorf("Kind = %v, want %v (%s)", r.Kind, KindInvalidArgument, r.Error)
			}
			if p.State() != Ready {
				t.Errorf("State() = %v, want Ready", p.State())
			}
		})
	}
	if r := p.ProcessFrame(tex, 640, 480); !r.Processed {
		t.Errorf("valid frame after invalid ones = %+v", r)
	}
}

func TestProcessFrame_Resize(t *testing.T) {
	p, gpu := newReady(t)
	small := gpu.AddTexture(640, 480, nil)
	large := gpu.AddTexture(1920, 1080, nil)

	if r := p.ProcessFrame(small, 640, 480); !r.Processed {
		t.Fatalf("first frame = %+v", r)
	}
	live := gpu.LiveResources()

	r := p.ProcessFrame(large, 1920, 1080)
	if !r.Processed || r.Width != 1920 || r.Height != 1080 {
		t.Fatalf("resized frame = %+v", r)
	}
	if got := gpu.LiveResources(); got != live {
		t.Errorf("LiveResources() = %d after resize, want %d (old buffers released)", got, live)
	}

	var outSize int
	for _, s := range gpu.LiveBuffers() {
		outSize = max(outSize, s)
	}
	if want := 1920 * 1080 * 4; outSize < want {
		t.Errorf("largest buffer = %d, want >= %d", outSize, want)
	}
	if s := p.Stats(); s.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", s.Resizes)
	}
}

func TestProcessFrame_ResourceExhaustion(t *testing.T) {
	p, gpu := newReady(t, WithInitialSize(64, 64))
	gpu.MaxBuffer = 64 * 64 * 4
	tex := gpu.AddTexture(512, 512, nil)

	r := p.ProcessFrame(tex, 512, 512)
	checkFrameInvariant(t, r)
	if r.Kind != KindDispatch {
		t.Errorf("Kind = %v, want %v", r.Kind, KindDispatch)
	}
	if !strings.Contains(r.Error, "resource exhaustion") {
		t.Errorf("Error = %q, want resource exhaustion", r.Error)
	}
	if p.State() != Ready {
		t.Errorf("State() = %v, want Ready", p.State())
	}
}

func TestProcessFrame_SubmitFailure(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)
	gpu.FailSubmit = true

	r := p.ProcessFrame(tex, 640, 480)
	checkFrameInvariant(t, r)
	if r.Kind != KindDispatch {
		t.Errorf("Kind = %v, want %v", r.Kind, KindDispatch)
	}
	if p.State() != Ready {
		t.Errorf("State() = %v, want Ready after transient failure", p.State())
	}

	gpu.FailSubmit = false
	if r := p.ProcessFrame(tex, 640, 480); !r.Processed {
		t.Errorf("frame after transient failure = %+v", r)
	}
}

func TestProcessFrame_DeviceLostAndRecovery(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)
	gpu.Lose()

	r := p.ProcessFrame(tex, 640, 480)
	checkFrameInvariant(t, r)
	if r.Kind != KindDispatch || !errors.Is(p.Err(), gputest.ErrLost) {
		t.Errorf("lost frame = %+v, Err() = %v", r, p.Err())
	}
	if p.State() != Failed {
		t.Fatalf("State() = %v, want Failed", p.State())
	}
	if n := gpu.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d after loss, want 0", n)
	}
	if r := p.ProcessFrame(tex, 640, 480); r.Kind != KindInvalidState {
		t.Errorf("frame while Failed = %+v", r)
	}

	fresh := gputest.NewFakeProvider()
	if err := p.Initialize(fresh); err != nil {
		t.Fatalf("re-Initialize() error = %v", err)
	}
	tex2 := fresh.GPU.AddTexture(640, 480, nil)
	if r := p.ProcessFrame(tex2, 640, 480); !r.Processed {
		t.Errorf("frame after recovery = %+v", r)
	}
	if s := p.Stats(); s.DeviceLosses != 1 {
		t.Errorf("DeviceLosses = %d, want 1", s.DeviceLosses)
	}
}

func TestInitialize_ReleasesPreviousDevice(t *testing.T) {
	p, first := newReady(t)
	second := gputest.NewFakeProvider()
	if err := p.Initialize(second); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if n := first.LiveResources(); n != 0 {
		t.Errorf("first device LiveResources() = %d, want 0", n)
	}
	if second.GPU.LiveResources() == 0 {
		t.Error("second device has no resources")
	}
}

func TestReadOutput(t *testing.T) {
	p, gpu := newReady(t, WithInitialSize(4, 2))

	if _, err := p.ReadOutput(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("ReadOutput() before frame error = %v, want ErrNoFrame", err)
	}

	// Invert the red channel on the CPU, honoring the params stride.
	gpu.Kernel = func(b [][]byte) {
		params, src, dst := b[0], b[1], b[2]
		w := binary.LittleEndian.Uint32(params[0:])
		h := binary.LittleEndian.Uint32(params[4:])
		inStride := binary.LittleEndian.Uint32(params[8:])
		outStride := binary.LittleEndian.Uint32(params[12:])
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				px := binary.LittleEndian.Uint32(src[(y*inStride+x)*4:])
				px ^= 0xff
				binary.LittleEndian.PutUint32(dst[(y*outStride+x)*4:], px)
			}
		}
	}

	pixels := make([]byte, 4*2*4)
	for i := range 8 {
		pixels[i*4] = byte(i * 10)
		pixels[i*4+3] = 255
	}
	tex := gpu.AddTexture(4, 2, pixels)
	if r := p.ProcessFrame(tex, 4, 2); !r.Processed {
		t.Fatalf("ProcessFrame() = %+v", r)
	}

	out, err := p.ReadOutput()
	if err != nil {
		t.Fatalf("ReadOutput() error = %v", err)
	}
	if len(out) != 4*2*4 {
		t.Fatalf("len(out) = %d, want 32", len(out))
	}
	for i := range 8 {
		if got, want := out[i*4], byte(i*10)^0xff; got != want {
			t.Errorf("pixel %d red = %d, want %d", i, got, want)
		}
		if out[i*4+3] != 255 {
			t.Errorf("pixel %d alpha = %d, want 255", i, out[i*4+3])
		}
	}

	var async []byte
	p.ReadOutputAsync(func(b []byte, err error) {
		if err != nil {
			t.Errorf("ReadOutputAsync() error = %v", err)
		}
		async = b
	})
	if string(async) != string(out) {
		t.Error("ReadOutputAsync() result differs from ReadOutput()")
	}
}

func TestReadOutputAsync_ReleasedDuringRead(t *testing.T) {
	tests := []struct {
		name    string
		release func(p *Processor)
	}{
		{"close", func(p *Processor) { p.Close() }},
		{"reinitialize", func(p *Processor) {
			if err := p.Initialize(gputest.NewFakeProvider()); err != nil {
				t.Errorf("Initialize() error = %v", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, gpu := newReady(t, WithInitialSize(4, 4))
			tex := gpu.AddTexture(4, 4, nil)
			if r := p.ProcessFrame(tex, 4, 4); !r.Processed {
				t.Fatalf("ProcessFrame() = %+v", r)
			}
			var once sync.Once
			gpu.BeforeRead = func() { once.Do(func() { tt.release(p) }) }

			calls := 0
			var got error
			p.ReadOutputAsync(func(b []byte, err error) {
				calls++
				got = err
			})
			if calls != 1 {
				t.Fatalf("done called %d times, want 1", calls)
			}
			if !errors.Is(got, ErrNotReady) {
				t.Errorf("ReadOutputAsync() error = %v, want ErrNotReady", got)
			}
		})
	}
}

func TestReadOutput_NotReady(t *testing.T) {
	p := New()
	if _, err := p.ReadOutput(); !errors.Is(err, ErrNotReady) {
		t.Errorf("ReadOutput() error = %v, want ErrNotReady", err)
	}
}

func TestClose(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)
	p.ProcessFrame(tex, 640, 480)

	p.Close()
	if p.State() != Uninitialized {
		t.Errorf("State() = %v, want Uninitialized", p.State())
	}
	if n := gpu.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d after Close, want 0", n)
	}
	if r := p.ProcessFrame(tex, 640, 480); r.Kind != KindInvalidState {
		t.Errorf("frame after Close = %+v", r)
	}
	p.Close()
}

func TestProcessFrame_Concurrent(t *testing.T) {
	p, gpu := newReady(t)
	tex := gpu.AddTexture(640, 480, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if r := p.ProcessFrame(tex, 640, 480); !r.Processed {
					t.Errorf("ProcessFrame() = %+v", r)
				}
			}
		}()
	}
	wg.Wait()
	if s := p.Stats(); s.Frames != 80 {
		t.Errorf("Frames = %d, want 80", s.Frames)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Uninitialized, "uninitialized"},
		{Ready, "ready"},
		{Failed, "failed"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
