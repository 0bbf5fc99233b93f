package cpuref

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/cvcore/internal/parallel"
)

func solid(w, h int, r, g, b byte) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return pix
}

func TestLuma(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b byte
		want    byte
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 255},
		{"red", 255, 0, 0, 76},
		{"green", 0, 255, 0, 150},
		{"blue", 0, 0, 255, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(nil, "luma", solid(2, 2, tt.r, tt.g, tt.b), 2, 2)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			for i := 0; i < len(out); i += 4 {
				if out[i] != tt.want || out[i+1] != tt.want || out[i+2] != tt.want || out[i+3] != 255 {
					t.Fatalf("pixel %d = %v, want gray %d", i/4, out[i:i+4], tt.want)
				}
			}
		})
	}
}

func TestLuma_KeepsAlpha(t *testing.T) {
	pix := []byte{10, 20, 30, 77}
	out, err := Apply(nil, "LUMA", pix, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out[3] != 77 {
		t.Errorf("alpha = %d, want 77", out[3])
	}
}

func TestSobel(t *testing.T) {
	// Flat input has no gradient.
	out, err := Apply(nil, "sobel", solid(5, 5, 90, 90, 90), 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if m, _ := Diff(out, solid(5, 5, 0, 0, 0), 0); m != 0 {
		t.Errorf("flat input gradient max = %d, want 0", m)
	}

	// A vertical edge: left half black, right half white.
	w, h := 6, 4
	pix := solid(w, h, 0, 0, 0)
	for y := range h {
		for x := w / 2; x < w; x++ {
			o := (y*w + x) * 4
			pix[o], pix[o+1], pix[o+2] = 255, 255, 255
		}
	}
	out, err = Apply(nil, "sobel", pix, w, h)
	if err != nil {
		t.Fatal(err)
	}
	at := func(x, y int) byte { return out[(y*w+x)*4] }
	for y := range h {
		if at(0, y) != 0 || at(w-1, y) != 0 {
			t.Errorf("row %d: border = %d/%d, want 0", y, at(0, y), at(w-1, y))
		}
		if at(w/2-1, y) != 255 || at(w/2, y) != 255 {
			t.Errorf("row %d: edge = %d/%d, want 255", y, at(w/2-1, y), at(w/2, y))
		}
	}
}

func TestRun_Strided(t *testing.T) {
	p := Params{Width: 2, Height: 2, InStride: 64, OutStride: 3}
	src := make([]byte, 64*4*2)
	binary.LittleEndian.PutUint32(src[(1*64+1)*4:], 0xff0000ff) // red at (1,1)
	dst := make([]byte, 3*2*4)

	if err := Run(nil, "luma", p, src, dst); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := binary.LittleEndian.Uint32(dst[(1*3+1)*4:])
	if want := uint32(0xff4c4c4c); got != want {
		t.Errorf("pixel (1,1) = %#x, want %#x", got, want)
	}
	if pad := binary.LittleEndian.Uint32(dst[2*4:]); pad != 0 {
		t.Errorf("padding written: %#x", pad)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		kernel   string
		src, dst int
		wantErr  error
	}{
		{"unknown kernel", "blur", 16, 16, ErrUnknownKernel},
		{"short src", "luma", 8, 16, nil},
		{"short dst", "luma", 16, 8, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(nil, tt.kernel, Tight(2, 2), make([]byte, tt.src), make([]byte, tt.dst))
			if err == nil {
				t.Fatal("Run() returned no error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if _, err := Apply(nil, "luma", make([]byte, 3), 1, 1); err == nil {
		t.Error("Apply() with a short frame returned no error")
	}
}

func TestPoolMatchesSerial(t *testing.T) {
	pool := parallel.NewPool(4)
	defer pool.Close()

	w, h := 37, 23
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = byte(i * 31)
	}
	for _, k := range []string{"luma", "sobel"} {
		serial, err := Apply(nil, k, pix, w, h)
		if err != nil {
			t.Fatal(err)
		}
		pooled, err := Apply(pool, k, pix, w, h)
		if err != nil {
			t.Fatal(err)
		}
		if m, n := Diff(serial, pooled, 0); m != 0 || n != 0 {
			t.Errorf("%s: pooled differs from serial (max %d, %d channels)", k, m, n)
		}
	}
}

func TestHook(t *testing.T) {
	params := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(params[0:], 1)
	binary.LittleEndian.PutUint32(params[4:], 1)
	binary.LittleEndian.PutUint32(params[8:], 64)
	binary.LittleEndian.PutUint32(params[12:], 1)
	src := make([]byte, 256)
	copy(src, []byte{255, 255, 255, 255})
	dst := make([]byte, 4)

	Hook(nil, "luma")([][]byte{params, src, dst})
	if dst[0] != 255 || dst[3] != 255 {
		t.Errorf("dst = %v, want white", dst)
	}

	// Malformed bindings are ignored.
	Hook(nil, "luma")([][]byte{params})
	Hook(nil, "luma")([][]byte{params[:4], src, dst})
}

func TestDiff(t *testing.T) {
	tests := []struct {
		a, b      []byte
		tol       int
		max, over int
	}{
		{[]byte{1, 2, 3}, []byte{1, 2, 3}, 0, 0, 0},
		{[]byte{1, 2, 3}, []byte{2, 2, 0}, 1, 3, 1},
		{[]byte{10}, []byte{0, 0}, 0, 10, 2},
	}
	for _, tt := range tests {
		m, o := Diff(tt.a, tt.b, tt.tol)
		if m != tt.max || o != tt.over {
			t.Errorf("Diff(%v, %v, %d) = %d, %d, want %d, %d", tt.a, tt.b, tt.tol, m, o, tt.max, tt.over)
		}
	}
}
