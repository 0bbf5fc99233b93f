// Package imageio loads still images into tightly packed RGBA frames and
// writes processed frames back out. It backs the cvframe command.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

var (
	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("imageio: empty data")

	// ErrBadFrame is returned when a pixel buffer does not match its dimensions.
	ErrBadFrame = errors.New("imageio: pixel buffer does not match dimensions")
)

// Frame is a tightly packed RGBA8 image.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Format string
}

// Load decodes the image at path. Supported formats: PNG, JPEG, BMP, TIFF, WebP.
func Load(path string) (*Frame, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imageio: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// LoadBytes decodes an image held in memory.
func LoadBytes(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return Decode(bytes.NewReader(data))
}

// Decode decodes an image from r, auto-detecting the format.
func Decode(r io.Reader) (*Frame, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	fr := FromImage(img, 0, 0)
	fr.Format = format
	return fr, nil
}

// FromImage converts img to RGBA. When width and height are positive and
// differ from the source bounds, the image is resampled with Catmull-Rom.
func FromImage(img image.Image, width, height int) *Frame {
	b := img.Bounds()
	if width <= 0 || height <= 0 {
		width, height = b.Dx(), b.Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == b.Dx() && height == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return &Frame{Pix: dst.Pix, Width: width, Height: height}
}

// Resize returns a copy of f scaled to width x height.
func (f *Frame) Resize(width, height int) (*Frame, error) {
	img, err := f.Image()
	if err != nil {
		return nil, err
	}
	out := FromImage(img, width, height)
	out.Format = f.Format
	return out, nil
}

// Image wraps the frame's pixels as an *image.RGBA without copying.
func (f *Frame) Image() (*image.RGBA, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height*4 {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrBadFrame, f.Width, f.Height, len(f.Pix))
	}
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}

// EncodePNG writes the frame as PNG.
func (f *Frame) EncodePNG(w io.Writer) error {
	img, err := f.Image()
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("imageio: encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes the frame to path as PNG.
func (f *Frame) SavePNG(path string) error {
	out, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imageio: create file: %w", err)
	}
	if err := f.EncodePNG(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
