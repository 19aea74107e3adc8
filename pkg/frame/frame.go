// Package frame defines the captured frame type and the zero-copy image view
// the filter pipeline works on.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"
)

// BytesPerPixel is the size of one BGRA pixel.
const BytesPerPixel = 4

// Sentinel errors for malformed frames.
var (
	// ErrNoBuffer is returned when a frame carries no pixel data.
	ErrNoBuffer = errors.New("frame: no pixel buffer")

	// ErrShortBuffer is returned when Pix is smaller than Stride*Height.
	ErrShortBuffer = errors.New("frame: buffer too short")

	// ErrBadGeometry is returned for non-positive sizes or a stride below Width*4.
	ErrBadGeometry = errors.New("frame: bad geometry")
)

// Frame is one captured image in 32-bit BGRA.
//
// Pix belongs to the capture subsystem. Consumers may read it for the
// duration of one processing cycle and must not modify or retain it.
type Frame struct {
	// Pix holds rows of B, G, R, A bytes.
	Pix []byte

	// Width and Height are the intrinsic dimensions in pixels.
	Width  int
	Height int

	// Stride is the distance in bytes between vertically adjacent pixels.
	Stride int

	// Seq is assigned by the capture session, monotonically increasing.
	Seq uint64

	// Timestamp is when the frame was captured.
	Timestamp time.Time
}

// New allocates a zeroed frame of the given size with a tight stride.
func New(width, height int) *Frame {
	return &Frame{
		Pix:    make([]byte, width*height*BytesPerPixel),
		Width:  width,
		Height: height,
		Stride: width * BytesPerPixel,
	}
}

// Bounds returns the frame extent anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Validate reports whether the frame can be wrapped. Geometry is checked
// with divisions only, so hostile sizes cannot overflow into a pass.
func (f *Frame) Validate() error {
	if f == nil || len(f.Pix) == 0 {
		return ErrNoBuffer
	}
	if f.Width <= 0 || f.Height <= 0 || f.Stride <= 0 || f.Width > f.Stride/BytesPerPixel {
		return fmt.Errorf("%w: %dx%d stride %d", ErrBadGeometry, f.Width, f.Height, f.Stride)
	}
	row := f.Width * BytesPerPixel
	if row > len(f.Pix) || f.Height-1 > (len(f.Pix)-row)/f.Stride {
		return fmt.Errorf("%w: %d bytes for %d rows of stride %d", ErrShortBuffer, len(f.Pix), f.Height, f.Stride)
	}
	return nil
}

// View wraps the frame as an image.Image without copying pixel data.
func View(f *Frame) (*BGRA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &BGRA{Pix: f.Pix, Stride: f.Stride, Rect: f.Bounds()}, nil
}

// BGRA is an in-memory image whose At method returns color.RGBA values read
// from B, G, R, A byte order. Camera frames are opaque, so the alpha-premultiplied
// and straight interpretations agree.
type BGRA struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// ColorModel implements image.Image.
func (p *BGRA) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (p *BGRA) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image.
func (p *BGRA) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

// RGBAAt returns the pixel at (x, y) as color.RGBA.
func (p *BGRA) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	return color.RGBA{R: s[2], G: s[1], B: s[0], A: s[3]}
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *BGRA) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*BytesPerPixel
}

// Render draws img into a new RGBA bitmap sized to img's own bounds.
// It never returns a view that aliases the source pixels.
func Render(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNoBuffer
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty extent %v", ErrBadGeometry, b)
	}

	dst := image.NewRGBA(b)
	if src, ok := img.(*BGRA); ok {
		// Swizzle rows directly; this is the hot path for pass-through frames.
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si := src.PixOffset(b.Min.X, y)
			di := dst.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di+0] = src.Pix[si+2]
				dst.Pix[di+1] = src.Pix[si+1]
				dst.Pix[di+2] = src.Pix[si+0]
				dst.Pix[di+3] = src.Pix[si+3]
				si += BytesPerPixel
				di += BytesPerPixel
			}
		}
		return dst, nil
	}

	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst, nil
}

// FromRGBA converts an RGBA image into a tightly packed BGRA frame.
// Used by synthetic sources and tests.
func FromRGBA(img *image.RGBA) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * f.Stride
		for x := 0; x < b.Dx(); x++ {
			f.Pix[di+0] = img.Pix[si+2]
			f.Pix[di+1] = img.Pix[si+1]
			f.Pix[di+2] = img.Pix[si+0]
			f.Pix[di+3] = img.Pix[si+3]
			si += BytesPerPixel
			di += BytesPerPixel
		}
	}
	return f
}
