// Package frame provides camera-like frame sources for the scan stage.
//
// A Source hands out one Frame at a time. The consumer owns the frame until
// it calls Release; the source does not deliver the next frame before that.
package frame

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// ErrReleased is returned by Release when the frame was already released.
var ErrReleased = errors.New("frame: already released")

// PixelFormat describes the pixel layout of a frame.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatGray
	PixelFormatRGBA
	PixelFormatNRGBA
	PixelFormatYCbCr
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatGray:
		return "GRAY"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatNRGBA:
		return "NRGBA"
	case PixelFormatYCbCr:
		return "YCBCR"
	default:
		return "UNKNOWN"
	}
}

// PixelFormatOf reports the pixel format of img.
func PixelFormatOf(img image.Image) PixelFormat {
	switch img.(type) {
	case *image.Gray:
		return PixelFormatGray
	case *image.RGBA:
		return PixelFormatRGBA
	case *image.NRGBA:
		return PixelFormatNRGBA
	case *image.YCbCr:
		return PixelFormatYCbCr
	default:
		return PixelFormatUnknown
	}
}

// Frame is a single captured image, exclusively owned until released.
type Frame interface {
	Width() int
	Height() int
	Format() PixelFormat
	// SetCrop restricts Image to r, given in frame coordinates with the
	// origin at the top-left pixel. It is clipped to the frame.
	SetCrop(r image.Rectangle)
	Crop() image.Rectangle
	// Image returns the cropped view of the pixels.
	Image() image.Image
	// Full returns the uncropped pixels.
	Full() image.Image
	Release() error
}

// Source produces frames. Next returns io.EOF when the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Torch is implemented by sources that can drive a light.
type Torch interface {
	SetTorch(on bool) error
}

// ImageFrame is a Frame backed by an image.Image.
type ImageFrame struct {
	img       image.Image
	crop      image.Rectangle
	onRelease func()
	releases  atomic.Int32
}

// NewImageFrame wraps img. onRelease, if not nil, runs on the first Release.
func NewImageFrame(img image.Image, onRelease func()) *ImageFrame {
	b := img.Bounds()
	return &ImageFrame{
		img:       img,
		crop:      image.Rect(0, 0, b.Dx(), b.Dy()),
		onRelease: onRelease,
	}
}

func (f *ImageFrame) Width() int { return f.img.Bounds().Dx() }

func (f *ImageFrame) Height() int { return f.img.Bounds().Dy() }

func (f *ImageFrame) Format() PixelFormat { return PixelFormatOf(f.img) }

func (f *ImageFrame) SetCrop(r image.Rectangle) {
	f.crop = r.Canon().Intersect(image.Rect(0, 0, f.Width(), f.Height()))
}

func (f *ImageFrame) Crop() image.Rectangle { return f.crop }

func (f *ImageFrame) Full() image.Image { return f.img }

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func (f *ImageFrame) Image() image.Image {
	b := f.img.Bounds()
	if f.crop == image.Rect(0, 0, b.Dx(), b.Dy()) {
		return f.img
	}
	r := f.crop.Add(b.Min)
	if si, ok := f.img.(subImager); ok {
		return si.SubImage(r)
	}
	return imaging.Crop(f.img, r)
}

// Release returns the frame to its source. Only the first call has an
// effect; later calls return ErrReleased.
func (f *ImageFrame) Release() error {
	if f.releases.Add(1) != 1 {
		return ErrReleased
	}
	if f.onRelease != nil {
		f.onRelease()
	}
	return nil
}

// Releases reports how many times Release was called.
func (f *ImageFrame) Releases() int { return int(f.releases.Load()) }
