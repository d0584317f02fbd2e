// Package image provides the pixel buffer model moved through the filter
// pipeline, plus the BMP codec used for banner assets.
package image

import (
	"fmt"

	"github.com/calcflow/calcflow/errs"
)

// PixelFormat identifies the layout of a pixel buffer.
type PixelFormat int

const (
	// FormatUnknown marks an unrecognized layout.
	FormatUnknown PixelFormat = iota
	// FormatGrayscale1 is 1-bit grayscale.
	FormatGrayscale1
	// FormatGrayscale2 is 2-bit grayscale.
	FormatGrayscale2
	// FormatGrayscale4 is 4-bit grayscale.
	FormatGrayscale4
	// FormatGrayscale8 is 8-bit grayscale.
	FormatGrayscale8
	// FormatRGB24 is 8 bits per channel, no alpha.
	FormatRGB24
	// FormatRGBA32 is 8 bits per channel with alpha.
	FormatRGBA32
)

var bitDepthFormats = map[int]PixelFormat{
	1:  FormatGrayscale1,
	2:  FormatGrayscale2,
	4:  FormatGrayscale4,
	8:  FormatGrayscale8,
	24: FormatRGB24,
	32: FormatRGBA32,
}

// FormatForBitDepth maps a BMP bit depth to a pixel format.
func FormatForBitDepth(depth int) PixelFormat {
	if format, ok := bitDepthFormats[depth]; ok {
		return format
	}
	return FormatUnknown
}

// BitsPerPixel returns the storage width of format, zero when unknown.
func BitsPerPixel(format PixelFormat) int {
	for depth, f := range bitDepthFormats {
		if f == format {
			return depth
		}
	}
	return 0
}

// ParseFormat maps the stream header's PIX_FMT value to a pixel format.
func ParseFormat(name string) PixelFormat {
	switch name {
	case "rgba":
		return FormatRGBA32
	case "rgb":
		return FormatRGB24
	case "gray":
		return FormatGrayscale8
	default:
		return FormatUnknown
	}
}

func (f PixelFormat) String() string {
	switch f {
	case FormatGrayscale1, FormatGrayscale2, FormatGrayscale4, FormatGrayscale8:
		return "gray"
	case FormatRGB24:
		return "rgb"
	case FormatRGBA32:
		return "rgba"
	default:
		return "unknown"
	}
}

// Image is a width x height pixel buffer with an explicit format. The buffer
// is owned by the image; Clone performs a deep copy.
type Image struct {
	width  int
	height int
	format PixelFormat
	stride int
	data   []byte
}

// New builds an image around data, which must be exactly height*width*bpp/8
// bytes long.
func New(width, height int, format PixelFormat, data []byte) (Image, error) {
	if width <= 0 || height <= 0 || format == FormatUnknown {
		return Image{}, errs.New("image", errs.CodeInvalidConfig,
			errs.WithMessage(fmt.Sprintf("invalid dimensions %dx%d or format", width, height)))
	}
	stride := width * BitsPerPixel(format) / 8
	if len(data) != stride*height {
		return Image{}, errs.New("image", errs.CodeInvalidConfig,
			errs.WithMessage(fmt.Sprintf("buffer is %d bytes, expected %d", len(data), stride*height)))
	}
	return Image{width: width, height: height, format: format, stride: stride, data: data}, nil
}

// Width returns the pixel width.
func (img Image) Width() int { return img.width }

// Height returns the pixel height.
func (img Image) Height() int { return img.height }

// Format returns the pixel format.
func (img Image) Format() PixelFormat { return img.format }

// Stride returns the byte length of one row.
func (img Image) Stride() int { return img.stride }

// BytesPerPixel returns the storage width of one pixel.
func (img Image) BytesPerPixel() int { return BitsPerPixel(img.format) / 8 }

// Data exposes the underlying buffer; calculators mutate it in place.
func (img Image) Data() []byte { return img.data }

// Valid reports whether the image holds a buffer.
func (img Image) Valid() bool { return len(img.data) > 0 }

// Clone deep-copies the image so a calculator can emit a modified frame
// without aliasing its input.
func (img Image) Clone() Image {
	out := img
	out.data = make([]byte, len(img.data))
	copy(out.data, img.data)
	return out
}
