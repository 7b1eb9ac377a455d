package g2d

import (
	"fmt"
)

// Format is a g2d_format value.
type Format uint32

// RGB formats.
const (
	FormatRGB565   Format = 0
	FormatRGBA8888 Format = 1
	FormatRGBX8888 Format = 2
	FormatBGRA8888 Format = 3
	FormatBGRX8888 Format = 4
	FormatBGR565   Format = 5
	FormatARGB8888 Format = 6
	FormatABGR8888 Format = 7
	FormatXRGB8888 Format = 8
	FormatXBGR8888 Format = 9
	FormatRGB888   Format = 10
	FormatBGR888   Format = 11
)

// YUV formats.
const (
	FormatNV12 Format = 20
	FormatI420 Format = 21
	FormatYV12 Format = 22
	FormatNV21 Format = 23
	FormatYUYV Format = 24
	FormatYVYU Format = 25
	FormatUYVY Format = 26
	FormatVYUY Format = 27
	FormatNV16 Format = 28
	FormatNV61 Format = 29
)

type formatInfo struct {
	name   string
	bpp    int
	planes int
	yuv    bool
}

var formats = map[Format]formatInfo{
	FormatRGB565:   {"RGB565", 16, 1, false},
	FormatRGBA8888: {"RGBA8888", 32, 1, false},
	FormatRGBX8888: {"RGBX8888", 32, 1, false},
	FormatBGRA8888: {"BGRA8888", 32, 1, false},
	FormatBGRX8888: {"BGRX8888", 32, 1, false},
	FormatBGR565:   {"BGR565", 16, 1, false},
	FormatARGB8888: {"ARGB8888", 32, 1, false},
	FormatABGR8888: {"ABGR8888", 32, 1, false},
	FormatXRGB8888: {"XRGB8888", 32, 1, false},
	FormatXBGR8888: {"XBGR8888", 32, 1, false},
	FormatRGB888:   {"RGB888", 24, 1, false},
	FormatBGR888:   {"BGR888", 24, 1, false},
	FormatNV12:     {"NV12", 12, 2, true},
	FormatI420:     {"I420", 12, 3, true},
	FormatYV12:     {"YV12", 12, 3, true},
	FormatNV21:     {"NV21", 12, 2, true},
	FormatYUYV:     {"YUYV", 16, 1, true},
	FormatYVYU:     {"YVYU", 16, 1, true},
	FormatUYVY:     {"UYVY", 16, 1, true},
	FormatVYUY:     {"VYUY", 16, 1, true},
	FormatNV16:     {"NV16", 16, 2, true},
	FormatNV61:     {"NV61", 16, 2, true},
}

// Formats returns every known format in enum order.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for f := FormatRGB565; f <= FormatNV61; f++ {
		if _, ok := formats[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	_, ok := formats[f]
	return ok
}

// String returns the string representation of Format.
func (f Format) String() string {
	if info, ok := formats[f]; ok {
		return info.name
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// BitsPerPixel returns the average number of bits per pixel across all
// planes, or 0 for unknown formats.
func (f Format) BitsPerPixel() int {
	return formats[f].bpp
}

// Planes returns the number of planes, or 0 for unknown formats.
func (f Format) Planes() int {
	return formats[f].planes
}

// IsYUV reports whether f is a YUV format.
func (f Format) IsYUV() bool {
	return formats[f].yuv
}

// HasAlpha reports whether f carries an alpha channel.
func (f Format) HasAlpha() bool {
	switch f {
	case FormatRGBA8888, FormatBGRA8888, FormatARGB8888, FormatABGR8888:
		return true
	}
	return false
}

// BufferSize returns the number of bytes one w×h frame occupies.
// Subsampled chroma planes round odd dimensions up.
func (f Format) BufferSize(w, h int) int {
	cw, ch := (w+1)/2, (h+1)/2
	switch f {
	case FormatNV12, FormatNV21, FormatI420, FormatYV12:
		return w*h + 2*cw*ch
	case FormatNV16, FormatNV61:
		return w*h + 2*cw*h
	}
	return w * h * f.BitsPerPixel() / 8
}

// planeOffsets returns the byte offset of each plane of a w×h frame
// stored contiguously.
func (f Format) planeOffsets(w, h int) []int {
	luma := w * h
	chroma := ((w + 1) / 2) * ((h + 1) / 2)
	switch f {
	case FormatNV12, FormatNV21, FormatNV16, FormatNV61:
		return []int{0, luma}
	case FormatI420:
		return []int{0, luma, luma + chroma}
	case FormatYV12:
		return []int{0, luma + chroma, luma}
	}
	return []int{0}
}

// FourCC is a four character code, first character in the low byte.
type FourCC uint32

// NewFourCC builds a FourCC from its four characters.
func NewFourCC(code string) FourCC {
	var c FourCC
	for i := 0; i < 4 && i < len(code); i++ {
		c |= FourCC(code[i]) << (8 * i)
	}
	return c
}

// String returns the four characters.
func (c FourCC) String() string {
	return string([]byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)})
}

// fourCCs maps V4L2/DRM pixel format codes to G2D formats.
var fourCCs = map[FourCC]Format{
	NewFourCC("RGBA"): FormatRGBA8888,
	NewFourCC("RGB "): FormatRGB888,
	NewFourCC("RGB3"): FormatRGB888,
	NewFourCC("BGR3"): FormatBGR888,
	NewFourCC("RGBP"): FormatRGB565,
	NewFourCC("AB24"): FormatRGBA8888,
	NewFourCC("XB24"): FormatRGBX8888,
	NewFourCC("AR24"): FormatBGRA8888,
	NewFourCC("XR24"): FormatBGRX8888,
	NewFourCC("NV12"): FormatNV12,
	NewFourCC("NV21"): FormatNV21,
	NewFourCC("NV16"): FormatNV16,
	NewFourCC("NV61"): FormatNV61,
	NewFourCC("YU12"): FormatI420,
	NewFourCC("I420"): FormatI420,
	NewFourCC("YV12"): FormatYV12,
	NewFourCC("YUYV"): FormatYUYV,
	NewFourCC("YUY2"): FormatYUYV,
	NewFourCC("YVYU"): FormatYVYU,
	NewFourCC("UYVY"): FormatUYVY,
	NewFourCC("VYUY"): FormatVYUY,
}

// FormatFromFourCC maps a V4L2 or DRM fourcc to a G2D format.
func FormatFromFourCC(c FourCC) (Format, error) {
	if f, ok := fourCCs[c]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: fourcc %q", ErrInvalidFormat, c.String())
}
