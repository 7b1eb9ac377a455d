package g2dtest

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// g2d_format values understood by the accelerator.
const (
	fmtRGB565   = 0
	fmtRGBA8888 = 1
	fmtRGBX8888 = 2
	fmtBGRA8888 = 3
	fmtBGRX8888 = 4
	fmtBGR565   = 5
	fmtARGB8888 = 6
	fmtABGR8888 = 7
	fmtXRGB8888 = 8
	fmtXBGR8888 = 9
	fmtRGB888   = 10
	fmtBGR888   = 11
	fmtNV12     = 20
	fmtI420     = 21
	fmtYV12     = 22
	fmtNV21     = 23
	fmtYUYV     = 24
	fmtYVYU     = 25
	fmtUYVY     = 26
	fmtVYUY     = 27
	fmtNV16     = 28
	fmtNV61     = 29
)

// byteOrder lists the channel stored in each byte of a pixel, in memory
// order. X is padding.
var byteOrder = map[uint32]string{
	fmtRGBA8888: "RGBA",
	fmtRGBX8888: "RGBX",
	fmtBGRA8888: "BGRA",
	fmtBGRX8888: "BGRX",
	fmtARGB8888: "ARGB",
	fmtABGR8888: "ABGR",
	fmtXRGB8888: "XRGB",
	fmtXBGR8888: "XBGR",
	fmtRGB888:   "RGB",
	fmtBGR888:   "BGR",
}

// packedYUV gives the byte offsets of Y0, U, Y1, V in a two-pixel group.
var packedYUV = map[uint32][4]int{
	fmtYUYV: {0, 1, 2, 3},
	fmtYVYU: {0, 3, 2, 1},
	fmtUYVY: {1, 0, 3, 2},
	fmtVYUY: {1, 2, 3, 0},
}

func isRGB(f uint32) bool {
	return f <= fmtBGR888
}

// bytesPerPixel of an RGB format.
func bytesPerPixel(f uint32) int {
	switch f {
	case fmtRGB565, fmtBGR565:
		return 2
	case fmtRGB888, fmtBGR888:
		return 3
	}
	return 4
}

// planeSizes returns how many bytes of each plane a surface spans.
// chromaStride is the width of a subsampled chroma plane; odd luma
// widths round up.
func chromaStride(stride int) int {
	return (stride + 1) / 2
}

func planeSizes(s Surface) ([]int, error) {
	stride, h := int(s.Stride), int(s.Height)
	luma := stride * h
	cw, ch := chromaStride(stride), (h+1)/2
	switch s.Format {
	case fmtNV12, fmtNV21:
		return []int{luma, 2 * cw * ch}, nil
	case fmtNV16, fmtNV61:
		return []int{luma, 2 * cw * h}, nil
	case fmtI420, fmtYV12:
		return []int{luma, cw * ch, cw * ch}, nil
	case fmtYUYV, fmtYVYU, fmtUYVY, fmtVYUY:
		return []int{luma * 2}, nil
	}
	if isRGB(s.Format) {
		return []int{luma * bytesPerPixel(s.Format)}, nil
	}
	return nil, fmt.Errorf("g2dtest: unsupported format %d", s.Format)
}

func get8888(order string, px []byte) color.NRGBA {
	c := color.NRGBA{A: 0xFF}
	for i, ch := range order {
		switch ch {
		case 'R':
			c.R = px[i]
		case 'G':
			c.G = px[i]
		case 'B':
			c.B = px[i]
		case 'A':
			c.A = px[i]
		}
	}
	return c
}

func put8888(order string, px []byte, c color.NRGBA) {
	for i, ch := range order {
		switch ch {
		case 'R':
			px[i] = c.R
		case 'G':
			px[i] = c.G
		case 'B':
			px[i] = c.B
		case 'A', 'X':
			px[i] = c.A
		}
	}
}

func get565(f uint32, px []byte) color.NRGBA {
	v := binary.LittleEndian.Uint16(px)
	hi := uint8(v>>11) & 0x1F
	mid := uint8(v>>5) & 0x3F
	lo := uint8(v) & 0x1F
	hi, mid, lo = hi<<3|hi>>2, mid<<2|mid>>4, lo<<3|lo>>2
	if f == fmtBGR565 {
		return color.NRGBA{R: lo, G: mid, B: hi, A: 0xFF}
	}
	return color.NRGBA{R: hi, G: mid, B: lo, A: 0xFF}
}

func put565(f uint32, px []byte, c color.NRGBA) {
	hi, lo := c.R, c.B
	if f == fmtBGR565 {
		hi, lo = lo, hi
	}
	v := uint16(hi>>3)<<11 | uint16(c.G>>2)<<5 | uint16(lo>>3)
	binary.LittleEndian.PutUint16(px, v)
}

// readRGB decodes rect of an RGB plane into an image.
func readRGB(f uint32, plane []byte, stride int, rect image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	bpp := bytesPerPixel(f)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			px := plane[(y*stride+x)*bpp:]
			var c color.NRGBA
			if bpp == 2 {
				c = get565(f, px)
			} else {
				c = get8888(byteOrder[f], px)
			}
			img.SetNRGBA(x-rect.Min.X, y-rect.Min.Y, c)
		}
	}
	return img
}

// writeRGB encodes img into rect of an RGB plane.
func writeRGB(f uint32, plane []byte, stride int, rect image.Rectangle, img *image.NRGBA) {
	bpp := bytesPerPixel(f)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := img.NRGBAAt(x-rect.Min.X, y-rect.Min.Y)
			px := plane[(y*stride+x)*bpp:]
			if bpp == 2 {
				put565(f, px, c)
			} else {
				put8888(byteOrder[f], px, c)
			}
		}
	}
}

// readYUV decodes rect of a YUV surface into an image using the
// full-range BT.601 matrix.
func readYUV(f uint32, planes [][]byte, stride int, rect image.Rectangle) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var yy, cb, cr uint8
			switch f {
			case fmtYUYV, fmtYVYU, fmtUYVY, fmtVYUY:
				off := packedYUV[f]
				group := planes[0][(y*stride+x&^1)*2:]
				yy = group[off[0]]
				if x&1 == 1 {
					yy = group[off[2]]
				}
				cb, cr = group[off[1]], group[off[3]]
			case fmtNV12, fmtNV21:
				yy = planes[0][y*stride+x]
				uv := planes[1][(y/2)*2*chromaStride(stride)+x&^1:]
				cb, cr = uv[0], uv[1]
				if f == fmtNV21 {
					cb, cr = cr, cb
				}
			case fmtNV16, fmtNV61:
				yy = planes[0][y*stride+x]
				uv := planes[1][y*2*chromaStride(stride)+x&^1:]
				cb, cr = uv[0], uv[1]
				if f == fmtNV61 {
					cb, cr = cr, cb
				}
			case fmtI420, fmtYV12:
				yy = planes[0][y*stride+x]
				ci := (y/2)*chromaStride(stride) + x/2
				cb, cr = planes[1][ci], planes[2][ci]
				if f == fmtYV12 {
					cb, cr = cr, cb
				}
			default:
				return nil, fmt.Errorf("g2dtest: unsupported source format %d", f)
			}
			r, g, b := color.YCbCrToRGB(yy, cb, cr)
			img.SetNRGBA(x-rect.Min.X, y-rect.Min.Y, color.NRGBA{R: r, G: g, B: b, A: 0xFF})
		}
	}
	return img, nil
}

// rotate applies a g2d_rotation to img.
func rotate(img *image.NRGBA, rot uint32) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if rot == 0 || rot > 5 {
		return img
	}
	ow, oh := w, h
	if rot == 1 || rot == 3 {
		ow, oh = h, w
	}
	out := image.NewNRGBA(image.Rect(0, 0, ow, oh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch rot {
			case 1: // 90
				dx, dy = h-1-y, x
			case 2: // 180
				dx, dy = w-1-x, h-1-y
			case 3: // 270
				dx, dy = y, w-1-x
			case 4: // flip horizontal
				dx, dy = w-1-x, y
			case 5: // flip vertical
				dx, dy = x, h-1-y
			}
			out.SetNRGBA(dx, dy, img.NRGBAAt(x, y))
		}
	}
	return out
}
