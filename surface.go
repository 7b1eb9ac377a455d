package g2d

import (
	"fmt"
	"image"
)

// Colorspace tags the YUV matrix used when converting to or from RGB.
type Colorspace uint8

const (
	// ColorspaceUnspecified leaves the accelerator's current setting alone.
	ColorspaceUnspecified Colorspace = iota
	ColorspaceBT601
	ColorspaceBT709
	ColorspaceBT601FullRange
	ColorspaceBT709FullRange
)

// String returns the string representation of Colorspace.
func (c Colorspace) String() string {
	switch c {
	case ColorspaceUnspecified:
		return "unspecified"
	case ColorspaceBT601:
		return "bt601"
	case ColorspaceBT709:
		return "bt709"
	case ColorspaceBT601FullRange:
		return "bt601-full"
	case ColorspaceBT709FullRange:
		return "bt709-full"
	default:
		return fmt.Sprintf("Colorspace(%d)", int(c))
	}
}

// ParseColorspace parses the names produced by Colorspace.String.
func ParseColorspace(s string) (Colorspace, error) {
	for c := ColorspaceUnspecified; c <= ColorspaceBT709FullRange; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	if s == "" {
		return ColorspaceUnspecified, nil
	}
	return 0, fmt.Errorf("g2d: unknown colorspace %q", s)
}

// Rotation is a g2d_rotation value applied to a destination surface.
type Rotation uint32

const (
	Rotation0     Rotation = 0
	Rotation90    Rotation = 1
	Rotation180   Rotation = 2
	Rotation270   Rotation = 3
	RotationFlipH Rotation = 4
	RotationFlipV Rotation = 5
)

// BlendFunc is a g2d_blend_func value. The Premultiplied and
// Demultiplied bits may be or'ed onto a factor.
type BlendFunc uint32

const (
	BlendZero             BlendFunc = 0
	BlendOne              BlendFunc = 1
	BlendSrcAlpha         BlendFunc = 2
	BlendOneMinusSrcAlpha BlendFunc = 3
	BlendDstAlpha         BlendFunc = 4
	BlendOneMinusDstAlpha BlendFunc = 5

	BlendPremultiplied BlendFunc = 0x10
	BlendDemultiplied  BlendFunc = 0x20
)

// PhysicalMemory is memory the accelerator can address. *dmabuf.Buffer
// implements it.
type PhysicalMemory interface {
	PhysAddr() uint64
	Len() int
}

// Surface describes an image in physically contiguous memory.
//
// Stride is in pixels. Clip selects the region an operation reads or
// writes; the zero rectangle is invalid, NewSurface sets it to the whole
// image.
type Surface struct {
	Format Format
	Planes [3]uint64
	Width  int
	Height int
	Stride int
	Clip   image.Rectangle

	Rotation    Rotation
	BlendFunc   BlendFunc
	GlobalAlpha uint8

	// Colorspace is the YUV matrix of this surface when it is a blit
	// source. ColorspaceUnspecified keeps the device setting.
	Colorspace Colorspace

	clearColor uint32
}

// NewSurface describes a w×h frame of format stored contiguously in mem.
// Plane addresses of multi-plane formats are derived from the buffer's
// physical address.
func NewSurface(mem PhysicalMemory, w, h int, format Format) (*Surface, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, format)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidSurface, w, h)
	}
	if need := format.BufferSize(w, h); mem.Len() < need {
		return nil, fmt.Errorf("%w: %dx%d %s needs %d bytes, buffer has %d",
			ErrInvalidSurface, w, h, format, need, mem.Len())
	}

	s := &Surface{
		Format:      format,
		Width:       w,
		Height:      h,
		Stride:      w,
		Clip:        image.Rect(0, 0, w, h),
		GlobalAlpha: 0xFF,
	}
	base := mem.PhysAddr()
	for i, off := range format.planeOffsets(w, h) {
		s.Planes[i] = base + uint64(off)
	}
	return s, nil
}

// Bounds returns the whole image rectangle.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

// Validate checks that the geometry is consistent and that every plane the
// format needs has an address.
func (s *Surface) Validate() error {
	if !s.Format.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, s.Format)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidSurface, s.Width, s.Height)
	}
	if s.Stride < s.Width {
		return fmt.Errorf("%w: stride %d below width %d", ErrInvalidSurface, s.Stride, s.Width)
	}
	if s.Clip.Empty() || !s.Clip.In(s.Bounds()) {
		return fmt.Errorf("%w: clip %v outside %v", ErrInvalidSurface, s.Clip, s.Bounds())
	}
	for i := 0; i < s.Format.Planes(); i++ {
		if s.Planes[i] == 0 {
			return fmt.Errorf("%w: plane %d of %s has no address", ErrInvalidSurface, i, s.Format)
		}
	}
	return nil
}
