package g2d

import (
	"fmt"
	"math"
	"unsafe"
)

// legacySurface is g2d_surface as compiled into libraries before 6.4.11.
type legacySurface struct {
	Format      uint32
	Planes      [3]int32
	Left        int32
	Top         int32
	Right       int32
	Bottom      int32
	Stride      int32
	Width       int32
	Height      int32
	BlendFunc   uint32
	GlobalAlpha int32
	ClrColor    int32
	Rot         uint32
}

// modernSurface is g2d_surface from 6.4.11 on. The explicit padding keeps
// the C layout on 32-bit targets, where Go aligns uint64 to 4 bytes.
type modernSurface struct {
	Format      uint32
	_           uint32
	Planes      [3]uint64
	Left        int32
	Top         int32
	Right       int32
	Bottom      int32
	Stride      int32
	Width       int32
	Height      int32
	BlendFunc   uint32
	GlobalAlpha int32
	ClrColor    int32
	Rot         uint32
	_           uint32
}

// Sizes must match the C structs exactly.
const (
	legacySurfaceSize = 60
	modernSurfaceSize = 80
)

var (
	_ = [1]struct{}{}[unsafe.Sizeof(legacySurface{})-legacySurfaceSize]
	_ = [1]struct{}{}[legacySurfaceSize-unsafe.Sizeof(legacySurface{})]
	_ = [1]struct{}{}[unsafe.Sizeof(modernSurface{})-modernSurfaceSize]
	_ = [1]struct{}{}[modernSurfaceSize-unsafe.Sizeof(modernSurface{})]
)

// Layout describes the g2d_surface wire format of one ABI epoch.
type Layout struct {
	Epoch AbiEpoch

	// PlaneBits is the width of each plane address field.
	PlaneBits int

	// SurfaceSize is the size of g2d_surface in bytes.
	SurfaceSize uintptr
}

// LayoutFor returns the structure layout used by epoch.
func LayoutFor(epoch AbiEpoch) Layout {
	if epoch == EpochModern {
		return Layout{Epoch: EpochModern, PlaneBits: 64, SurfaceSize: modernSurfaceSize}
	}
	return Layout{Epoch: EpochLegacy, PlaneBits: 32, SurfaceSize: legacySurfaceSize}
}

// encode builds the g2d_surface for s. The returned pointer refers to a
// fresh Go allocation that the caller keeps alive across the native call.
func (l Layout) encode(s *Surface) (unsafe.Pointer, error) {
	if l.Epoch == EpochModern {
		m := &modernSurface{
			Format:      uint32(s.Format),
			Planes:      s.Planes,
			Left:        int32(s.Clip.Min.X),
			Top:         int32(s.Clip.Min.Y),
			Right:       int32(s.Clip.Max.X),
			Bottom:      int32(s.Clip.Max.Y),
			Stride:      int32(s.Stride),
			Width:       int32(s.Width),
			Height:      int32(s.Height),
			BlendFunc:   uint32(s.BlendFunc),
			GlobalAlpha: int32(s.GlobalAlpha),
			ClrColor:    int32(s.clearColor),
			Rot:         uint32(s.Rotation),
		}
		return unsafe.Pointer(m), nil
	}

	g := &legacySurface{
		Format:      uint32(s.Format),
		Left:        int32(s.Clip.Min.X),
		Top:         int32(s.Clip.Min.Y),
		Right:       int32(s.Clip.Max.X),
		Bottom:      int32(s.Clip.Max.Y),
		Stride:      int32(s.Stride),
		Width:       int32(s.Width),
		Height:      int32(s.Height),
		BlendFunc:   uint32(s.BlendFunc),
		GlobalAlpha: int32(s.GlobalAlpha),
		ClrColor:    int32(s.clearColor),
		Rot:         uint32(s.Rotation),
	}
	for i, p := range s.Planes {
		if p > math.MaxUint32 {
			return nil, fmt.Errorf("%w: plane %d at %#x needs 64-bit addresses", ErrUnsupportedAbi, i, p)
		}
		g.Planes[i] = int32(uint32(p))
	}
	return unsafe.Pointer(g), nil
}
