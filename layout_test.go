package g2d

import (
	"encoding/binary"
	"image"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutFor(t *testing.T) {
	assert.Equal(t, Layout{Epoch: EpochLegacy, PlaneBits: 32, SurfaceSize: 60}, LayoutFor(EpochLegacy))
	assert.Equal(t, Layout{Epoch: EpochModern, PlaneBits: 64, SurfaceSize: 80}, LayoutFor(EpochModern))
	assert.Equal(t, uintptr(60), unsafe.Sizeof(legacySurface{}))
	assert.Equal(t, uintptr(80), unsafe.Sizeof(modernSurface{}))
}

func testSurface() *Surface {
	return &Surface{
		Format:      FormatNV12,
		Planes:      [3]uint64{0x8000_0000, 0x8000_1000, 0},
		Width:       64,
		Height:      48,
		Stride:      80,
		Clip:        image.Rect(1, 2, 63, 47),
		Rotation:    Rotation90,
		BlendFunc:   BlendOneMinusSrcAlpha | BlendPremultiplied,
		GlobalAlpha: 0x80,
		clearColor:  0xFF00FF00,
	}
}

func TestEncodeModernBytes(t *testing.T) {
	p, err := LayoutFor(EpochModern).encode(testSurface())
	require.NoError(t, err)
	b := unsafe.Slice((*byte)(p), modernSurfaceSize)
	le := binary.LittleEndian

	assert.Equal(t, uint32(FormatNV12), le.Uint32(b[0:]))
	assert.Equal(t, uint64(0x8000_0000), le.Uint64(b[8:]))
	assert.Equal(t, uint64(0x8000_1000), le.Uint64(b[16:]))
	assert.Equal(t, uint64(0), le.Uint64(b[24:]))

	tail := []uint32{1, 2, 63, 47, 80, 64, 48, 0x13, 0x80, 0xFF00FF00, 1}
	for i, want := range tail {
		assert.Equal(t, want, le.Uint32(b[32+4*i:]), "field %d", i)
	}
}

func TestEncodeLegacyBytes(t *testing.T) {
	p, err := LayoutFor(EpochLegacy).encode(testSurface())
	require.NoError(t, err)
	b := unsafe.Slice((*byte)(p), legacySurfaceSize)
	le := binary.LittleEndian

	assert.Equal(t, uint32(FormatNV12), le.Uint32(b[0:]))
	assert.Equal(t, uint32(0x8000_0000), le.Uint32(b[4:]))
	assert.Equal(t, uint32(0x8000_1000), le.Uint32(b[8:]))
	assert.Equal(t, uint32(0), le.Uint32(b[12:]))

	tail := []uint32{1, 2, 63, 47, 80, 64, 48, 0x13, 0x80, 0xFF00FF00, 1}
	for i, want := range tail {
		assert.Equal(t, want, le.Uint32(b[16+4*i:]), "field %d", i)
	}
}

func TestEncodeLegacyRejectsHighPlanes(t *testing.T) {
	s := testSurface()
	s.Planes[1] = 0x1_0000_0000

	_, err := LayoutFor(EpochLegacy).encode(s)
	assert.ErrorIs(t, err, ErrUnsupportedAbi)

	_, err = LayoutFor(EpochModern).encode(s)
	assert.NoError(t, err)
}
