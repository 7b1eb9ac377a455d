package g2dtest

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/g2d/internal/native"
)

// flatMemory is device memory starting at physical address base.
type flatMemory struct {
	base uint64
	data []byte
}

func (m *flatMemory) Device(addr uint64, n int) ([]byte, error) {
	off := addr - m.base
	return m.data[off : off+uint64(n)], nil
}

func modernBytes(s Surface) []byte {
	b := make([]byte, modernSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], s.Format)
	for i, p := range s.Planes {
		le.PutUint64(b[8+8*i:], p)
	}
	tail := []uint32{uint32(s.Left), uint32(s.Top), uint32(s.Right), uint32(s.Bottom),
		uint32(s.Stride), uint32(s.Width), uint32(s.Height), s.BlendFunc, uint32(s.GlobalAlpha), s.ClrColor, s.Rot}
	for i, v := range tail {
		le.PutUint32(b[32+4*i:], v)
	}
	return b
}

func TestLayoutFromVersion(t *testing.T) {
	assert.True(t, New(nil, ModernVersion).wide)
	assert.False(t, New(nil, LegacyVersion).wide)
	assert.True(t, New(nil, "$VERSION$7.0.0$").wide)
}

func TestClearThroughEntryPoints(t *testing.T) {
	mem := &flatMemory{base: 0x1000, data: make([]byte, 4*4*4)}
	acc := New(mem, ModernVersion)
	f := acc.Funcs()

	var h uintptr
	require.Zero(t, f.Open(&h))

	area := modernBytes(Surface{
		Format: fmtRGBA8888, Planes: [3]uint64{0x1000},
		Left: 1, Top: 1, Right: 3, Bottom: 3,
		Stride: 4, Width: 4, Height: 4, ClrColor: 0xFF0000FF,
	})
	require.Zero(t, f.Clear(h, unsafe.Pointer(&area[0])))
	assert.Len(t, acc.Pending(), 1)
	assert.Equal(t, make([]byte, 64), mem.data, "nothing applied before finish")

	require.Zero(t, f.Finish(h))
	assert.Equal(t, []byte{0xFF, 0, 0, 0xFF}, mem.data[(1*4+1)*4:][:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, mem.data[:4])
	assert.Len(t, acc.Completed(), 1)

	require.Zero(t, f.Close(h))
	assert.Equal(t, int32(-1), f.Finish(h), "closed handle")
	assert.Equal(t, 2, acc.Calls(native.SymFinish))
}

func TestRGB565RoundTrip(t *testing.T) {
	px := make([]byte, 2)
	for _, f := range []uint32{fmtRGB565, fmtBGR565} {
		put565(f, px, color.NRGBA{R: 0xF8, G: 0xFC, B: 0x00, A: 0xFF})
		got := get565(f, px)
		assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xFF, B: 0x00, A: 0xFF}, got)
	}
}

func TestPackedYUVOrder(t *testing.T) {
	// Two pixels: Y0=16, Y1=235 sharing neutral chroma.
	planes := [][]byte{{16, 128, 235, 128}}
	img, err := readYUV(fmtYUYV, planes, 2, image.Rect(0, 0, 2, 1))
	require.NoError(t, err)
	assert.Less(t, img.NRGBAAt(0, 0).R, img.NRGBAAt(1, 0).R)

	planes = [][]byte{{128, 16, 128, 235}}
	img, err = readYUV(fmtUYVY, planes, 2, image.Rect(0, 0, 2, 1))
	require.NoError(t, err)
	assert.Less(t, img.NRGBAAt(0, 0).R, img.NRGBAAt(1, 0).R)
}

func TestRotate(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	red := color.NRGBA{R: 255, A: 255}
	green := color.NRGBA{G: 255, A: 255}
	src.SetNRGBA(0, 0, red)
	src.SetNRGBA(1, 0, green)

	r90 := rotate(src, 1)
	assert.Equal(t, image.Rect(0, 0, 1, 2), r90.Bounds())
	assert.Equal(t, red, r90.NRGBAAt(0, 0))
	assert.Equal(t, green, r90.NRGBAAt(0, 1))

	flip := rotate(src, 4)
	assert.Equal(t, green, flip.NRGBAAt(0, 0))
	assert.Equal(t, src, rotate(src, 0))
}
