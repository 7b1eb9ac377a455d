package dmabuf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/g2d/dmabuf"
	"github.com/gogpu/g2d/dmabuf/dmabuftest"
)

func TestParseHeapType(t *testing.T) {
	tests := []struct {
		in   string
		want dmabuf.HeapType
	}{
		{"cached", dmabuf.HeapCached},
		{"Uncached", dmabuf.HeapUncached},
		{" CACHED ", dmabuf.HeapCached},
	}
	for _, tt := range tests {
		got, err := dmabuf.ParseHeapType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := dmabuf.ParseHeapType("system")
	assert.ErrorIs(t, err, dmabuf.ErrUnknownHeap)
}

func mustParse(t *testing.T, s string) dmabuf.HeapType {
	t.Helper()
	h, err := dmabuf.ParseHeapType(s)
	require.NoError(t, err)
	return h
}

func TestAvailable(t *testing.T) {
	k := dmabuftest.NewKernel(dmabuftest.DefaultPhysBase)
	a := dmabuf.NewAllocator(dmabuf.WithKernel(k))

	assert.True(t, a.Available(dmabuf.HeapUncached))
	assert.True(t, a.Available(dmabuf.HeapCached))

	k.RemoveDevice(dmabuf.DefaultImportDevice)
	assert.True(t, a.Available(dmabuf.HeapUncached))
	assert.False(t, a.Available(dmabuf.HeapCached), "cached heap is unusable without an import device")
}

func TestWithHeapPath(t *testing.T) {
	k := dmabuftest.NewKernel(dmabuftest.DefaultPhysBase)
	k.AddHeap("/dev/dma_heap/system", true)
	a := dmabuf.NewAllocator(
		dmabuf.WithKernel(k),
		dmabuf.WithHeapPath(dmabuf.HeapCached, "/dev/dma_heap/system"),
	)

	path, err := a.HeapPath(dmabuf.HeapCached)
	require.NoError(t, err)
	assert.Equal(t, "/dev/dma_heap/system", path)

	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)
	assert.True(t, buf.Attached())
	require.NoError(t, buf.Release())

	_, err = a.HeapPath(dmabuf.HeapType(9))
	assert.ErrorIs(t, err, dmabuf.ErrUnknownHeap)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ReadyForAccess", dmabuf.StateReadyForAccess.String())
	assert.Equal(t, "Released", dmabuf.StateReleased.String())
	assert.Equal(t, "Unknown(42)", dmabuf.State(42).String())
}
