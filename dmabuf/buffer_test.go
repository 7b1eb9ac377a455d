package dmabuf_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/g2d/dmabuf"
	"github.com/gogpu/g2d/dmabuf/dmabuftest"
)

func newAllocator(t *testing.T) (*dmabuf.Allocator, *dmabuftest.Kernel) {
	t.Helper()
	k := dmabuftest.NewKernel(dmabuftest.DefaultPhysBase)
	return dmabuf.NewAllocator(dmabuf.WithKernel(k)), k
}

func TestAllocateUncached(t *testing.T) {
	a, k := newAllocator(t)

	buf, err := a.Allocate(dmabuf.HeapUncached, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	assert.Equal(t, dmabuf.StateReadyForAccess, buf.State())
	assert.Equal(t, 4096, buf.Len())
	assert.Equal(t, dmabuf.HeapUncached, buf.Heap())
	assert.Equal(t, dmabuftest.DefaultPhysBase, buf.PhysAddr())
	assert.False(t, buf.Attached())
	assert.Zero(t, k.Attachments(buf.FD()))
}

func TestAllocateCachedAttaches(t *testing.T) {
	a, k := newAllocator(t)

	buf, err := a.Allocate(dmabuf.HeapCached, 64*64*4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	assert.Equal(t, dmabuf.StateReadyForAccess, buf.State())
	assert.True(t, buf.Attached())
	assert.Equal(t, 1, k.Attachments(buf.FD()))
}

func TestAccessBracketsUseSingleDirection(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 256)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	require.NoError(t, buf.WriteWith(func(data []byte) error { data[0] = 1; return nil }))
	_, err = buf.ReadAll()
	require.NoError(t, err)

	fd := buf.FD()
	want := []dmabuftest.SyncCall{
		{FD: fd, Flags: dmabuf.SyncWrite | dmabuf.SyncStart},
		{FD: fd, Flags: dmabuf.SyncWrite | dmabuf.SyncEnd},
		{FD: fd, Flags: dmabuf.SyncRead | dmabuf.SyncStart},
		{FD: fd, Flags: dmabuf.SyncRead | dmabuf.SyncEnd},
	}
	assert.Equal(t, want, k.Syncs())
}

// deviceFill plays the accelerator: it writes straight to device memory.
func deviceFill(t *testing.T, k *dmabuftest.Kernel, buf *dmabuf.Buffer, v byte) {
	t.Helper()
	mem, err := k.Device(buf.PhysAddr(), buf.Len())
	require.NoError(t, err)
	for i := range mem {
		mem[i] = v
	}
}

func TestCachedRoundTripHasNoStaleBytes(t *testing.T) {
	for _, heap := range []dmabuf.HeapType{dmabuf.HeapUncached, dmabuf.HeapCached} {
		t.Run(heap.String(), func(t *testing.T) {
			a, k := newAllocator(t)
			buf, err := a.Allocate(heap, 64*64*4)
			require.NoError(t, err)
			t.Cleanup(func() { _ = buf.Release() })

			require.NoError(t, buf.Fill([]byte{0xDE, 0xAD, 0xBE, 0xEF}))

			dev, err := k.Device(buf.PhysAddr(), 4)
			require.NoError(t, err)
			assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, dev, "CPU write must reach device memory")

			deviceFill(t, k, buf, 0x5A)

			got, err := buf.ReadAll()
			require.NoError(t, err)
			stale := len(got) - bytes.Count(got, []byte{0x5A})
			assert.Zero(t, stale, "stale bytes after device write")
		})
	}
}

func TestPartialWriteKeepsDeviceBytes(t *testing.T) {
	for _, heap := range []dmabuf.HeapType{dmabuf.HeapUncached, dmabuf.HeapCached} {
		t.Run(heap.String(), func(t *testing.T) {
			a, k := newAllocator(t)
			buf, err := a.Allocate(heap, 16)
			require.NoError(t, err)
			t.Cleanup(func() { _ = buf.Release() })

			deviceFill(t, k, buf, 0x5A)
			require.NoError(t, buf.WriteWith(func(data []byte) error {
				data[0] = 0x01
				return nil
			}))

			dev, err := k.Device(buf.PhysAddr(), buf.Len())
			require.NoError(t, err)
			want := append([]byte{0x01}, bytes.Repeat([]byte{0x5A}, 15)...)
			assert.Equal(t, want, dev)

			got, err := buf.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestRepeatedReadsAreIdentical(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	deviceFill(t, k, buf, 0x33)

	first, err := buf.ReadAll()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := buf.ReadAll()
		require.NoError(t, err)
		require.Equal(t, first, again, "read %d differs", i)
	}
}

// TestUnattachedCachedSyncIsSilentNoop documents the hazard the allocator
// guards against: without an attachment the sync ioctl succeeds and the
// CPU keeps seeing the old contents.
func TestUnattachedCachedSyncIsSilentNoop(t *testing.T) {
	k := dmabuftest.NewKernel(dmabuftest.DefaultPhysBase)
	fd, err := k.AllocateHeap(dmabuf.DefaultCachedHeapPath, 512)
	require.NoError(t, err)
	phys, err := k.PhysAddr(fd)
	require.NoError(t, err)
	cpu, err := k.Mmap(fd, 512)
	require.NoError(t, err)

	dev, err := k.Device(phys, 512)
	require.NoError(t, err)
	for i := range dev {
		dev[i] = 0xFF
	}

	require.NoError(t, k.Sync(fd, dmabuf.SyncRead|dmabuf.SyncStart))
	assert.Equal(t, 512, bytes.Count(cpu, []byte{0}), "every byte stays stale without an attachment")
}

func TestReleaseOrderCached(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)
	fd := buf.FD()

	require.NoError(t, buf.Release())

	events := k.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "gem_close 1", events[0])
	assert.Regexp(t, `^close_device \d+$`, events[1])
	assert.Equal(t, fmt.Sprintf("munmap %d", fd), events[2])
	assert.Equal(t, fmt.Sprintf("close_buffer %d", fd), events[3])

	assert.Equal(t, dmabuf.StateReleased, buf.State())
	assert.Equal(t, -1, buf.FD())
	assert.Zero(t, k.OpenFDs())
}

func TestReleaseOrderUncached(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapUncached, 4096)
	require.NoError(t, err)
	fd := buf.FD()

	require.NoError(t, buf.Release())
	assert.Equal(t, []string{
		fmt.Sprintf("munmap %d", fd),
		fmt.Sprintf("close_buffer %d", fd),
	}, k.Events())
}

func TestDoubleReleaseIsAnError(t *testing.T) {
	a, _ := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)

	require.NoError(t, buf.Release())
	assert.ErrorIs(t, buf.Release(), dmabuf.ErrReleased)
	assert.ErrorIs(t, buf.ReadWith(func([]byte) error { return nil }), dmabuf.ErrReleased)
	assert.ErrorIs(t, buf.WriteWith(func([]byte) error { return nil }), dmabuf.ErrReleased)
}

func TestReleaseContinuesAfterDetachFailure(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)
	fd := buf.FD()

	gemErr := errors.New("gem close refused")
	k.FailGemClose = gemErr

	err = buf.Release()
	require.ErrorIs(t, err, gemErr)
	events := k.Events()
	assert.Contains(t, events, fmt.Sprintf("munmap %d", fd))
	assert.Contains(t, events, fmt.Sprintf("close_buffer %d", fd))
	assert.Zero(t, k.OpenFDs())
}

func TestAllocateFailuresUnwind(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		heap   dmabuf.HeapType
		inject func(*dmabuftest.Kernel)
		want   error
	}{
		{"alloc", dmabuf.HeapUncached, func(k *dmabuftest.Kernel) { k.FailAllocate = boom }, dmabuf.ErrAllocFailed},
		{"phys", dmabuf.HeapUncached, func(k *dmabuftest.Kernel) { k.FailPhys = boom }, dmabuf.ErrPhysicalAddress},
		{"mmap", dmabuf.HeapCached, func(k *dmabuftest.Kernel) { k.FailMmap = boom }, dmabuf.ErrMapFailed},
		{"import", dmabuf.HeapCached, func(k *dmabuftest.Kernel) { k.FailImport = boom }, dmabuf.ErrAttachFailed},
		{"no device", dmabuf.HeapCached, func(k *dmabuftest.Kernel) { k.RemoveDevice(dmabuf.DefaultImportDevice) }, dmabuf.ErrAttachFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, k := newAllocator(t)
			tt.inject(k)

			buf, err := a.Allocate(tt.heap, 4096)
			require.Nil(t, buf)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, k.OpenFDs(), "descriptors leaked")
		})
	}
}

func TestImportFailureUnmapsBeforeClose(t *testing.T) {
	a, k := newAllocator(t)
	k.FailImport = errors.New("no prime support")

	_, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.ErrorIs(t, err, dmabuf.ErrAttachFailed)

	events := k.Events()
	require.Len(t, events, 3)
	assert.Regexp(t, `^close_device \d+$`, events[0])
	assert.Regexp(t, `^munmap \d+$`, events[1])
	assert.Regexp(t, `^close_buffer \d+$`, events[2])
}

func TestAllocateUnwindErrorsAreReturned(t *testing.T) {
	a, k := newAllocator(t)
	importErr := errors.New("import refused")
	munmapErr := errors.New("munmap refused")
	k.FailImport = importErr
	k.FailMunmap = munmapErr

	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.Nil(t, buf)
	assert.ErrorIs(t, err, dmabuf.ErrAttachFailed)
	assert.ErrorIs(t, err, importErr)
	assert.ErrorIs(t, err, munmapErr)
	assert.Zero(t, k.OpenFDs(), "descriptor closed despite munmap failure")
}

func TestAllocateInvalidSize(t *testing.T) {
	a, _ := newAllocator(t)
	_, err := a.Allocate(dmabuf.HeapUncached, 0)
	assert.ErrorIs(t, err, dmabuf.ErrAllocFailed)
}

func TestSyncFailureIsSurfaced(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { k.FailSync = nil; _ = buf.Release() })

	k.FailSync = errors.New("EINVAL")
	called := false
	err = buf.ReadWith(func([]byte) error { called = true; return nil })

	var syncErr *dmabuf.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, dmabuf.Read, syncErr.Direction)
	assert.Equal(t, dmabuf.PhaseStart, syncErr.Phase)
	assert.False(t, called, "callback must not run without a successful sync start")
}

func TestSyncEndRunsAfterCallbackError(t *testing.T) {
	a, k := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapCached, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	cbErr := errors.New("callback failed")
	err = buf.WriteWith(func([]byte) error { return cbErr })
	require.ErrorIs(t, err, cbErr)

	syncs := k.Syncs()
	require.Len(t, syncs, 2)
	assert.Equal(t, dmabuf.SyncWrite|dmabuf.SyncEnd, syncs[1].Flags)
}

func TestNestedAccessRejected(t *testing.T) {
	a, _ := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapUncached, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	err = buf.ReadWith(func([]byte) error {
		assert.ErrorIs(t, buf.WriteWith(func([]byte) error { return nil }), dmabuf.ErrAccessInProgress)
		assert.ErrorIs(t, buf.Release(), dmabuf.ErrAccessInProgress)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, dmabuf.StateReadyForAccess, buf.State())
}

func TestFillRejectsEmptyPattern(t *testing.T) {
	a, _ := newAllocator(t)
	buf, err := a.Allocate(dmabuf.HeapUncached, 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Release() })

	assert.Error(t, buf.Fill(nil))
}
