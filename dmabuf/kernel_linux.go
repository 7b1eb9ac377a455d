//go:build linux

package dmabuf

import (
	"fmt"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// ioctl direction bits (asm-generic/ioctl.h).
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

// struct dma_heap_allocation_data
type dmaHeapAllocationData struct {
	Len       uint64
	FD        uint32
	FDFlags   uint32
	HeapFlags uint64
}

// struct dma_buf_sync
type dmaBufSync struct {
	Flags uint64
}

// struct drm_prime_handle
type drmPrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

// struct drm_gem_close
type drmGemClose struct {
	Handle uint32
	Pad    uint32
}

var (
	dmaHeapIoctlAlloc = ioc(iocRead|iocWrite, 'H', 0x0, unsafe.Sizeof(dmaHeapAllocationData{}))
	dmaBufIoctlSync   = ioc(iocWrite, 'b', 0x0, unsafe.Sizeof(dmaBufSync{}))
	// NXP kernels only; the kernel writes the address back despite _IOW.
	dmaBufIoctlPhys         = ioc(iocWrite, 'b', 0xa, unsafe.Sizeof(uint64(0)))
	drmIoctlPrimeFDToHandle = ioc(iocRead|iocWrite, 'd', 0x2e, unsafe.Sizeof(drmPrimeHandle{}))
	drmIoctlGemClose        = ioc(iocWrite, 'd', 0x09, unsafe.Sizeof(drmGemClose{}))
)

// unixKernel implements Kernel with raw Linux system calls.
type unixKernel struct{}

// SystemKernel returns the Kernel backed by the running Linux kernel.
func SystemKernel() Kernel {
	return unixKernel{}
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (unixKernel) Available(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

func (unixKernel) AllocateHeap(path string, size int) (fd int, err error) {
	heapFD, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	defer func() {
		closeErr := unix.Close(heapFD)
		if closeErr == nil {
			return
		}
		err = multierr.Append(err, fmt.Errorf("close heap %s: %w", path, closeErr))
		if fd >= 0 {
			err = multierr.Append(err, unix.Close(fd))
			fd = -1
		}
	}()

	data := dmaHeapAllocationData{
		Len:     uint64(size),
		FDFlags: unix.O_RDWR | unix.O_CLOEXEC,
	}
	if err := ioctl(heapFD, dmaHeapIoctlAlloc, unsafe.Pointer(&data)); err != nil {
		return -1, err
	}
	return int(data.FD), nil
}

func (unixKernel) PhysAddr(fd int) (uint64, error) {
	var phys uint64
	if err := ioctl(fd, dmaBufIoctlPhys, unsafe.Pointer(&phys)); err != nil {
		return 0, err
	}
	return phys, nil
}

func (unixKernel) Mmap(fd, size int) ([]byte, error) {
	return unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (unixKernel) Munmap(mem []byte) error {
	return unix.Munmap(mem)
}

func (unixKernel) Sync(fd int, flags uint64) error {
	sync := dmaBufSync{Flags: flags}
	return ioctl(fd, dmaBufIoctlSync, unsafe.Pointer(&sync))
}

func (unixKernel) OpenDevice(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
}

func (unixKernel) PrimeFDToHandle(deviceFD, bufFD int) (uint32, error) {
	prime := drmPrimeHandle{FD: int32(bufFD)}
	if err := ioctl(deviceFD, drmIoctlPrimeFDToHandle, unsafe.Pointer(&prime)); err != nil {
		return 0, err
	}
	return prime.Handle, nil
}

func (unixKernel) GemClose(deviceFD int, handle uint32) error {
	gem := drmGemClose{Handle: handle}
	return ioctl(deviceFD, drmIoctlGemClose, unsafe.Pointer(&gem))
}

func (unixKernel) Close(fd int) error {
	return unix.Close(fd)
}
