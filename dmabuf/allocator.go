package dmabuf

import (
	"fmt"

	"go.uber.org/multierr"
)

// Option configures an Allocator.
type Option func(*Allocator)

// WithKernel replaces the system call layer. Tests pass an in-memory
// kernel from the dmabuftest package.
func WithKernel(k Kernel) Option {
	return func(a *Allocator) {
		a.kernel = k
	}
}

// WithHeapPath overrides the device node used for a heap type, e.g. to
// fall back to "/dev/dma_heap/system" on boards without CMA heaps.
func WithHeapPath(heap HeapType, path string) Option {
	return func(a *Allocator) {
		a.heapPaths[heap] = path
	}
}

// WithImportDevice overrides the DRM node used to attach cached buffers.
func WithImportDevice(path string) Option {
	return func(a *Allocator) {
		a.importDevice = path
	}
}

// Allocator creates Buffers from kernel DMA heaps.
type Allocator struct {
	kernel       Kernel
	heapPaths    map[HeapType]string
	importDevice string
}

// NewAllocator returns an Allocator using the system kernel and the
// default heap and import device paths unless overridden.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		kernel:       SystemKernel(),
		heapPaths:    defaultHeapPaths(),
		importDevice: DefaultImportDevice,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HeapPath returns the device node configured for heap.
func (a *Allocator) HeapPath(heap HeapType) (string, error) {
	path, ok := a.heapPaths[heap]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownHeap, heap)
	}
	return path, nil
}

// Available reports whether heap can be used: its device node must be
// accessible and, for cached heaps, so must the import device.
func (a *Allocator) Available(heap HeapType) bool {
	path, err := a.HeapPath(heap)
	if err != nil || !a.kernel.Available(path) {
		return false
	}
	if heap.Cached() {
		return a.kernel.Available(a.importDevice)
	}
	return true
}

// Allocate creates a buffer of size bytes and brings it to
// StateReadyForAccess: allocate from the heap, resolve the physical
// address, map it once and, for cached heaps, attach it to the import
// device. On failure everything acquired so far is released in reverse
// order and no Buffer is returned.
func (a *Allocator) Allocate(heap HeapType, size int) (_ *Buffer, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", ErrAllocFailed, size)
	}
	path, err := a.HeapPath(heap)
	if err != nil {
		return nil, err
	}

	fd, err := a.kernel.AllocateHeap(path, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes from %s heap %s: %w", ErrAllocFailed, size, heap, path, err)
	}

	b := &Buffer{
		kernel: a.kernel,
		fd:     fd,
		size:   size,
		heap:   heap,
		state:  StateUnmapped,
	}
	defer func() {
		if err == nil {
			return
		}
		if unwindErr := b.teardown(); unwindErr != nil {
			slogger().Warn("dmabuf: unwinding failed allocation", "heap", heap, "err", unwindErr)
			err = multierr.Append(err, unwindErr)
		}
	}()

	b.phys, err = a.kernel.PhysAddr(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: fd %d: %w", ErrPhysicalAddress, fd, err)
	}

	b.mem, err = a.kernel.Mmap(fd, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes of %s heap buffer: %w", ErrMapFailed, size, heap, err)
	}
	b.state = StateMapped

	if heap.Cached() {
		b.attach, err = attach(a.kernel, a.importDevice, fd)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAttachFailed, err)
		}
		b.state = StateImportAttached
	}

	b.state = StateReadyForAccess
	slogger().Debug("dmabuf: allocated",
		"heap", heap, "size", size, "fd", fd, "phys", fmt.Sprintf("%#x", b.phys), "attached", b.attach != nil)
	return b, nil
}
