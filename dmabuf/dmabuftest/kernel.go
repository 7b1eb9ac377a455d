// Package dmabuftest provides an in-memory dmabuf.Kernel for tests.
//
// The model keeps two views of every buffer: device memory, which the
// accelerator reads and writes by physical address, and the CPU view
// returned by Mmap. Uncached heaps share one backing array between the
// two. Cached heaps get a separate CPU copy that is only reconciled with
// device memory by a sync ioctl, and only while the buffer has at least
// one device attachment, which mirrors how the kernel walks attachments
// to do cache maintenance. A write-start sync refreshes the CPU view so
// that the write-end flush only changes the bytes the CPU wrote.
package dmabuftest

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/gogpu/g2d/dmabuf"
)

// DefaultPhysBase is where the first buffer is placed in physical memory.
const DefaultPhysBase uint64 = 0x8000_0000

const pageSize = 4096

// ErrBadFD is returned for descriptors the model does not know.
var ErrBadFD = errors.New("dmabuftest: bad file descriptor")

// SyncCall records one DMA_BUF_IOCTL_SYNC.
type SyncCall struct {
	FD    int
	Flags uint64
}

type region struct {
	fd          int
	phys        uint64
	cached      bool
	device      []byte
	cpu         []byte
	attachments int
}

type deviceFile struct {
	path    string
	handles map[uint32]*region
}

// Kernel is an in-memory implementation of dmabuf.Kernel. The exported
// Fail* fields inject errors into the matching call.
type Kernel struct {
	mu sync.Mutex

	heaps   map[string]bool
	devices map[string]bool

	nextFD     int
	nextPhys   uint64
	nextHandle uint32
	regions    map[int]*region
	files      map[int]*deviceFile

	events []string
	syncs  []SyncCall

	FailAllocate error
	FailPhys     error
	FailMmap     error
	FailMunmap   error
	FailImport   error
	FailGemClose error
	FailSync     error
}

// NewKernel returns a model with the default cached and uncached heaps
// and the default import device, placing buffers from physBase upward.
func NewKernel(physBase uint64) *Kernel {
	return &Kernel{
		heaps: map[string]bool{
			dmabuf.DefaultUncachedHeapPath: false,
			dmabuf.DefaultCachedHeapPath:   true,
		},
		devices: map[string]bool{
			dmabuf.DefaultImportDevice: true,
		},
		nextFD:     100,
		nextPhys:   physBase,
		nextHandle: 1,
		regions:    make(map[int]*region),
		files:      make(map[int]*deviceFile),
	}
}

// AddHeap registers another heap device node.
func (k *Kernel) AddHeap(path string, cached bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.heaps[path] = cached
}

// RemoveDevice makes an import device node disappear.
func (k *Kernel) RemoveDevice(path string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.devices, path)
}

// Events returns the ordered log of resource-releasing calls, e.g.
// "gem_close 1", "close_device 101", "munmap 100", "close_buffer 100".
func (k *Kernel) Events() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.events...)
}

// Syncs returns every sync ioctl issued so far.
func (k *Kernel) Syncs() []SyncCall {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]SyncCall(nil), k.syncs...)
}

// OpenFDs returns how many buffer and device descriptors are still open.
func (k *Kernel) OpenFDs() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.regions) + len(k.files)
}

// Attachments returns the device attachment count of buffer fd.
func (k *Kernel) Attachments(fd int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if r, ok := k.regions[fd]; ok {
		return r.attachments
	}
	return 0
}

// Device returns n bytes of device memory at physical address addr, as
// the accelerator sees it.
func (k *Kernel) Device(addr uint64, n int) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, r := range k.regions {
		if addr < r.phys || addr >= r.phys+uint64(len(r.device)) {
			continue
		}
		off := addr - r.phys
		if off+uint64(n) > uint64(len(r.device)) {
			return nil, fmt.Errorf("dmabuftest: %d bytes at %#x overrun buffer fd %d", n, addr, r.fd)
		}
		return r.device[off : off+uint64(n)], nil
	}
	return nil, fmt.Errorf("dmabuftest: no buffer at physical address %#x", addr)
}

// Available implements dmabuf.Kernel.
func (k *Kernel) Available(path string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, heap := k.heaps[path]
	return heap || k.devices[path]
}

// AllocateHeap implements dmabuf.Kernel.
func (k *Kernel) AllocateHeap(path string, size int) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailAllocate != nil {
		return -1, k.FailAllocate
	}
	cached, ok := k.heaps[path]
	if !ok {
		return -1, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	r := &region{
		fd:     k.nextFD,
		phys:   k.nextPhys,
		cached: cached,
		device: make([]byte, size),
	}
	k.nextFD++
	k.nextPhys += (uint64(size) + pageSize - 1) &^ (pageSize - 1)
	k.regions[r.fd] = r
	return r.fd, nil
}

// PhysAddr implements dmabuf.Kernel.
func (k *Kernel) PhysAddr(fd int) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailPhys != nil {
		return 0, k.FailPhys
	}
	r, ok := k.regions[fd]
	if !ok {
		return 0, ErrBadFD
	}
	return r.phys, nil
}

// Mmap implements dmabuf.Kernel. Cached regions get a CPU copy that
// starts out equal to device memory.
func (k *Kernel) Mmap(fd, size int) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailMmap != nil {
		return nil, k.FailMmap
	}
	r, ok := k.regions[fd]
	if !ok {
		return nil, ErrBadFD
	}
	if size > len(r.device) {
		return nil, fmt.Errorf("dmabuftest: mmap %d bytes of %d byte buffer", size, len(r.device))
	}
	if !r.cached {
		r.cpu = r.device[:size]
		return r.cpu, nil
	}
	r.cpu = make([]byte, size)
	copy(r.cpu, r.device)
	return r.cpu, nil
}

// Munmap implements dmabuf.Kernel.
func (k *Kernel) Munmap(mem []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailMunmap != nil {
		return k.FailMunmap
	}
	for _, r := range k.regions {
		if r.cpu != nil && len(mem) > 0 && &r.cpu[0] == &mem[0] {
			r.cpu = nil
			k.events = append(k.events, fmt.Sprintf("munmap %d", r.fd))
			return nil
		}
	}
	return fmt.Errorf("dmabuftest: munmap of unknown mapping")
}

// Sync implements dmabuf.Kernel. Cache maintenance only happens on cached
// regions that have an attachment; otherwise the call succeeds silently.
func (k *Kernel) Sync(fd int, flags uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.syncs = append(k.syncs, SyncCall{FD: fd, Flags: flags})
	if k.FailSync != nil {
		return k.FailSync
	}
	r, ok := k.regions[fd]
	if !ok {
		return ErrBadFD
	}
	if !r.cached || r.attachments == 0 || r.cpu == nil {
		return nil
	}
	end := flags&dmabuf.SyncEnd != 0
	switch {
	case !end:
		copy(r.cpu, r.device)
	case flags&dmabuf.SyncWrite != 0:
		copy(r.device, r.cpu)
	}
	return nil
}

// OpenDevice implements dmabuf.Kernel.
func (k *Kernel) OpenDevice(path string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.devices[path] {
		return -1, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	fd := k.nextFD
	k.nextFD++
	k.files[fd] = &deviceFile{path: path, handles: make(map[uint32]*region)}
	return fd, nil
}

// PrimeFDToHandle implements dmabuf.Kernel.
func (k *Kernel) PrimeFDToHandle(deviceFD, bufFD int) (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailImport != nil {
		return 0, k.FailImport
	}
	f, ok := k.files[deviceFD]
	if !ok {
		return 0, ErrBadFD
	}
	r, ok := k.regions[bufFD]
	if !ok {
		return 0, ErrBadFD
	}
	h := k.nextHandle
	k.nextHandle++
	f.handles[h] = r
	r.attachments++
	return h, nil
}

// GemClose implements dmabuf.Kernel.
func (k *Kernel) GemClose(deviceFD int, handle uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailGemClose != nil {
		return k.FailGemClose
	}
	f, ok := k.files[deviceFD]
	if !ok {
		return ErrBadFD
	}
	r, ok := f.handles[handle]
	if !ok {
		return fmt.Errorf("dmabuftest: unknown GEM handle %d", handle)
	}
	delete(f.handles, handle)
	r.attachments--
	k.events = append(k.events, fmt.Sprintf("gem_close %d", handle))
	return nil
}

// Close implements dmabuf.Kernel. Closing a device drops its handles.
func (k *Kernel) Close(fd int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if f, ok := k.files[fd]; ok {
		for h, r := range f.handles {
			r.attachments--
			delete(f.handles, h)
		}
		delete(k.files, fd)
		k.events = append(k.events, fmt.Sprintf("close_device %d", fd))
		return nil
	}
	if _, ok := k.regions[fd]; ok {
		delete(k.regions, fd)
		k.events = append(k.events, fmt.Sprintf("close_buffer %d", fd))
		return nil
	}
	return ErrBadFD
}

var _ dmabuf.Kernel = (*Kernel)(nil)
