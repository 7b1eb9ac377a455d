package dmabuf

// DMA_BUF_IOCTL_SYNC flags (linux/dma-buf.h).
const (
	SyncRead  uint64 = 1 << 0
	SyncWrite uint64 = 1 << 1
	SyncStart uint64 = 0 << 2
	SyncEnd   uint64 = 1 << 2
)

// Direction is the direction of one CPU access. A bracket carries exactly
// one direction; read and write flags are never combined.
type Direction uint8

const (
	// Read brackets CPU reads of device-written data.
	Read Direction = iota
	// Write brackets CPU writes the device will consume.
	Write
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

func (d Direction) flags() uint64 {
	if d == Write {
		return SyncWrite
	}
	return SyncRead
}

// Kernel is the set of system calls the coordinator needs. The default
// implementation talks to the Linux kernel; tests substitute an
// in-memory model (see the dmabuftest package).
//
// Implementations only perform the calls; ordering and bracketing are
// enforced by Buffer.
type Kernel interface {
	// Available reports whether the device node at path can be opened.
	Available(path string) bool

	// AllocateHeap allocates size bytes from the DMA heap at path and
	// returns the new dma-buf descriptor.
	AllocateHeap(path string, size int) (fd int, err error)

	// PhysAddr resolves the physical address of a contiguous dma-buf.
	// The kernel attaches and detaches internally; no state is kept.
	PhysAddr(fd int) (uint64, error)

	// Mmap maps the whole buffer shared and read-write.
	Mmap(fd, size int) ([]byte, error)

	// Munmap releases a mapping returned by Mmap.
	Munmap(mem []byte) error

	// Sync issues DMA_BUF_IOCTL_SYNC with the given flags.
	Sync(fd int, flags uint64) error

	// OpenDevice opens a DRM device node for importing buffers.
	OpenDevice(path string) (int, error)

	// PrimeFDToHandle imports a dma-buf into the device, creating a
	// persistent attachment identified by the returned GEM handle.
	PrimeFDToHandle(deviceFD, bufFD int) (uint32, error)

	// GemClose drops a GEM handle, detaching the buffer from the device.
	GemClose(deviceFD int, handle uint32) error

	// Close closes a descriptor.
	Close(fd int) error
}
