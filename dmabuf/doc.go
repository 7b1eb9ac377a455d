// Package dmabuf manages DMA-buf memory shared between the CPU and a
// DMA-capable 2D accelerator.
//
// # Lifecycle
//
// A Buffer is only handed out once it is ready for CPU access:
//
//	Unmapped -> Mapped -> ImportAttached (cached heaps) -> ReadyForAccess -> Released
//
// Allocate performs every step before it returns. If any step fails the
// resources acquired so far are released in reverse order and no Buffer
// is returned.
//
// # Cache coherency
//
// The kernel's DMA_BUF_IOCTL_SYNC performs cache maintenance by walking
// the device attachments of the buffer. A buffer from a cached heap with
// no attachment gets a sync that succeeds and does nothing, so the CPU
// keeps reading stale cache lines. Allocate therefore imports every
// cached-heap buffer through a DRM render node, which creates a
// persistent attachment that lives until Release.
//
// Every CPU access goes through ReadWith or WriteWith, which bracket the
// callback with sync start/end in a single direction:
//
//	err := buf.WriteWith(func(data []byte) error {
//	    copy(data, frame)
//	    return nil
//	})
//
// The mapping passed to the callback must not be retained after it
// returns.
//
// # Concurrency
//
// Buffers are not safe for concurrent use. Callers serialise access, and
// must wait for the accelerator to finish before reading memory it wrote.
package dmabuf
