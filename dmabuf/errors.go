package dmabuf

import (
	"errors"
	"fmt"
)

// Buffer errors.
var (
	// ErrAllocFailed is returned when a heap cannot provide a buffer.
	ErrAllocFailed = errors.New("dmabuf: allocation failed")

	// ErrPhysicalAddress is returned when the buffer's physical address
	// cannot be resolved.
	ErrPhysicalAddress = errors.New("dmabuf: physical address resolution failed")

	// ErrMapFailed is returned when the persistent CPU mapping cannot be
	// established. Mapping is never retried.
	ErrMapFailed = errors.New("dmabuf: mmap failed")

	// ErrAttachFailed is returned when a cached-heap buffer cannot be
	// imported into the device driver. Without the attachment cache sync
	// is a silent no-op, so the buffer is not handed out.
	ErrAttachFailed = errors.New("dmabuf: device import failed")

	// ErrReleased is returned when a released buffer is used or released again.
	ErrReleased = errors.New("dmabuf: buffer has been released")

	// ErrAccessInProgress is returned when a buffer is accessed or released
	// from inside an access callback.
	ErrAccessInProgress = errors.New("dmabuf: buffer access already in progress")

	// ErrUnknownHeap is returned for heap types without a device node.
	ErrUnknownHeap = errors.New("dmabuf: unknown heap type")

	// ErrUnsupportedPlatform is returned by the default kernel outside Linux.
	ErrUnsupportedPlatform = errors.New("dmabuf: DMA-buf requires Linux")
)

// SyncPhase identifies which half of an access bracket failed.
type SyncPhase uint8

const (
	// PhaseStart is the sync issued before the CPU touches the mapping.
	PhaseStart SyncPhase = iota
	// PhaseEnd is the sync issued after the CPU is done.
	PhaseEnd
)

// String returns the string representation of SyncPhase.
func (p SyncPhase) String() string {
	if p == PhaseEnd {
		return "end"
	}
	return "start"
}

// SyncError reports a failed DMA_BUF_IOCTL_SYNC. The CPU view and the
// device view of the buffer may have diverged; the error must not be
// ignored.
type SyncError struct {
	Direction Direction
	Phase     SyncPhase
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("dmabuf: sync %s (%s) failed: %v", e.Phase, e.Direction, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
