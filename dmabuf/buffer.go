package dmabuf

import (
	"fmt"

	"go.uber.org/multierr"
)

// State is the lifecycle state of a Buffer.
type State int

const (
	// StateUnmapped means the dma-buf exists but has no CPU mapping.
	StateUnmapped State = iota
	// StateMapped means the persistent CPU mapping is established.
	StateMapped
	// StateImportAttached means a cached-heap buffer is attached to a device.
	StateImportAttached
	// StateReadyForAccess means bracketed CPU access is allowed.
	StateReadyForAccess
	// StateReleased is terminal.
	StateReleased
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUnmapped:
		return "Unmapped"
	case StateMapped:
		return "Mapped"
	case StateImportAttached:
		return "ImportAttached"
	case StateReadyForAccess:
		return "ReadyForAccess"
	case StateReleased:
		return "Released"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Buffer is one CPU/device shared memory region.
//
// Buffers are created by Allocator.Allocate and are in StateReadyForAccess
// until Release. The mapping is established once and stays at the same
// address for the buffer's whole life.
type Buffer struct {
	kernel Kernel
	fd     int
	size   int
	heap   HeapType
	phys   uint64
	mem    []byte
	attach *attachment
	state  State
	busy   bool
}

// FD returns the dma-buf descriptor, or -1 after Release.
func (b *Buffer) FD() int {
	return b.fd
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int {
	return b.size
}

// Heap returns the heap the buffer was allocated from.
func (b *Buffer) Heap() HeapType {
	return b.heap
}

// PhysAddr returns the physical address the accelerator uses for this buffer.
func (b *Buffer) PhysAddr() uint64 {
	return b.phys
}

// State returns the current lifecycle state.
func (b *Buffer) State() State {
	return b.state
}

// Attached reports whether a device attachment is held.
func (b *Buffer) Attached() bool {
	return b.attach != nil
}

// ReadWith brackets a CPU read of the mapping with sync start/end for
// reading. fn must not retain data.
func (b *Buffer) ReadWith(fn func(data []byte) error) error {
	return b.access(Read, fn)
}

// WriteWith brackets a CPU write of the mapping with sync start/end for
// writing. fn must not retain data.
func (b *Buffer) WriteWith(fn func(data []byte) error) error {
	return b.access(Write, fn)
}

// ReadAll returns a copy of the buffer contents, read under a bracket.
func (b *Buffer) ReadAll() ([]byte, error) {
	var out []byte
	err := b.ReadWith(func(data []byte) error {
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fill repeats pattern over the whole buffer under a write bracket.
func (b *Buffer) Fill(pattern []byte) error {
	if len(pattern) == 0 {
		return fmt.Errorf("dmabuf: empty fill pattern")
	}
	return b.WriteWith(func(data []byte) error {
		for i := 0; i < len(data); i += len(pattern) {
			copy(data[i:], pattern)
		}
		return nil
	})
}

func (b *Buffer) access(dir Direction, fn func([]byte) error) (err error) {
	switch {
	case b.state == StateReleased:
		return ErrReleased
	case b.state != StateReadyForAccess:
		return fmt.Errorf("dmabuf: buffer not ready for access (state %s)", b.state)
	case b.busy:
		return ErrAccessInProgress
	case b.heap.Cached() && b.attach == nil:
		return fmt.Errorf("%w: cached buffer has no device attachment", ErrAttachFailed)
	}

	if err := b.sync(dir, PhaseStart); err != nil {
		return err
	}
	b.busy = true
	defer func() {
		b.busy = false
		err = multierr.Append(err, b.sync(dir, PhaseEnd))
	}()
	return fn(b.mem)
}

func (b *Buffer) sync(dir Direction, phase SyncPhase) error {
	flags := dir.flags() | SyncStart
	if phase == PhaseEnd {
		flags = dir.flags() | SyncEnd
	}
	if err := b.kernel.Sync(b.fd, flags); err != nil {
		return &SyncError{Direction: dir, Phase: phase, Err: err}
	}
	return nil
}

// Release detaches the device import, unmaps the buffer and closes the
// descriptor, strictly in that order. Every step is attempted even if an
// earlier one fails; the failures are combined. Releasing twice returns
// ErrReleased.
func (b *Buffer) Release() error {
	if b.state == StateReleased {
		return ErrReleased
	}
	if b.busy {
		return ErrAccessInProgress
	}
	err := b.teardown()
	slogger().Debug("dmabuf: released", "fd", b.fd, "heap", b.heap, "size", b.size, "err", err)
	b.fd = -1
	return err
}

// teardown releases whatever has been acquired so far, newest first.
// It serves both Release and the unwinding of a failed Allocate.
func (b *Buffer) teardown() error {
	var err error
	if b.attach != nil {
		err = multierr.Append(err, b.attach.detach())
		b.attach = nil
	}
	if b.mem != nil {
		if unmapErr := b.kernel.Munmap(b.mem); unmapErr != nil {
			err = multierr.Append(err, fmt.Errorf("dmabuf: munmap fd %d: %w", b.fd, unmapErr))
		}
		b.mem = nil
	}
	if b.fd >= 0 {
		if closeErr := b.kernel.Close(b.fd); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("dmabuf: close fd %d: %w", b.fd, closeErr))
		}
	}
	b.state = StateReleased
	return err
}
