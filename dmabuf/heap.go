package dmabuf

import (
	"fmt"
	"strings"
)

// HeapType selects the kernel DMA heap a buffer is allocated from.
type HeapType uint8

const (
	// HeapUncached maps buffers write-combined; the CPU never caches them.
	HeapUncached HeapType = iota

	// HeapCached maps buffers with normal cacheable attributes. CPU access
	// is fast but needs device attachment plus sync bracketing to be coherent.
	HeapCached
)

// Default heap device nodes on i.MX kernels.
const (
	DefaultUncachedHeapPath = "/dev/dma_heap/linux,cma-uncached"
	DefaultCachedHeapPath   = "/dev/dma_heap/linux,cma"
)

// DefaultImportDevice is the DRM render node used to attach cached buffers.
const DefaultImportDevice = "/dev/dri/renderD128"

// String returns the string representation of HeapType.
func (h HeapType) String() string {
	switch h {
	case HeapUncached:
		return "uncached"
	case HeapCached:
		return "cached"
	default:
		return fmt.Sprintf("HeapType(%d)", int(h))
	}
}

// Cached reports whether CPU mappings of this heap go through the cache.
func (h HeapType) Cached() bool {
	return h == HeapCached
}

// ParseHeapType parses "cached" or "uncached" (case-insensitive).
func ParseHeapType(s string) (HeapType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uncached":
		return HeapUncached, nil
	case "cached":
		return HeapCached, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHeap, s)
}

func defaultHeapPaths() map[HeapType]string {
	return map[HeapType]string{
		HeapUncached: DefaultUncachedHeapPath,
		HeapCached:   DefaultCachedHeapPath,
	}
}
