//go:build !linux

package dmabuf

// unsupportedKernel fails every call; DMA-buf heaps are Linux only.
type unsupportedKernel struct{}

// SystemKernel returns a Kernel whose calls fail with ErrUnsupportedPlatform.
func SystemKernel() Kernel {
	return unsupportedKernel{}
}

func (unsupportedKernel) Available(string) bool { return false }

func (unsupportedKernel) AllocateHeap(string, int) (int, error) {
	return -1, ErrUnsupportedPlatform
}

func (unsupportedKernel) PhysAddr(int) (uint64, error) { return 0, ErrUnsupportedPlatform }

func (unsupportedKernel) Mmap(int, int) ([]byte, error) { return nil, ErrUnsupportedPlatform }

func (unsupportedKernel) Munmap([]byte) error { return ErrUnsupportedPlatform }

func (unsupportedKernel) Sync(int, uint64) error { return ErrUnsupportedPlatform }

func (unsupportedKernel) OpenDevice(string) (int, error) { return -1, ErrUnsupportedPlatform }

func (unsupportedKernel) PrimeFDToHandle(int, int) (uint32, error) {
	return 0, ErrUnsupportedPlatform
}

func (unsupportedKernel) GemClose(int, uint32) error { return ErrUnsupportedPlatform }

func (unsupportedKernel) Close(int) error { return ErrUnsupportedPlatform }
