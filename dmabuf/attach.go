package dmabuf

import (
	"fmt"

	"go.uber.org/multierr"
)

// attachment keeps a dma-buf imported into a DRM device. While it exists
// the kernel has a dma_buf_attach to iterate during cache maintenance.
type attachment struct {
	kernel   Kernel
	device   string
	deviceFD int
	handle   uint32
}

// attach imports bufFD through the DRM device at path.
func attach(k Kernel, path string, bufFD int) (*attachment, error) {
	deviceFD, err := k.OpenDevice(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	handle, err := k.PrimeFDToHandle(deviceFD, bufFD)
	if err != nil {
		closeErr := k.Close(deviceFD)
		return nil, multierr.Append(
			fmt.Errorf("prime import on %s: %w", path, err),
			closeErr,
		)
	}
	return &attachment{
		kernel:   k,
		device:   path,
		deviceFD: deviceFD,
		handle:   handle,
	}, nil
}

// detach drops the GEM handle, then closes the device. The device is
// closed even if the handle close fails, which releases the handle anyway.
func (a *attachment) detach() error {
	var err error
	if gemErr := a.kernel.GemClose(a.deviceFD, a.handle); gemErr != nil {
		err = multierr.Append(err, fmt.Errorf("dmabuf: gem close %d on %s: %w", a.handle, a.device, gemErr))
	}
	if closeErr := a.kernel.Close(a.deviceFD); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("dmabuf: close %s: %w", a.device, closeErr))
	}
	return err
}
