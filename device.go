package g2d

import (
	"fmt"
	"image"
	"image/color"
	"runtime"

	"go.uber.org/multierr"

	"github.com/gogpu/g2d/internal/native"
)

// capability is a g2d_cap_mode value passed to g2d_enable/g2d_disable.
type capability int32

const (
	capBlend       capability = 0
	capDither      capability = 1
	capGlobalAlpha capability = 2
	capBlendDim    capability = 3
	capBlur        capability = 4
	capBT601       capability = 5
	capBT709       capability = 6
	capBT601Full   capability = 7
	capBT709Full   capability = 8
)

// colorspaceCaps lists the YUV caps; exactly one is enabled at a time.
var colorspaceCaps = map[Colorspace]capability{
	ColorspaceBT601:          capBT601,
	ColorspaceBT709:          capBT709,
	ColorspaceBT601FullRange: capBT601Full,
	ColorspaceBT709FullRange: capBT709Full,
}

// BlitParams selects the optional stages of a blit. The zero value is a
// plain copy with format conversion, scaling and the destination's
// rotation.
type BlitParams struct {
	// Blend combines source and destination using the surfaces' BlendFunc.
	Blend bool

	// GlobalAlpha applies the source's GlobalAlpha. Requires Blend.
	GlobalAlpha bool

	// Dither dithers when converting to a lower bit depth.
	Dither bool
}

// Device is an open accelerator context.
//
// Operations are queued by the accelerator; Finish blocks until everything
// queued so far has completed. A Device has no internal locking and must
// not be used from more than one goroutine at a time.
type Device struct {
	lib        *native.Library
	funcs      *native.Funcs
	handle     uintptr
	version    Version
	layout     Layout
	colorspace Colorspace
	pending    bool
	closed     bool
}

// Open loads the G2D library at path, negotiates the surface layout from
// its version and creates an accelerator context. On any failure
// everything acquired so far is released and no Device is returned.
func Open(path string, opts ...Option) (*Device, error) {
	lib, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	return openLibrary(lib, opts...)
}

// openLibrary creates a Device on an already resolved library and takes
// ownership of it.
func openLibrary(lib *native.Library, opts ...Option) (_ *Device, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{lib: lib}
	defer func() {
		if err == nil {
			return
		}
		if closeErr := d.release(); closeErr != nil {
			Logger().Warn("g2d: releasing after failed open", "path", lib.Path(), "err", closeErr)
			err = multierr.Append(err, closeErr)
		}
	}()

	d.funcs, err = lib.Funcs()
	if err != nil {
		return nil, err
	}
	Logger().Debug("g2d: symbols resolved", "path", lib.Path(), "count", len(native.RequiredSymbols))
	d.version, err = detect(lib)
	if err != nil {
		return nil, err
	}
	d.layout = LayoutFor(d.version.Epoch())
	Logger().Debug("g2d: layout selected",
		"epoch", d.layout.Epoch, "plane_bits", d.layout.PlaneBits, "surface_size", d.layout.SurfaceSize)

	if err = check(native.SymOpen, d.funcs.Open(&d.handle)); err != nil {
		d.handle = 0
		return nil, err
	}
	if d.handle == 0 {
		return nil, &NativeCallError{Op: native.SymOpen, Code: -1}
	}

	if err = d.SetColorspace(o.colorspace); err != nil {
		return nil, err
	}

	Logger().Info("g2d: library loaded",
		"path", lib.Path(), "version", d.version.String(), "epoch", d.layout.Epoch)
	return d, nil
}

// Version returns the library version detected at open.
func (d *Device) Version() Version {
	return d.version
}

// Layout returns the surface layout selected at open.
func (d *Device) Layout() Layout {
	return d.layout
}

// Colorspace returns the YUV matrix currently enabled.
func (d *Device) Colorspace() Colorspace {
	return d.colorspace
}

// SetColorspace enables the YUV matrix cs and disables the others.
// ColorspaceUnspecified is a no-op.
func (d *Device) SetColorspace(cs Colorspace) error {
	if d.closed {
		return ErrClosed
	}
	if cs == ColorspaceUnspecified {
		return nil
	}
	want, ok := colorspaceCaps[cs]
	if !ok {
		return fmt.Errorf("g2d: unknown colorspace %s", cs)
	}
	for c := ColorspaceBT601; c <= ColorspaceBT709FullRange; c++ {
		if c == cs {
			continue
		}
		if err := d.disable(colorspaceCaps[c]); err != nil {
			return err
		}
	}
	if err := d.enable(want); err != nil {
		return err
	}
	d.colorspace = cs
	return nil
}

// Clear fills region of dst with c. An empty region fills dst.Clip. The
// fill is queued; call Finish before reading the destination.
func (d *Device) Clear(dst *Surface, c color.Color, region image.Rectangle) error {
	if d.closed {
		return ErrClosed
	}
	if err := dst.Validate(); err != nil {
		return err
	}
	if dst.Format.IsYUV() {
		return fmt.Errorf("%w: clear of %s destination", ErrInvalidFormat, dst.Format)
	}
	if region.Empty() {
		region = dst.Clip
	}
	if !region.In(dst.Bounds()) {
		return fmt.Errorf("%w: region %v outside %v", ErrInvalidSurface, region, dst.Bounds())
	}

	area := *dst
	area.Clip = region
	area.clearColor = packRGBA(c)

	arg, err := d.layout.encode(&area)
	if err != nil {
		return err
	}
	code := d.funcs.Clear(d.handle, arg)
	runtime.KeepAlive(arg)
	if err := check(native.SymClear, code); err != nil {
		return err
	}
	d.pending = true
	return nil
}

// packRGBA packs c as G2D_RGBA8888, 0xAABBGGRR, non-premultiplied.
func packRGBA(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.R) | uint32(n.G)<<8 | uint32(n.B)<<16 | uint32(n.A)<<24
}

// Blit copies src.Clip into dst.Clip, converting format, scaling when
// the clip sizes differ and applying dst.Rotation. The blit is queued;
// call Finish before reading the destination.
func (d *Device) Blit(src, dst *Surface, p BlitParams) (err error) {
	if d.closed {
		return ErrClosed
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if p.GlobalAlpha && !p.Blend {
		return fmt.Errorf("g2d: global alpha requires blending")
	}

	srcArg, err := d.layout.encode(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dstArg, err := d.layout.encode(dst)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if src.Colorspace != ColorspaceUnspecified && src.Colorspace != d.colorspace &&
		(src.Format.IsYUV() || dst.Format.IsYUV()) {
		if err := d.SetColorspace(src.Colorspace); err != nil {
			return err
		}
	}

	var caps []capability
	if p.Blend {
		caps = append(caps, capBlend)
	}
	if p.GlobalAlpha {
		caps = append(caps, capGlobalAlpha)
	}
	if p.Dither {
		caps = append(caps, capDither)
	}
	for i, c := range caps {
		if err := d.enable(c); err != nil {
			return multierr.Append(err, d.disableAll(caps[:i]))
		}
	}
	defer func() {
		err = multierr.Append(err, d.disableAll(caps))
	}()

	code := d.funcs.Blit(d.handle, srcArg, dstArg)
	runtime.KeepAlive(srcArg)
	runtime.KeepAlive(dstArg)
	if err := check(native.SymBlit, code); err != nil {
		return err
	}
	d.pending = true
	return nil
}

// Flush submits queued operations without waiting for them.
func (d *Device) Flush() error {
	if d.closed {
		return ErrClosed
	}
	return check(native.SymFlush, d.funcs.Flush(d.handle))
}

// Finish blocks until every queued operation has completed. With nothing
// queued since the last successful Finish it returns immediately.
func (d *Device) Finish() error {
	if d.closed {
		return ErrClosed
	}
	if !d.pending {
		return nil
	}
	if err := check(native.SymFinish, d.funcs.Finish(d.handle)); err != nil {
		return err
	}
	d.pending = false
	return nil
}

// Close destroys the accelerator context and unloads the library.
// Calling Close more than once is a no-op.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	return d.release()
}

// release closes the context, if any, then the library. Both steps are
// attempted.
func (d *Device) release() error {
	var err error
	if d.handle != 0 && d.funcs != nil {
		err = check(native.SymClose, d.funcs.Close(d.handle))
		d.handle = 0
	}
	err = multierr.Append(err, d.lib.Close())
	d.closed = true
	d.pending = false
	return err
}

func (d *Device) enable(c capability) error {
	return check(native.SymEnable, d.funcs.Enable(d.handle, int32(c)))
}

func (d *Device) disable(c capability) error {
	return check(native.SymDisable, d.funcs.Disable(d.handle, int32(c)))
}

// disableAll disables caps in reverse order, attempting each.
func (d *Device) disableAll(caps []capability) error {
	var err error
	for i := len(caps) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.disable(caps[i]))
	}
	return err
}
