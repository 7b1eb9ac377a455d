// Package g2dtest provides an in-process G2D accelerator for tests.
//
// The accelerator implements the native entry points in Go. It decodes
// g2d_surface structures in either the legacy (32-bit planes) or modern
// (64-bit planes) layout, chosen from the version it advertises, queues
// clear and blit operations and applies them to device memory when
// g2d_finish is called. Device memory is addressed physically through a
// Memory, normally a dmabuftest.Kernel.
package g2dtest

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"sync"
	"unsafe"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/g2d/internal/native"
)

// Version strings advertised by the two layouts.
const (
	ModernVersion = "$VERSION$6.4.11:398061:d3dac3f35d$"
	LegacyVersion = "$VERSION$6.4.3:373210:ab1a6f4e5c$"
)

// Struct sizes of the two g2d_surface layouts.
const (
	legacySize = 60
	modernSize = 80
)

// g2d_cap_mode values the accelerator acts on.
const (
	capBlend       = 0
	capGlobalAlpha = 2
)

// Memory resolves physical addresses to device memory.
type Memory interface {
	Device(addr uint64, n int) ([]byte, error)
}

// Surface is a decoded g2d_surface.
type Surface struct {
	Format                   uint32
	Planes                   [3]uint64
	Left, Top, Right, Bottom int32
	Stride, Width, Height    int32
	BlendFunc                uint32
	GlobalAlpha              int32
	ClrColor                 uint32
	Rot                      uint32
}

// Rect returns the clip rectangle.
func (s Surface) Rect() image.Rectangle {
	return image.Rect(int(s.Left), int(s.Top), int(s.Right), int(s.Bottom))
}

// Op is one queued operation.
type Op struct {
	Kind  string // "clear" or "blit"
	Src   Surface
	Dst   Surface
	Blend bool
	Alpha bool
}

// Accelerator is an in-process G2D implementation.
//
// Setting a Fail* field to a non-zero status makes the matching entry
// point return it.
type Accelerator struct {
	mu sync.Mutex

	mem     Memory
	version string
	wide    bool

	nextHandle uintptr
	handles    map[uintptr]bool
	caps       map[int32]bool
	capLog     []string
	queue      []Op
	done       []Op
	calls      map[string]int

	FailOpen    int32
	FailClose   int32
	FailClear   int32
	FailBlit    int32
	FailEnable  int32
	FailFlush   int32
	FailFinish  int32
	FailDisable int32
}

// New returns an accelerator over mem advertising version. The surface
// layout follows the version: 6.4.11 and later use 64-bit planes.
func New(mem Memory, version string) *Accelerator {
	var major, minor, patch int
	_, _ = fmt.Sscanf(version, "$VERSION$%d.%d.%d", &major, &minor, &patch)
	wide := major > 6 || major == 6 && (minor > 4 || minor == 4 && patch >= 11)
	return &Accelerator{
		mem:        mem,
		version:    version,
		wide:       wide,
		nextHandle: 0x1000,
		handles:    make(map[uintptr]bool),
		caps:       make(map[int32]bool),
		calls:      make(map[string]int),
	}
}

// Library wraps the accelerator in a native.Library.
func (a *Accelerator) Library() (*native.Library, error) {
	return native.New("g2dtest", a.Funcs(), a.version)
}

// Funcs returns the entry point table.
func (a *Accelerator) Funcs() native.Funcs {
	return native.Funcs{
		Open:    a.open,
		Close:   a.close,
		Clear:   a.clear,
		Blit:    a.blit,
		Enable:  a.enable,
		Disable: a.disable,
		Flush:   a.flush,
		Finish:  a.finish,
	}
}

// Calls returns how many times the named entry point was called.
func (a *Accelerator) Calls(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

// Pending returns the operations queued since the last finish.
func (a *Accelerator) Pending() []Op {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Op(nil), a.queue...)
}

// Completed returns every operation applied so far, in order.
func (a *Accelerator) Completed() []Op {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Op(nil), a.done...)
}

// Enabled reports whether capability c is currently enabled.
func (a *Accelerator) Enabled(c int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caps[c]
}

// CapLog returns the enable/disable calls in order, e.g. "+0", "-0".
func (a *Accelerator) CapLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.capLog...)
}

// OpenHandles returns how many contexts are open.
func (a *Accelerator) OpenHandles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles)
}

// known counts a call to name and reports whether handle is open.
func (a *Accelerator) known(name string, handle uintptr) bool {
	a.calls[name]++
	return a.handles[handle]
}

func (a *Accelerator) open(handle *uintptr) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[native.SymOpen]++
	if a.FailOpen != 0 {
		return a.FailOpen
	}
	h := a.nextHandle
	a.nextHandle++
	a.handles[h] = true
	*handle = h
	return 0
}

func (a *Accelerator) close(handle uintptr) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymClose, handle) {
		return -1
	}
	delete(a.handles, handle)
	if a.FailClose != 0 {
		return a.FailClose
	}
	return 0
}

func (a *Accelerator) enable(handle uintptr, c int32) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymEnable, handle) {
		return -1
	}
	if a.FailEnable != 0 {
		return a.FailEnable
	}
	a.caps[c] = true
	a.capLog = append(a.capLog, fmt.Sprintf("+%d", c))
	return 0
}

func (a *Accelerator) disable(handle uintptr, c int32) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymDisable, handle) {
		return -1
	}
	if a.FailDisable != 0 {
		return a.FailDisable
	}
	delete(a.caps, c)
	a.capLog = append(a.capLog, fmt.Sprintf("-%d", c))
	return 0
}

func (a *Accelerator) clear(handle uintptr, area unsafe.Pointer) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymClear, handle) {
		return -1
	}
	if a.FailClear != 0 {
		return a.FailClear
	}
	a.queue = append(a.queue, Op{Kind: "clear", Dst: a.decode(area)})
	return 0
}

func (a *Accelerator) blit(handle uintptr, src, dst unsafe.Pointer) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymBlit, handle) {
		return -1
	}
	if a.FailBlit != 0 {
		return a.FailBlit
	}
	a.queue = append(a.queue, Op{
		Kind:  "blit",
		Src:   a.decode(src),
		Dst:   a.decode(dst),
		Blend: a.caps[capBlend],
		Alpha: a.caps[capGlobalAlpha],
	})
	return 0
}

func (a *Accelerator) flush(handle uintptr) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymFlush, handle) {
		return -1
	}
	return a.FailFlush
}

func (a *Accelerator) finish(handle uintptr) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(native.SymFinish, handle) {
		return -1
	}
	if a.FailFinish != 0 {
		return a.FailFinish
	}
	for _, op := range a.queue {
		if err := a.apply(op); err != nil {
			a.queue = nil
			return -2
		}
		a.done = append(a.done, op)
	}
	a.queue = nil
	return 0
}

// decode reads a g2d_surface in the advertised layout.
func (a *Accelerator) decode(p unsafe.Pointer) Surface {
	le := binary.LittleEndian
	var s Surface
	var b []byte
	if a.wide {
		b = unsafe.Slice((*byte)(p), modernSize)
		s.Format = le.Uint32(b[0:])
		for i := range s.Planes {
			s.Planes[i] = le.Uint64(b[8+8*i:])
		}
		b = b[32:]
	} else {
		b = unsafe.Slice((*byte)(p), legacySize)
		s.Format = le.Uint32(b[0:])
		for i := range s.Planes {
			s.Planes[i] = uint64(le.Uint32(b[4+4*i:]))
		}
		b = b[16:]
	}
	field := func(i int) uint32 { return le.Uint32(b[4*i:]) }
	s.Left = int32(field(0))
	s.Top = int32(field(1))
	s.Right = int32(field(2))
	s.Bottom = int32(field(3))
	s.Stride = int32(field(4))
	s.Width = int32(field(5))
	s.Height = int32(field(6))
	s.BlendFunc = field(7)
	s.GlobalAlpha = int32(field(8))
	s.ClrColor = field(9)
	s.Rot = field(10)
	return s
}

func (a *Accelerator) planes(s Surface) ([][]byte, error) {
	sizes, err := planeSizes(s)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(sizes))
	for i, n := range sizes {
		out[i], err = a.mem.Device(s.Planes[i], n)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Accelerator) apply(op Op) error {
	switch op.Kind {
	case "clear":
		return a.applyClear(op.Dst)
	case "blit":
		return a.applyBlit(op)
	}
	return fmt.Errorf("g2dtest: unknown op %q", op.Kind)
}

func (a *Accelerator) applyClear(dst Surface) error {
	if !isRGB(dst.Format) {
		return fmt.Errorf("g2dtest: clear of format %d", dst.Format)
	}
	planes, err := a.planes(dst)
	if err != nil {
		return err
	}
	rect := dst.Rect()
	c := color.NRGBA{
		R: uint8(dst.ClrColor),
		G: uint8(dst.ClrColor >> 8),
		B: uint8(dst.ClrColor >> 16),
		A: uint8(dst.ClrColor >> 24),
	}
	fill := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(fill, fill.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
	writeRGB(dst.Format, planes[0], int(dst.Stride), rect, fill)
	return nil
}

func (a *Accelerator) applyBlit(op Op) error {
	src, dst := op.Src, op.Dst
	if !isRGB(dst.Format) {
		return fmt.Errorf("g2dtest: blit to format %d", dst.Format)
	}
	srcPlanes, err := a.planes(src)
	if err != nil {
		return err
	}
	dstPlanes, err := a.planes(dst)
	if err != nil {
		return err
	}

	var img *image.NRGBA
	if isRGB(src.Format) {
		img = readRGB(src.Format, srcPlanes[0], int(src.Stride), src.Rect())
	} else {
		img, err = readYUV(src.Format, srcPlanes, int(src.Stride), src.Rect())
		if err != nil {
			return err
		}
	}
	img = rotate(img, dst.Rot)

	rect := dst.Rect()
	scaled := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	if img.Bounds().Size() == scaled.Bounds().Size() {
		xdraw.Copy(scaled, image.Point{}, img, img.Bounds(), xdraw.Src, nil)
	} else {
		xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}

	if !op.Blend {
		writeRGB(dst.Format, dstPlanes[0], int(dst.Stride), rect, scaled)
		return nil
	}

	out := readRGB(dst.Format, dstPlanes[0], int(dst.Stride), rect)
	var mask image.Image
	if op.Alpha {
		mask = image.NewUniform(color.Alpha{A: uint8(src.GlobalAlpha)})
	}
	xdraw.DrawMask(out, out.Bounds(), scaled, image.Point{}, mask, image.Point{}, xdraw.Over)
	writeRGB(dst.Format, dstPlanes[0], int(dst.Stride), rect, out)
	return nil
}
