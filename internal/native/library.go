// Package native resolves the G2D entry points from a dynamically loaded
// shared library and owns the loaded module for its lifetime.
//
// Nothing here interprets the structures passed through the entry points;
// the layout of those is negotiated by the g2d package from the version
// string exposed by the library.
package native

import (
	"fmt"
	"unsafe"
)

// VersionSymbol is the data symbol holding the tagged version string,
// e.g. "$VERSION$6.4.11:398061:d3dac3f35d$".
const VersionSymbol = "_G2D_VERSION"

// Entry point names. The allowlist is fixed: a library missing any of
// them is rejected at open time.
const (
	SymOpen    = "g2d_open"
	SymClose   = "g2d_close"
	SymClear   = "g2d_clear"
	SymBlit    = "g2d_blit"
	SymEnable  = "g2d_enable"
	SymDisable = "g2d_disable"
	SymFlush   = "g2d_flush"
	SymFinish  = "g2d_finish"
)

// RequiredSymbols lists every function symbol Open resolves.
var RequiredSymbols = []string{
	SymOpen, SymClose, SymClear, SymBlit,
	SymEnable, SymDisable, SymFlush, SymFinish,
}

// Funcs is the table of G2D entry points. Every function returns the
// native status code; zero means success.
//
// Surface arguments point at a g2d_surface structure whose layout must
// match the library's ABI epoch byte for byte.
type Funcs struct {
	Open    func(handle *uintptr) int32
	Close   func(handle uintptr) int32
	Clear   func(handle uintptr, area unsafe.Pointer) int32
	Blit    func(handle uintptr, src, dst unsafe.Pointer) int32
	Enable  func(handle uintptr, capability int32) int32
	Disable func(handle uintptr, capability int32) int32
	Flush   func(handle uintptr) int32
	Finish  func(handle uintptr) int32
}

// missing reports the name of the first nil entry point, if any.
func (f *Funcs) missing() string {
	switch {
	case f.Open == nil:
		return SymOpen
	case f.Close == nil:
		return SymClose
	case f.Clear == nil:
		return SymClear
	case f.Blit == nil:
		return SymBlit
	case f.Enable == nil:
		return SymEnable
	case f.Disable == nil:
		return SymDisable
	case f.Flush == nil:
		return SymFlush
	case f.Finish == nil:
		return SymFinish
	}
	return ""
}

// Library is a loaded G2D module with all required symbols resolved.
//
// A Library is not safe for concurrent use. Close invalidates it together
// with every accelerator context created through its entry points.
type Library struct {
	path    string
	funcs   Funcs
	version string
	release func() error
	closed  bool
}

// New wraps an in-process entry point table. It is used by accelerator
// implementations that do not live in a shared object, most notably the
// test accelerator. An empty version string behaves like a library that
// does not export VersionSymbol.
func New(name string, funcs Funcs, version string) (*Library, error) {
	if name := funcs.missing(); name != "" {
		return nil, &SymbolMissingError{Name: name}
	}
	return &Library{
		path:    name,
		funcs:   funcs,
		version: version,
	}, nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Funcs returns the resolved entry points, or ErrClosed after Close.
func (l *Library) Funcs() (*Funcs, error) {
	if l.closed {
		return nil, ErrClosed
	}
	return &l.funcs, nil
}

// VersionString returns the raw tagged version string.
func (l *Library) VersionString() (string, error) {
	if l.closed {
		return "", ErrClosed
	}
	if l.version == "" {
		return "", &SymbolMissingError{Name: VersionSymbol}
	}
	return l.version, nil
}

// Closed reports whether Close has been called.
func (l *Library) Closed() bool {
	return l.closed
}

// Close unloads the module. Calling Close more than once is a no-op.
func (l *Library) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.funcs = Funcs{}
	if l.release == nil {
		return nil
	}
	if err := l.release(); err != nil {
		return fmt.Errorf("native: unload %s: %w", l.path, err)
	}
	return nil
}
