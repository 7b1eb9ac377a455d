//go:build darwin || linux

package native

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/multierr"
)

// maxVersionLen bounds the scan for the NUL terminator of VersionSymbol.
const maxVersionLen = 256

// Open loads the shared library at path and resolves every required
// symbol. A library missing any of them is unloaded again and reported
// with a *SymbolMissingError; no partially resolved Library escapes.
func Open(path string) (*Library, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrLibraryNotFound)
	}

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLibraryNotFound, path, err)
	}

	lib, err := resolve(path, handle)
	if err != nil {
		if closeErr := purego.Dlclose(handle); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("native: dlclose %s: %w", path, closeErr))
		}
		return nil, err
	}
	lib.release = func() error { return purego.Dlclose(handle) }
	return lib, nil
}

func resolve(path string, handle uintptr) (*Library, error) {
	addrs := make(map[string]uintptr, len(RequiredSymbols))
	for _, name := range RequiredSymbols {
		addr, err := purego.Dlsym(handle, name)
		if err != nil || addr == 0 {
			return nil, &SymbolMissingError{Name: name}
		}
		addrs[name] = addr
	}

	versionAddr, err := purego.Dlsym(handle, VersionSymbol)
	if err != nil || versionAddr == 0 {
		return nil, &SymbolMissingError{Name: VersionSymbol}
	}

	lib := &Library{
		path:    path,
		version: cString(versionAddr, maxVersionLen),
	}
	f := &lib.funcs
	purego.RegisterFunc(&f.Open, addrs[SymOpen])
	purego.RegisterFunc(&f.Close, addrs[SymClose])
	purego.RegisterFunc(&f.Clear, addrs[SymClear])
	purego.RegisterFunc(&f.Blit, addrs[SymBlit])
	purego.RegisterFunc(&f.Enable, addrs[SymEnable])
	purego.RegisterFunc(&f.Disable, addrs[SymDisable])
	purego.RegisterFunc(&f.Flush, addrs[SymFlush])
	purego.RegisterFunc(&f.Finish, addrs[SymFinish])
	return lib, nil
}

// cString copies a NUL-terminated string out of library memory, reading
// at most limit bytes.
func cString(addr uintptr, limit int) string {
	p := unsafe.Pointer(addr) //nolint:govet // address comes from dlsym
	n := 0
	for n < limit && *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
