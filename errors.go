package g2d

import (
	"errors"
	"fmt"

	"github.com/gogpu/g2d/internal/native"
)

// Errors returned by Open and Device methods. They are wrapped with
// context; match them with errors.Is.
var (
	// ErrLibraryNotFound is returned when the G2D shared library cannot be
	// loaded from the given path.
	ErrLibraryNotFound = native.ErrLibraryNotFound

	// ErrUnsupportedAbi is returned when a surface cannot be expressed in
	// the library's structure layout, e.g. a plane above 4 GiB on a
	// legacy library.
	ErrUnsupportedAbi = errors.New("g2d: surface not representable in library ABI")

	// ErrInvalidFormat is returned for formats the operation cannot use.
	ErrInvalidFormat = errors.New("g2d: invalid format")

	// ErrInvalidSurface is returned for surfaces with inconsistent geometry.
	ErrInvalidSurface = errors.New("g2d: invalid surface")

	// ErrClosed is returned when a closed Device is used.
	ErrClosed = errors.New("g2d: device closed")
)

// SymbolMissingError reports a required symbol the library does not
// export, including the version symbol.
type SymbolMissingError = native.SymbolMissingError

// VersionParseError reports a version string that does not have the
// "$VERSION$<major>.<minor>.<patch>[:<build>:<hash>]$" shape.
type VersionParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *VersionParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("g2d: parse version %q: %s: %v", e.Raw, e.Reason, e.Err)
	}
	return fmt.Sprintf("g2d: parse version %q: %s", e.Raw, e.Reason)
}

func (e *VersionParseError) Unwrap() error {
	return e.Err
}

// NativeCallError reports a non-zero status from a G2D entry point.
type NativeCallError struct {
	Op   string
	Code int32
}

func (e *NativeCallError) Error() string {
	return fmt.Sprintf("g2d: %s returned %d", e.Op, e.Code)
}

// check converts a native status code into an error.
func check(op string, code int32) error {
	if code == 0 {
		return nil
	}
	return &NativeCallError{Op: op, Code: code}
}
