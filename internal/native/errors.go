package native

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryNotFound is returned when the shared library cannot be loaded.
	ErrLibraryNotFound = errors.New("native: library not found")

	// ErrClosed is returned when a closed library is used.
	ErrClosed = errors.New("native: library closed")

	// ErrUnsupportedPlatform is returned on platforms without a dynamic loader.
	ErrUnsupportedPlatform = errors.New("native: dynamic loading not supported on this platform")
)

// SymbolMissingError reports a required symbol the library does not export.
type SymbolMissingError struct {
	Name string
}

func (e *SymbolMissingError) Error() string {
	return fmt.Sprintf("native: missing symbol %q", e.Name)
}
