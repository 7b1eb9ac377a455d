//go:build darwin || linux

package native

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestOpenNonexistentLibrary(t *testing.T) {
	_, err := Open("nonexistent_library.so")
	assert.ErrorIs(t, err, ErrLibraryNotFound)
}

func TestCString(t *testing.T) {
	buf := []byte("$VERSION$6.4.11:398061:d3dac3f35d$\x00trailing")
	got := cString(uintptr(unsafe.Pointer(&buf[0])), maxVersionLen)
	require.Equal(t, "$VERSION$6.4.11:398061:d3dac3f35d$", got)

	truncated := cString(uintptr(unsafe.Pointer(&buf[0])), 9)
	assert.Equal(t, "$VERSION$", truncated)
}
