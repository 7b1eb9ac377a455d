//go:build !darwin && !linux

package native

// Open always fails: the G2D library only exists on Linux targets and
// purego provides no loader elsewhere.
func Open(path string) (*Library, error) {
	return nil, ErrUnsupportedPlatform
}
