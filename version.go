package g2d

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/multierr"

	"github.com/gogpu/g2d/internal/native"
)

// versionMarker prefixes the version string exported by the library.
const versionMarker = "$VERSION$"

// AbiEpoch identifies which g2d_surface layout a library expects.
type AbiEpoch uint8

const (
	// EpochLegacy libraries (before 6.4.11) take 32-bit plane addresses.
	EpochLegacy AbiEpoch = iota

	// EpochModern libraries (6.4.11 and later) take 64-bit plane addresses.
	EpochModern
)

// String returns the string representation of AbiEpoch.
func (e AbiEpoch) String() string {
	switch e {
	case EpochLegacy:
		return "legacy"
	case EpochModern:
		return "modern"
	default:
		return fmt.Sprintf("AbiEpoch(%d)", int(e))
	}
}

// modernSince is the first release with 64-bit plane fields.
var modernSince = semver.New(6, 4, 11, "", "")

// Version is a parsed G2D library version.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32

	// Build and Hash are the optional ":<build>:<hash>" tail. They do not
	// take part in comparisons.
	Build string
	Hash  string
}

// String formats the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), "", "")
}

// Compare returns -1, 0 or 1 comparing (major, minor, patch) only.
func (v Version) Compare(o Version) int {
	return v.semver().Compare(o.semver())
}

// Epoch returns the ABI epoch of the version: Modern from 6.4.11 on,
// Legacy before.
func (v Version) Epoch() AbiEpoch {
	if v.semver().LessThan(modernSince) {
		return EpochLegacy
	}
	return EpochModern
}

// ParseVersion parses a tagged version string such as
// "$VERSION$6.4.11:398061:d3dac3f35d$". The leading marker and the
// closing '$' are required, the build/hash tail is optional and exactly
// three decimal components must be present.
func ParseVersion(raw string) (Version, error) {
	fail := func(reason string, err error) (Version, error) {
		return Version{}, &VersionParseError{Raw: raw, Reason: reason, Err: err}
	}

	s, ok := strings.CutPrefix(raw, versionMarker)
	if !ok {
		return fail(fmt.Sprintf("missing %q marker", versionMarker), nil)
	}
	i := strings.IndexByte(s, '$')
	if i < 0 {
		return fail("missing closing '$'", nil)
	}
	s = s[:i]
	if s == "" {
		return fail("empty version", nil)
	}

	numbers, tail, hasTail := strings.Cut(s, ":")
	var v Version
	if hasTail {
		v.Build, v.Hash, _ = strings.Cut(tail, ":")
	}

	parts := strings.Split(numbers, ".")
	if len(parts) != 3 {
		return fail(fmt.Sprintf("want 3 components, got %d", len(parts)), nil)
	}
	dst := [3]*uint32{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return fail(fmt.Sprintf("component %q is not a decimal number", p), nil)
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return fail(fmt.Sprintf("component %q out of range", p), err)
		}
		*dst[i] = uint32(n)
	}
	return v, nil
}

// detect reads and parses the version exported by lib.
func detect(lib *native.Library) (Version, error) {
	raw, err := lib.VersionString()
	if err != nil {
		return Version{}, err
	}
	return ParseVersion(raw)
}

// Probe loads the library at path, reads its version and unloads it
// again without creating an accelerator context.
func Probe(path string) (Version, error) {
	lib, err := native.Open(path)
	if err != nil {
		return Version{}, err
	}
	v, err := detect(lib)
	if closeErr := lib.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("g2d: unload %s: %w", path, closeErr))
	}
	return v, err
}
