// Package config loads g2d settings from a TOML file and the environment.
//
// A minimal file:
//
//	library = "/usr/lib/libg2d.so.2"
//	heap = "cached"
//	colorspace = "bt709"
//
//	[devices]
//	cached_heap = "/dev/dma_heap/linux,cma"
//	import = "/dev/dri/renderD128"
//
// G2D_LIBRARY and G2D_HEAP override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/g2d"
	"github.com/gogpu/g2d/dmabuf"
)

// DefaultPath is read by LoadDefault when it exists.
const DefaultPath = "~/.config/g2d/g2d.toml"

// DefaultLibrary is the soname used when nothing else is configured.
const DefaultLibrary = "libg2d.so.2"

// Environment variables that override the file.
const (
	EnvLibrary = "G2D_LIBRARY"
	EnvHeap    = "G2D_HEAP"
)

// Config holds every setting of a g2d program.
type Config struct {
	// Library is the path or soname of the G2D shared library.
	Library string `toml:"library"`

	// Heap is "cached" or "uncached".
	Heap string `toml:"heap"`

	// Colorspace is applied when the device is opened, e.g. "bt709".
	Colorspace string `toml:"colorspace"`

	// LogLevel is a slog level name: debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Devices Devices `toml:"devices"`
}

// Devices overrides the kernel device nodes.
type Devices struct {
	UncachedHeap string `toml:"uncached_heap"`
	CachedHeap   string `toml:"cached_heap"`
	Import       string `toml:"import"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Library:  DefaultLibrary,
		Heap:     dmabuf.HeapUncached.String(),
		LogLevel: "warn",
		Devices: Devices{
			UncachedHeap: dmabuf.DefaultUncachedHeapPath,
			CachedHeap:   dmabuf.DefaultCachedHeapPath,
			Import:       dmabuf.DefaultImportDevice,
		},
	}
}

// Load reads the TOML file at path over the defaults, applies the
// environment and validates the result. Unknown keys are an error.
func Load(path string) (*Config, error) {
	c := Default()
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("config: %s: %w", p, err)
	}
	return c.finish(os.LookupEnv)
}

// LoadDefault loads DefaultPath if it exists and the defaults otherwise.
func LoadDefault() (*Config, error) {
	c, err := Load(DefaultPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default().finish(os.LookupEnv)
	}
	return c, err
}

// Parse decodes TOML data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := c.decode(data); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c.finish(func(string) (string, bool) { return "", false })
}

func (c *Config) decode(data []byte) error {
	return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(c)
}

func (c *Config) finish(lookup func(string) (string, bool)) (*Config, error) {
	c.ApplyEnv(lookup)
	if err := c.expand(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from G2D_LIBRARY and G2D_HEAP as returned by
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLibrary); ok && v != "" {
		c.Library = v
	}
	if v, ok := lookup(EnvHeap); ok && v != "" {
		c.Heap = v
	}
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.Library, &c.Devices.UncachedHeap, &c.Devices.CachedHeap, &c.Devices.Import} {
		v, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		*p = v
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Library == "" {
		return errors.New("config: library must not be empty")
	}
	if _, err := c.HeapType(); err != nil {
		return fmt.Errorf("config: heap: %w", err)
	}
	if _, err := g2d.ParseColorspace(c.Colorspace); err != nil {
		return fmt.Errorf("config: colorspace: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}

// HeapType returns the configured heap.
func (c *Config) HeapType() (dmabuf.HeapType, error) {
	return dmabuf.ParseHeapType(c.Heap)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// AllocatorOptions returns the dmabuf options for the configured device
// nodes. Empty fields keep the package defaults.
func (c *Config) AllocatorOptions() []dmabuf.Option {
	var opts []dmabuf.Option
	if c.Devices.UncachedHeap != "" {
		opts = append(opts, dmabuf.WithHeapPath(dmabuf.HeapUncached, c.Devices.UncachedHeap))
	}
	if c.Devices.CachedHeap != "" {
		opts = append(opts, dmabuf.WithHeapPath(dmabuf.HeapCached, c.Devices.CachedHeap))
	}
	if c.Devices.Import != "" {
		opts = append(opts, dmabuf.WithImportDevice(c.Devices.Import))
	}
	return opts
}

// DeviceOptions returns the g2d options for Open.
func (c *Config) DeviceOptions() []g2d.Option {
	cs, err := g2d.ParseColorspace(c.Colorspace)
	if err != nil || cs == g2d.ColorspaceUnspecified {
		return nil
	}
	return []g2d.Option{g2d.WithColorspace(cs)}
}
