package g2d

// Option configures a Device during Open.
//
// Example:
//
//	// Default: accelerator colorspace left as the driver set it
//	dev, err := g2d.Open("libg2d.so.2")
//
//	// Video pipeline decoding HD sources
//	dev, err := g2d.Open("libg2d.so.2", g2d.WithColorspace(g2d.ColorspaceBT709))
type Option func(*deviceOptions)

// deviceOptions holds optional configuration for Open.
type deviceOptions struct {
	colorspace Colorspace
}

// defaultOptions returns the default device options.
func defaultOptions() deviceOptions {
	return deviceOptions{
		colorspace: ColorspaceUnspecified,
	}
}

// WithColorspace selects the YUV matrix right after the accelerator
// context is created. A failure to apply it fails Open.
func WithColorspace(cs Colorspace) Option {
	return func(o *deviceOptions) {
		o.colorspace = cs
	}
}
