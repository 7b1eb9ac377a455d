package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/g2d"
	"github.com/gogpu/g2d/dmabuf"
)

// accelerator is the part of *g2d.Device the probe drives.
type accelerator interface {
	Clear(dst *g2d.Surface, c color.Color, region image.Rectangle) error
	Finish() error
}

// probeResult is the outcome of one coherency probe.
type probeResult struct {
	Heap     dmabuf.HeapType
	Width    int
	Height   int
	Bytes    int
	Attached bool

	// Stale counts pixels still holding the CPU-written sentinel after
	// the accelerator filled the buffer.
	Stale int

	// Residue counts pixels of the first fill left after the second.
	Residue int

	// Unstable is set when two consecutive reads differ.
	Unstable bool
}

// OK reports whether the CPU saw exactly what the accelerator wrote.
func (r probeResult) OK() bool {
	return r.Stale == 0 && r.Residue == 0 && !r.Unstable
}

var (
	probeSentinel = []byte{0xAA, 0x55, 0xAA, 0x55}
	probeFirst    = color.NRGBA{R: 255, A: 255}
	probeSecond   = color.NRGBA{B: 255, A: 255}
)

func newProbeCmd() *cobra.Command {
	var (
		heapName string
		size     string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that CPU reads see accelerator writes on a DMA heap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("heap") {
				cfg.Heap = heapName
			}
			heap, err := cfg.HeapType()
			if err != nil {
				return err
			}
			w, h, err := parseSize(size)
			if err != nil {
				return err
			}

			alloc := dmabuf.NewAllocator(cfg.AllocatorOptions()...)
			if !alloc.Available(heap) {
				return fmt.Errorf("%s heap is not available on this system", heap)
			}
			dev, err := g2d.Open(cfg.Library, cfg.DeviceOptions()...)
			if err != nil {
				return err
			}
			defer dev.Close()

			res, err := runProbe(dev, alloc, heap, w, h)
			if err != nil {
				return err
			}
			writeProbe(cmd.OutOrStdout(), termenv.NewOutput(cmd.OutOrStdout()), res)
			if !res.OK() {
				return fmt.Errorf("coherency probe failed on %s heap", heap)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&heapName, "heap", "", "heap to probe: cached or uncached (default from config)")
	cmd.Flags().StringVar(&size, "size", "64x64", "RGBA8888 surface size")
	return cmd
}

// runProbe fills a fresh buffer with a CPU sentinel, has the accelerator
// clear it twice with different colors and checks what the CPU reads back
// after each Finish.
func runProbe(dev accelerator, alloc *dmabuf.Allocator, heap dmabuf.HeapType, w, h int) (res probeResult, err error) {
	res = probeResult{Heap: heap, Width: w, Height: h}

	buf, err := alloc.Allocate(heap, g2d.FormatRGBA8888.BufferSize(w, h))
	if err != nil {
		return res, err
	}
	defer func() {
		err = multierr.Append(err, buf.Release())
	}()
	res.Bytes = buf.Len()
	res.Attached = buf.Attached()

	dst, err := g2d.NewSurface(buf, w, h, g2d.FormatRGBA8888)
	if err != nil {
		return res, err
	}
	if err := buf.Fill(probeSentinel); err != nil {
		return res, err
	}

	first, err := fillAndRead(dev, dst, buf, probeFirst)
	if err != nil {
		return res, err
	}
	res.Stale = countPixels(first, probeSentinel)

	second, err := fillAndRead(dev, dst, buf, probeSecond)
	if err != nil {
		return res, err
	}
	res.Residue = countPixels(second, rgba(probeFirst))

	again, err := buf.ReadAll()
	if err != nil {
		return res, err
	}
	res.Unstable = !bytes.Equal(second, again)
	return res, nil
}

func fillAndRead(dev accelerator, dst *g2d.Surface, buf *dmabuf.Buffer, c color.NRGBA) ([]byte, error) {
	if err := dev.Clear(dst, c, image.Rectangle{}); err != nil {
		return nil, err
	}
	if err := dev.Finish(); err != nil {
		return nil, err
	}
	return buf.ReadAll()
}

func rgba(c color.NRGBA) []byte {
	return []byte{c.R, c.G, c.B, c.A}
}

// countPixels counts the 4-byte pixels of data equal to px.
func countPixels(data, px []byte) int {
	n := 0
	for i := 0; i+4 <= len(data); i += 4 {
		if bytes.Equal(data[i:i+4], px) {
			n++
		}
	}
	return n
}

func writeProbe(w io.Writer, out *termenv.Output, res probeResult) {
	p := message.NewPrinter(language.English)
	pixels := res.Width * res.Height

	table := newTable(w, "CHECK", "RESULT")
	table.AppendBulk([][]string{
		{"heap", res.Heap.String()},
		{"buffer", p.Sprintf("%d bytes (%dx%d)", res.Bytes, res.Width, res.Height)},
		{"device attachment", fmt.Sprint(res.Attached)},
		{"stale pixels", p.Sprintf("%d of %d", res.Stale, pixels)},
		{"residue pixels", p.Sprintf("%d of %d", res.Residue, pixels)},
		{"repeat read stable", fmt.Sprint(!res.Unstable)},
	})
	table.Render()

	verdict := out.String("PASS").Foreground(termenv.ANSIGreen).Bold()
	if !res.OK() {
		verdict = out.String("FAIL").Foreground(termenv.ANSIRed).Bold()
	}
	fmt.Fprintf(w, "\ncoherency: %s\n", verdict)
}
