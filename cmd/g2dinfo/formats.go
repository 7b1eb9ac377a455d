package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/g2d"
)

func newFormatsCmd() *cobra.Command {
	var size string
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List pixel formats with their frame size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parseSize(size)
			if err != nil {
				return err
			}
			writeFormats(cmd.OutOrStdout(), w, h)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "1920x1080", "frame size used for the byte column")
	return cmd
}

func writeFormats(out io.Writer, w, h int) {
	p := message.NewPrinter(language.English)
	table := newTable(out, "FORMAT", "VALUE", "BPP", "PLANES", "KIND", "BYTES")
	for _, f := range g2d.Formats() {
		kind := "rgb"
		if f.IsYUV() {
			kind = "yuv"
		}
		table.Append([]string{
			f.String(),
			strconv.Itoa(int(f)),
			strconv.Itoa(f.BitsPerPixel()),
			strconv.Itoa(f.Planes()),
			kind,
			p.Sprintf("%d", f.BufferSize(w, h)),
		})
	}
	table.Render()
}

func parseSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	return w, h, nil
}
