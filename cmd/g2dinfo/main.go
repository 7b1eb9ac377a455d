// Command g2dinfo inspects the G2D library and DMA heaps of an i.MX board.
//
//	g2dinfo version            # library version, ABI epoch and layout
//	g2dinfo formats            # supported pixel formats
//	g2dinfo probe --heap cached
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
