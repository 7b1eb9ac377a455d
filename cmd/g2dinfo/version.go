package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/g2d"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the library version and the structure layout it needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			v, err := g2d.Probe(cfg.Library)
			if err != nil {
				return err
			}
			layout := g2d.LayoutFor(v.Epoch())

			table := newTable(cmd.OutOrStdout(), "PROPERTY", "VALUE")
			table.AppendBulk([][]string{
				{"library", cfg.Library},
				{"version", v.String()},
				{"build", v.Build},
				{"hash", v.Hash},
				{"abi", layout.Epoch.String()},
				{"plane address", fmt.Sprintf("%d-bit", layout.PlaneBits)},
				{"g2d_surface", fmt.Sprintf("%d bytes", layout.SurfaceSize)},
			})
			table.Render()
			return nil
		},
	}
}
