package main

import (
	"io"
	"log/slog"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gogpu/g2d"
	"github.com/gogpu/g2d/config"
)

func newCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "g2dinfo",
		Short: "Inspect the i.MX G2D accelerator",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringP("library", "l", "", "G2D shared library, overrides the config")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newVersionCmd(),
		newFormatsCmd(),
		newProbeCmd(),
	)
	return rootCmd
}

// loadConfig reads the config named by --config, or the default one, and
// applies --library. It also installs a logger at the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if lib, _ := cmd.Flags().GetString("library"); lib != "" {
		cfg.Library = lib
	}

	level, _ := cfg.Level()
	g2d.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}
