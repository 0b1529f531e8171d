package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dnnyngyen/phasecore/internal/config"
	"github.com/dnnyngyen/phasecore/internal/formatter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect resolved configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration and which layer supplied each value",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	resolved := config.Resolve(output, baseDirOpt, verbose)

	tbl := formatter.NewTable(cmd.OutOrStdout(), "FIELD", "VALUE", "SOURCE")
	tbl.AddRow("output", resolved.Output.Value, string(resolved.Output.Source))
	tbl.AddRow("base_dir", resolved.BaseDir.Value, string(resolved.BaseDir.Source))
	tbl.AddRow("verbose", fmt.Sprintf("%t", resolved.Verbose.Value), string(resolved.Verbose.Source))
	return tbl.Render()
}
