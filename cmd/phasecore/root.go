package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	output     string
	cfgFile    string
	baseDirOpt string
)

// rootCmd is the base command when phasecore is called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "phasecore",
	Short: "Deterministic eight-phase agent orchestration core",
	Long: `phasecore is a transport-agnostic harness around a single operation,
ProcessState, that advances a session through the INIT -> QUERY -> ENHANCE ->
KNOWLEDGE -> PLAN -> EXECUTE -> VERIFY -> DONE phase machine.

Commands:
  process-state  Advance one session by one phase transition
  config show    Show resolved configuration and which layer won
  session sweep  Archive sessions inactive past the threshold
  version        Show version information`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose structured logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file used in place of the project config (default: .phasecore/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseDirOpt, "base-dir", "", "Session store directory (default: .phasecore/sessions)")
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	if err := os.Setenv("PHASECORE_CONFIG", path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not set PHASECORE_CONFIG: %v\n", err)
	}
}
