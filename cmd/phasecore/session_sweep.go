package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnnyngyen/phasecore/internal/session"
)

var sweepAfter time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage session storage",
}

var sessionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Archive sessions inactive past the threshold",
	Long: `sweep explicitly runs the archival pass that ProcessState otherwise
only triggers opportunistically, moving every live session whose last
activity is older than --after into the archive set.`,
	RunE: runSessionSweep,
}

func init() {
	sessionSweepCmd.Flags().DurationVar(&sweepAfter, "after", session.DefaultArchiveAfter, "Archive sessions inactive longer than this")
	sessionCmd.AddCommand(sessionSweepCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.New(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	moved, err := store.Archive(time.Now().Add(-sweepAfter))
	if err != nil {
		return fmt.Errorf("archive sessions: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archived %d session(s)\n", len(moved))
	for _, id := range moved {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
	return nil
}
