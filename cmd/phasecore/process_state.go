package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dnnyngyen/phasecore/internal/formatter"
	"github.com/dnnyngyen/phasecore/internal/types"
)

var (
	messageFile    string
	expectRevision int64
)

var processStateCmd = &cobra.Command{
	Use:   "process-state",
	Short: "Advance one session by one phase transition",
	Long: `process-state reads a Message JSON document from stdin (or --file)
and prints the resulting Response in the --output format (table, json or
yaml), advancing the named session through its next phase transition.`,
	RunE: runProcessState,
}

func init() {
	processStateCmd.Flags().StringVar(&messageFile, "file", "", "Read the Message document from this file instead of stdin")
	processStateCmd.Flags().Int64Var(&expectRevision, "expect-revision", 0, "Fail with stale_revision unless the session is at this revision")
	rootCmd.AddCommand(processStateCmd)
}

func runProcessState(cmd *cobra.Command, args []string) error {
	data, err := readMessageInput()
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	if expectRevision != 0 {
		if msg.Payload == nil {
			msg.Payload = types.Payload{}
		}
		msg.Payload["expect_revision"] = expectRevision
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg)
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}

	resp, errResp, err := orch.ProcessState(context.Background(), msg)
	if err != nil {
		return fmt.Errorf("process state: %w", err)
	}

	if resp != nil {
		if werr := formatter.WriteResponse(cmd.OutOrStdout(), resp, output); werr != nil {
			return fmt.Errorf("write response: %w", werr)
		}
	}

	if errResp != nil {
		if werr := formatter.WriteErrorResponse(cmd.ErrOrStderr(), errResp, output); werr != nil {
			return fmt.Errorf("write error response: %w", werr)
		}
		if resp == nil {
			os.Exit(1)
		}
	}

	return nil
}

func readMessageInput() ([]byte, error) {
	if messageFile != "" {
		return os.ReadFile(messageFile)
	}
	return io.ReadAll(os.Stdin)
}
