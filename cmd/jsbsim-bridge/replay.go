package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jsbsim-bridge/internal/config"
	"jsbsim-bridge/internal/logging"
	"jsbsim-bridge/internal/record"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded state log",
	Long:  "replay feeds state rows from a JSONL log back into GreptimeDB or STDOUT, keeping the recorded spacing scaled by --speed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		logger := logging.New("info")
		cfg := &config.BridgeConfig{}
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return err
		}
		writer, _, cleanup, err := newWriters(cfg, writerOptions{PrintOnly: replayPrintOnly}, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		n, err := record.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		logger.Info("[Replay] done", "rows", n)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to state log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print state to STDOUT instead of writing to GreptimeDB")
	replayCmd.MarkFlagRequired("input")
}
