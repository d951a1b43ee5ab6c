package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jsbsim-bridge/internal/logging"
	"jsbsim-bridge/internal/peer"
	"jsbsim-bridge/internal/wire"
)

var (
	peerListen   string
	peerRate     float64
	peerLatency  time.Duration
	peerLogLevel string
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a JSBSim console emulator",
	Long:  "peer listens like the JSBSim TCP console and integrates a simple level-flight model, for testing without a simulator binary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(peerLogLevel)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := peer.Listen(peerListen, peer.Options{
			RateHz:  peerRate,
			Initial: wire.StateFrame{Lat: 37.6188, Lon: -122.375, Alt: 5000, U: 200},
			Latency: peerLatency,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		err = srv.Serve(ctx)
		logger.Info("[Peer] stopped", "connections", srv.Accepted(), "steps", srv.Steps())
		return err
	},
}

func init() {
	peerCmd.Flags().StringVar(&peerListen, "listen", ":5556", "Address to listen on")
	peerCmd.Flags().Float64Var(&peerRate, "rate", 120, "Simulated integration rate in Hz")
	peerCmd.Flags().DurationVar(&peerLatency, "latency", 0, "Artificial delay before each iterate reply")
	peerCmd.Flags().StringVar(&peerLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
