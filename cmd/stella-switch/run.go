package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stella/l2switch/pkg/node"
)

// shutdownTimeout bounds a graceful stop after a signal
const shutdownTimeout = 10 * time.Second

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the switch in the foreground",
		Long: `Run the switch in the foreground.

The switch will:
  1. Load the runtime config and the switch config
  2. Open the transport ports and start logging, metrics and capture
  3. Forward frames and run spanning tree until SIGINT or SIGTERM`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			return runSwitch(cmd.Context(), cfg)
		},
	}
}

func runSwitch(ctx context.Context, cfg *node.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := node.NewLoggerFromConfig(cfg.Switch.Name, cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	n, err := node.NewNode(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("failed to start switch: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	return n.ShutdownWithTimeout(shutdownTimeout)
}
