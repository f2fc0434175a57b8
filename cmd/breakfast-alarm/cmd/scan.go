package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	client "github.com/mgarridoch/breakfast-alarm/internal/service/client"
)

func newScanCmd() *cobra.Command {
	var (
		adapter string
		timeout time.Duration
	)

	c := &cobra.Command{
		Use:   "scan",
		Short: "List Bluetooth serial port devices.",
		Long: `Discovers devices offering the serial port profile through BlueZ.
Runs locally and does not need the daemon. Linux only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return client.Scan(ctx, adapter, cmd.OutOrStdout())
		},
	}

	c.Flags().StringVar(&adapter, "adapter", config.DefaultAdapter, "BlueZ adapter")
	c.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "discovery time")

	return c
}
