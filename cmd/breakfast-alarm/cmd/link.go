package cmd

import (
	"context"

	"github.com/spf13/cobra"

	client "github.com/mgarridoch/breakfast-alarm/internal/service/client"
)

func newConnectCmd() *cobra.Command {
	var wait, retry bool

	c := &cobra.Command{
		Use:   "connect [target]",
		Short: "Connect the daemon to the breakfast machine.",
		Long: `Starts a connect attempt to target, or to the configured or last used
target when none is given. Without --wait the command returns as soon as the
attempt has started; use status or watch to follow it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) > 0 {
				target = args[0]
			}

			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Connect(ctx, target, wait, retry)
			})
		},
	}

	c.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the attempt settles")
	c.Flags().BoolVarP(&retry, "retry", "r", false, "keep trying until connected")

	return c
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Drop the link to the breakfast machine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Disconnect(ctx)
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>",
		Short: "Send a command now.",
		Long: `Sends one command line, e.g. "START 5", over the link. The line
terminator is added by the daemon. Fails when the link is not connected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Send(ctx, args[0])
			})
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Send the stop command and cancel the armed alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Stop(ctx)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the link state and the armed alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Status(ctx)
			})
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print status events as they happen.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Watch(ctx)
			})
		},
	}
}
