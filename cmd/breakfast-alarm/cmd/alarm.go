package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	client "github.com/mgarridoch/breakfast-alarm/internal/service/client"
)

func newScheduleCmd() *cobra.Command {
	var waitMinutes int

	c := &cobra.Command{
		Use:   "schedule <HH:MM>",
		Short: "Arm the alarm for the next occurrence of a time.",
		Long: `Arms the alarm for the next HH:MM on the daemon's clock. A time that
has already passed today fires tomorrow. The start command carries --wait,
the minutes the machine waits before it starts. A new schedule replaces the
armed alarm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Schedule(ctx, args[0], waitMinutes)
			})
		},
	}

	c.Flags().IntVarP(&waitMinutes, "wait", "w", 0, "minutes the machine waits before starting")

	return c
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Disarm the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Cancel(ctx)
			})
		},
	}
}

func newSnoozeCmd() *cobra.Command {
	var delay time.Duration

	c := &cobra.Command{
		Use:   "snooze",
		Short: "Fire the last alarm again later.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Snooze(ctx, delay)
			})
		},
	}

	c.Flags().DurationVarP(&delay, "for", "f", 0, "snooze delay (default from config)")

	return c
}

func newWakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "wake <payload>",
		Short:  "Deliver a wake payload as an external timer would.",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Wake(ctx, args[0])
			})
		},
	}
}
