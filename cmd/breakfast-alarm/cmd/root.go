package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	client "github.com/mgarridoch/breakfast-alarm/internal/service/client"
	"github.com/mgarridoch/breakfast-alarm/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the daemon control address.
	serverAddress string
	// logLevel sets the CLI log level.
	logLevel string

	// rootCmd is the base command; every action is a subcommand.
	rootCmd = &cobra.Command{
		Use:   "breakfast-alarm",
		Short: "Control the breakfast alarm daemon.",
		Long: `Sends commands to the breakfast machine through breakfast-alarmd.

Connect the link, send a command now, or schedule the start command for a
wall-clock time. The daemon must be running for every subcommand except
scan and version.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the breakfast-alarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withSession runs fn with a daemon session, canceled on SIGINT or SIGTERM.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *client.Session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ctx = logger.WithName(ctx, "breakfast-alarm")

	s, err := client.Open(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = s.Close()
	}()

	return fn(ctx, s)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "address", "a", "", "daemon control address (overrides config)")
	flags.StringVarP(&logLevel, "log-level", "l", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newConnectCmd(),
		newDisconnectCmd(),
		newSendCmd(),
		newStopCmd(),
		newScheduleCmd(),
		newCancelCmd(),
		newSnoozeCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newWakeCmd(),
		newScanCmd(),
	)
}
