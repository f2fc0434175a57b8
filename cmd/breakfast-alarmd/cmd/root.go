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
	"github.com/mgarridoch/breakfast-alarm/internal/service/daemon"
	"github.com/mgarridoch/breakfast-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where the armed alarm is persisted.
	stateFile string
	// httpAddress overrides the HTTP status address.
	httpAddress string
	// logLevel overrides the configured log level.
	logLevel string
	// allowMultiple skips the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the daemon.
	rootCmd = &cobra.Command{
		Use:   "breakfast-alarmd [listen-address]",
		Short: "Run the breakfast alarm daemon.",
		Long: `Starts the daemon that owns the link to the breakfast machine.

The daemon keeps the Bluetooth serial (or TCP/serial) link, sends commands on
request and fires the scheduled alarm at its wall-clock time. The armed alarm
is persisted and restored after a restart.

The control API listens on the configured control_addr unless a listen
address is given as argument (e.g. 127.0.0.1:50515).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
				StateFile:     stateFile,
				AllowMultiple: allowMultiple,
				LogLevelSet:   logLevel != "",
			})
		},
	}
)

// Execute runs the breakfast-alarmd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&stateFile, "state-file", "s", "", "path to persist the armed alarm (overrides config)")
	flags.StringVar(&httpAddress, "http-addr", "", "HTTP status address (overrides config)")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error (overrides config)")
	flags.BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")

	if err := flags.MarkHidden("allow-multiple"); err != nil {
		panic(err)
	}
}
