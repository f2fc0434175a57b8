package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mitchellh/go-ps"
	"google.golang.org/grpc"

	"github.com/mgarridoch/breakfast-alarm/internal/api/grpc/control"
	"github.com/mgarridoch/breakfast-alarm/internal/api/http/handler"
	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
)

// Options controls the breakfast-alarmd process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress overrides the control address from the config.
	ListenAddress string
	// HTTPAddress overrides the HTTP status address from the config.
	HTTPAddress string
	// StateFile overrides the armed-alarm file from the config.
	StateFile string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
	// LogLevelSet keeps a log level chosen on the command line over the config.
	LogLevelSet bool
}

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

// Run loads the config, builds the daemon and serves until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "breakfast-alarmd")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.ListenAddress != "" {
		settings.ControlAddress = opts.ListenAddress
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok && !opts.LogLevelSet {
		logger.SetLevel(level)
	}

	if !opts.AllowMultiple {
		if err = ensureSingleInstance(ps.Processes, procExecutable, currentExecutable()); err != nil {
			return err
		}
	}

	d, err := New(ctx, settings, Deps{})
	if err != nil {
		return fmt.Errorf("initialise daemon: %w", err)
	}

	defer func() {
		if closeErr := d.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Shutdown was not clean", "error", closeErr)
		}
	}()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ControlAddress, err)
	}

	var httpLis net.Listener

	if settings.HTTPAddress != "" {
		httpLis, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
		if err != nil {
			closeListeners(lis)

			return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
		}
	}

	if err = d.Start(ctx); err != nil {
		closeListeners(lis, httpLis)

		return err
	}

	logger.InfoKV(ctx, "Daemon listening",
		"control_address", settings.ControlAddress,
		"http_address", settings.HTTPAddress,
		"transport", settings.Transport.Kind,
		"target", settings.Transport.Target,
		"state_file", settings.StateFile)

	return d.Serve(ctx, lis, httpLis)
}

// closeListeners closes the listeners that were opened. Nil entries are
// skipped.
func closeListeners(listeners ...net.Listener) {
	for _, l := range listeners {
		if l != nil {
			_ = l.Close()
		}
	}
}

// Serve runs the control API on lis and, when httpLis is not nil, the HTTP
// status surface, until ctx is canceled.
func (d *Daemon) Serve(ctx context.Context, lis, httpLis net.Listener) error {
	grpcServer := grpc.NewServer()
	control.Register(grpcServer, control.NewServer(d))

	var httpServer *http.Server

	if httpLis != nil {
		httpServer = &http.Server{
			Handler:           handler.NewRouter(ctx, d.tracker, d.registry),
			ReadHeaderTimeout: shutdownTimeout,
		}

		go func() {
			if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "HTTP server failed", "error", err)
			}
		}()
	}

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down")

		// Watch streams only end when their subscription does.
		d.bus.CloseSubscriptions()

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			_ = httpServer.Shutdown(shutdownCtx)

			cancel()
		}

		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Daemon stopped")

	return nil
}
