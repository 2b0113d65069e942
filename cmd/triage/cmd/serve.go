package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logtriage/internal/collector"
	"logtriage/internal/logging"
	"logtriage/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr            string
	Project         string
	RulesFile       string
	RequestTimeout  time.Duration
	GracefulTimeout time.Duration
}

// DefaultServeOptions returns the default serve options.
func DefaultServeOptions() *ServeOptions {
	return &ServeOptions{
		Addr:            ":8080",
		RequestTimeout:  60 * time.Second,
		GracefulTimeout: 10 * time.Second,
	}
}

// RunServeCommand starts the HTTP service and blocks until shutdown.
func RunServeCommand(opts *ServeOptions) error {
	if opts == nil {
		opts = DefaultServeOptions()
	}

	logger, err := setupLogging()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync() }()

	classifier, err := loadClassifier(opts.RulesFile)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:            opts.Addr,
		ProjectID:       opts.Project,
		RequestTimeout:  opts.RequestTimeout,
		GracefulTimeout: opts.GracefulTimeout,
		Classifier:      classifier,
		Logger:          logger,
		Sources: func(ctx context.Context, projectID string) (collector.Source, error) {
			return newSource(ctx, projectID, logger)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping", zap.Duration("graceful_timeout", srv.GracefulTimeout()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), srv.GracefulTimeout())
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	return <-errCh
}

// setupServeCmd configures the serve command.
func setupServeCmd() *cobra.Command {
	opts := DefaultServeOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run collect and triage as an HTTP service",
		Long: `Serve exposes the collect and triage operations over HTTP:
  POST /v1/collect  collect entries for an incident or lookback window
  POST /v1/triage   classify and summarize the window's errors
  GET  /healthz     liveness probe
  GET  /metrics     Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServeCommand(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "default GCP project id for requests that name none")
	cmd.Flags().StringVar(&opts.RulesFile, "rules", "", "YAML file overriding the built-in classification rules")
	cmd.Flags().DurationVar(&opts.RequestTimeout, "request-timeout", 60*time.Second, "per-request timeout")
	cmd.Flags().DurationVar(&opts.GracefulTimeout, "graceful-timeout", 10*time.Second, "shutdown drain timeout")

	return cmd
}
