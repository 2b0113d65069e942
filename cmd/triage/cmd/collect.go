package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logtriage/internal/logging"
	"logtriage/internal/report"
	"logtriage/internal/triage"
	"logtriage/internal/window"
)

// CollectOptions holds options for the collect command.
type CollectOptions struct {
	Window     WindowOptions
	ErrorsOnly bool
	Stats      bool
	NoMetadata bool
	Output     string
	Timeout    time.Duration
}

// DefaultCollectOptions returns the default collect options.
func DefaultCollectOptions() *CollectOptions {
	return &CollectOptions{
		Timeout: 60 * time.Second,
	}
}

// CollectRunner handles the collect workflow.
type CollectRunner struct {
	options *CollectOptions
	logger  *zap.Logger
}

// NewCollectRunner creates a new collect runner with the given options.
func NewCollectRunner(opts *CollectOptions) (*CollectRunner, error) {
	if opts == nil {
		opts = DefaultCollectOptions()
	}

	logger, err := setupLogging()
	if err != nil {
		return nil, err
	}

	return &CollectRunner{
		options: opts,
		logger:  logger.With(zap.String("command", "collect")),
	}, nil
}

// Run executes the collect workflow.
func (r *CollectRunner) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if r.options.Timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, r.options.Timeout)
		defer tcancel()
	}

	floor := window.CollectFloor
	if r.options.ErrorsOnly {
		floor = window.CollectErrorsFloor
	}
	inc, win, err := r.options.Window.resolve(floor)
	if err != nil {
		return err
	}

	projectID := r.options.Window.projectID(inc)
	if projectID == "" {
		return fmt.Errorf("no project id: pass --project or an incident with one")
	}

	source, err := newSource(ctx, projectID, r.logger)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	pipeline := triage.New(triage.Config{
		Source:    source,
		ProjectID: projectID,
		Logger:    r.logger,
	})

	rep, collectErr := pipeline.Collect(ctx, win, inc, triage.CollectOptions{
		Stats:      r.options.Stats,
		NoMetadata: r.options.NoMetadata,
	})

	if err := r.write(rep); err != nil {
		return err
	}
	return collectErr
}

// write renders the report to stdout or the output file.
func (r *CollectRunner) write(rep *report.CollectReport) error {
	out := os.Stdout
	if r.options.Output != "" {
		f, err := os.Create(r.options.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return report.WriteJSON(out, rep)
}

// Close releases resources.
func (r *CollectRunner) Close() error {
	return logging.Sync()
}

// RunCollectCommand executes the collect command with the given options.
func RunCollectCommand(opts *CollectOptions) error {
	runner, err := NewCollectRunner(opts)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	return runner.Run(context.Background())
}

// setupCollectCmd configures the collect command.
func setupCollectCmd() *cobra.Command {
	opts := DefaultCollectOptions()

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect log entries around an incident or lookback window",
		Long: `Collect fetches the Cloud Logging entries matching an incident's
resource and time window (or an explicit lookback) and writes them as a
JSON report.

Examples:
  triage collect --incident incident.json
  triage collect --incident - < incident.json
  triage collect --project my-proj --resource-type cloud_run_revision --hours-back 2
  triage collect --incident incident.json --errors-only --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunCollectCommand(opts)
		},
	}

	registerWindowFlags(cmd, &opts.Window)
	cmd.Flags().BoolVar(&opts.ErrorsOnly, "errors-only", false, "only fetch entries at ERROR severity and above")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "include aggregate statistics in the report")
	cmd.Flags().BoolVar(&opts.NoMetadata, "no-metadata", false, "strip per-entry metadata, keeping timestamp, severity and message")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "overall collection timeout")

	return cmd
}
