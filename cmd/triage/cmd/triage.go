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

	"logtriage/internal/classify"
	"logtriage/internal/logging"
	"logtriage/internal/recommend"
	"logtriage/internal/report"
	"logtriage/internal/triage"
	"logtriage/internal/window"
)

// TriageOptions holds options for the triage command.
type TriageOptions struct {
	Window    WindowOptions
	Severity  string
	ErrorType string
	Limit     int
	Detailed  bool
	RulesFile string
	Output    string
	Timeout   time.Duration
}

// DefaultTriageOptions returns the default triage options.
func DefaultTriageOptions() *TriageOptions {
	return &TriageOptions{
		Timeout: 60 * time.Second,
	}
}

// TriageRunner handles the triage workflow.
type TriageRunner struct {
	options    *TriageOptions
	logger     *zap.Logger
	classifier *classify.Classifier
}

// NewTriageRunner creates a new triage runner with the given options.
func NewTriageRunner(opts *TriageOptions) (*TriageRunner, error) {
	if opts == nil {
		opts = DefaultTriageOptions()
	}

	logger, err := setupLogging()
	if err != nil {
		return nil, err
	}

	classifier, err := loadClassifier(opts.RulesFile)
	if err != nil {
		return nil, err
	}

	return &TriageRunner{
		options:    opts,
		logger:     logger.With(zap.String("command", "triage")),
		classifier: classifier,
	}, nil
}

// Run executes the triage workflow.
func (r *TriageRunner) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if r.options.Timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, r.options.Timeout)
		defer tcancel()
	}

	floor := window.TriageFloor
	if r.options.Severity != "" {
		floor = window.ParseFloor(r.options.Severity)
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
		Source:     source,
		Classifier: r.classifier,
		ProjectID:  projectID,
		Logger:     r.logger,
	})

	rep, triageErr := pipeline.Triage(ctx, win, inc, triage.TriageOptions{
		Detailed:  r.options.Detailed,
		ErrorType: classify.ErrorType(r.options.ErrorType),
		MaxGroups: r.options.Limit,
	})

	if err := r.write(rep); err != nil {
		return err
	}
	r.printSummary(rep)
	return triageErr
}

// printSummary writes a short human rendering to stderr so the JSON on
// stdout stays machine-readable.
func (r *TriageRunner) printSummary(rep *report.TriageReport) {
	if rep == nil || rep.Summary == nil {
		return
	}
	w := os.Stderr
	fmt.Fprintf(w, "%d entries between %s and %s\n",
		rep.Summary.TotalEntries,
		rep.Collection.WindowStart.Format(time.RFC3339),
		rep.Collection.WindowEnd.Format(time.RFC3339))
	for i, g := range rep.Summary.Groups {
		if i == 3 {
			fmt.Fprintf(w, "  ... and %d more groups\n", len(rep.Summary.Groups)-i)
			break
		}
		fmt.Fprintf(w, "  %4d x %s  %s\n", g.Count, g.Type, g.Signature)
	}
	for _, line := range recommend.Strings(rep.Recommendations) {
		fmt.Fprintln(w, line)
	}
}

// write renders the report to stdout or the output file.
func (r *TriageRunner) write(rep *report.TriageReport) error {
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
func (r *TriageRunner) Close() error {
	return logging.Sync()
}

// RunTriageCommand executes the triage command with the given options.
func RunTriageCommand(opts *TriageOptions) error {
	runner, err := NewTriageRunner(opts)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	return runner.Run(context.Background())
}

// setupTriageCmd configures the triage command.
func setupTriageCmd() *cobra.Command {
	opts := DefaultTriageOptions()

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify and summarize the errors around an incident",
		Long: `Triage collects the entries in the window, classifies each error,
groups repeated messages by normalized signature, bins them into a
timeline, and emits prioritized remediation recommendations.

Examples:
  triage triage --incident incident.json
  triage triage --project my-proj --resource-type gce_instance --hours-back 6
  triage triage --incident incident.json --severity ERROR --detailed
  triage triage --incident incident.json --error-type TIMEOUT --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunTriageCommand(opts)
		},
	}

	registerWindowFlags(cmd, &opts.Window)
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "minimum severity to query (default WARNING)")
	cmd.Flags().StringVar(&opts.ErrorType, "error-type", "", "restrict the summary to one error type, e.g. TIMEOUT")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap the number of error groups reported (0 = all)")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "include the raw entries alongside the summary")
	cmd.Flags().StringVar(&opts.RulesFile, "rules", "", "YAML file overriding the built-in classification rules")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 60*time.Second, "overall triage timeout")

	return cmd
}
