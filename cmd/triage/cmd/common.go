package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logtriage/internal/classify"
	"logtriage/internal/collector"
	"logtriage/internal/incident"
	"logtriage/internal/logging"
	"logtriage/internal/models"
	"logtriage/internal/window"
)

// WindowOptions are the flags shared by the collect and triage commands that
// select what to query.
type WindowOptions struct {
	IncidentFile   string
	Project        string
	HoursBack      int
	ResourceType   string
	ResourceLabels []string
	MinutesBefore  int
	MinutesAfter   int
	Search         string
	MaxEntries     int
}

// registerWindowFlags wires the shared window selection flags onto a command.
func registerWindowFlags(cmd *cobra.Command, opts *WindowOptions) {
	cmd.Flags().StringVarP(&opts.IncidentFile, "incident", "i", "", "incident JSON file ('-' for stdin)")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "GCP project id (defaults to the incident's project)")
	cmd.Flags().IntVar(&opts.HoursBack, "hours-back", 1, "lookback hours when no incident file is given")
	cmd.Flags().StringVar(&opts.ResourceType, "resource-type", "", "monitored resource type, e.g. cloud_run_revision")
	cmd.Flags().StringArrayVar(&opts.ResourceLabels, "resource-label", nil, "resource label as key=value (repeatable)")
	cmd.Flags().IntVar(&opts.MinutesBefore, "minutes-before", 5, "widen the window before the incident start")
	cmd.Flags().IntVar(&opts.MinutesAfter, "minutes-after", 5, "widen the window after the incident end")
	cmd.Flags().StringVar(&opts.Search, "search", "", "free-text payload filter")
	cmd.Flags().IntVar(&opts.MaxEntries, "max-entries", window.DefaultMaxEntries, "cap on fetched entries")
}

// resolve parses the incident file if given and builds the query window.
func (o *WindowOptions) resolve(floor models.Severity) (*incident.Incident, window.Window, error) {
	b := window.NewBuilder()
	b.MinutesBefore = o.MinutesBefore
	b.MinutesAfter = o.MinutesAfter
	b.SeverityFloor = floor
	b.TextSearch = o.Search
	if o.MaxEntries > 0 {
		b.MaxEntries = o.MaxEntries
	}

	if o.IncidentFile != "" {
		inc, err := readIncident(o.IncidentFile)
		if err != nil {
			return nil, window.Window{}, err
		}
		win, err := b.FromIncident(inc)
		return inc, win, err
	}

	labels, err := parseLabels(o.ResourceLabels)
	if err != nil {
		return nil, window.Window{}, err
	}
	win, err := b.FromLookback(o.HoursBack, o.ResourceType, labels)
	return nil, win, err
}

// projectID picks the project: an explicit flag wins over the incident's.
func (o *WindowOptions) projectID(inc *incident.Incident) string {
	if o.Project != "" {
		return o.Project
	}
	if inc != nil {
		return inc.ProjectID()
	}
	return ""
}

func readIncident(path string) (*incident.Incident, error) {
	if path == "-" {
		return incident.Parse(os.Stdin)
	}
	return incident.ParseFile(path)
}

func parseLabels(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	labels := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid resource label %q, want key=value", pair)
		}
		labels[k] = v
	}
	return labels, nil
}

// setupLogging initializes the global logger honoring the verbose flag.
func setupLogging() (*zap.Logger, error) {
	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = "debug"
	}
	if err := logging.Setup(logCfg); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logging.L(), nil
}

// newSource opens the Cloud Logging source for the project.
func newSource(ctx context.Context, projectID string, logger *zap.Logger) (collector.Source, error) {
	cfg := collector.DefaultGCPConfig(projectID)
	cfg.Logger = logger
	return collector.NewGCPSource(ctx, cfg)
}

// loadClassifier returns the rule table from the file, or the built-in rules
// when no file is given.
func loadClassifier(rulesFile string) (*classify.Classifier, error) {
	if rulesFile == "" {
		return classify.New(classify.DefaultRules()), nil
	}
	rules, err := classify.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}
	return classify.New(rules), nil
}
