// Package triage wires the window, collector, analyzer and recommender into
// the two end-to-end operations: collect and triage.
package triage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"logtriage/internal/analyze"
	"logtriage/internal/classify"
	"logtriage/internal/collector"
	"logtriage/internal/incident"
	"logtriage/internal/models"
	"logtriage/internal/recommend"
	"logtriage/internal/report"
	"logtriage/internal/window"
)

// Config configures a Pipeline.
type Config struct {
	// Source supplies raw log records. Required.
	Source collector.Source
	// Classifier labels entries. Nil uses the built-in rule table.
	Classifier *classify.Classifier
	// Clock supplies "now" for report metadata. Nil uses time.Now.
	Clock window.Clock
	// ProjectID is recorded on report metadata.
	ProjectID string
	// Logger is the structured logger. Nil disables logging.
	Logger *zap.Logger
}

// CollectOptions tune the collect operation's output shape.
type CollectOptions struct {
	// Stats adds the aggregate statistics block.
	Stats bool
	// NoMetadata strips per-entry correlation fields, keeping timestamp,
	// severity and message.
	NoMetadata bool
}

// TriageOptions tune the triage operation's output shape.
type TriageOptions struct {
	// Detailed includes the raw entries alongside the summary.
	Detailed bool
	// ErrorType restricts the summary to one classification. Empty keeps all.
	ErrorType classify.ErrorType
	// MaxGroups caps the number of error groups reported. Zero means all.
	MaxGroups int
}

// Pipeline runs collection and triage against a single log source.
type Pipeline struct {
	collector *collector.Collector
	analyzer  *analyze.Analyzer
	clock     window.Clock
	projectID string
	logger    *zap.Logger
}

// New builds a Pipeline from the config.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		collector: collector.New(cfg.Source, logger),
		analyzer:  analyze.New(cfg.Classifier),
		clock:     clock,
		projectID: cfg.ProjectID,
		logger:    logger,
	}
}

// Collect fetches and normalizes the entries in the window and assembles a
// collect report. On a fetch failure the partial report is returned together
// with the error; the report's truncated flag is set.
func (p *Pipeline) Collect(ctx context.Context, w window.Window, inc *incident.Incident, opts CollectOptions) (*report.CollectReport, error) {
	res, err := p.collector.Collect(ctx, w)

	entries := res.Entries
	if opts.NoMetadata {
		entries = report.StripMetadata(entries)
	}

	rep := &report.CollectReport{
		Collection: report.NewCollectionMetadata(p.clock(), p.projectID, w, res),
		Incident:   report.NewIncidentMetadata(inc),
		Logs:       entries,
	}
	if opts.Stats {
		rep.Stats = report.BuildStats(res.Entries)
	}
	return rep, err
}

// Triage runs the full pipeline: collect, classify, group and recommend. As
// with Collect, a fetch failure yields a partial report plus the error.
func (p *Pipeline) Triage(ctx context.Context, w window.Window, inc *incident.Incident, opts TriageOptions) (*report.TriageReport, error) {
	res, err := p.collector.Collect(ctx, w)

	labeled := p.analyzer.Label(res.Entries)
	if opts.ErrorType != "" {
		labeled = filterByType(labeled, opts.ErrorType)
	}
	summary := p.analyzer.Summarize(labeled, w)
	if opts.MaxGroups > 0 && len(summary.Groups) > opts.MaxGroups {
		summary.Groups = summary.Groups[:opts.MaxGroups]
	}
	recs := recommend.Suggest(summary.CountsByType)

	p.logger.Info("triage_finished",
		zap.Int("total_entries", summary.TotalEntries),
		zap.Int("groups", len(summary.Groups)),
		zap.Int("recommendations", len(recs)),
	)

	rep := &report.TriageReport{
		Collection:      report.NewCollectionMetadata(p.clock(), p.projectID, w, res),
		Incident:        report.NewIncidentMetadata(inc),
		Summary:         summary,
		Recommendations: recs,
	}
	if opts.Detailed {
		rep.Logs = entriesOf(labeled)
	}
	return rep, err
}

func filterByType(labeled []analyze.Classified, t classify.ErrorType) []analyze.Classified {
	out := make([]analyze.Classified, 0, len(labeled))
	for _, c := range labeled {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func entriesOf(labeled []analyze.Classified) []models.LogEntry {
	out := make([]models.LogEntry, len(labeled))
	for i, c := range labeled {
		out[i] = c.Entry
	}
	return out
}
