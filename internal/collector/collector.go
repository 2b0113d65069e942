package collector

import (
	"context"

	"go.uber.org/zap"

	triagelog "logtriage/internal/logging"
	"logtriage/internal/models"
	"logtriage/internal/window"
)

// Result is the assembled output of one collection pass. Entries are ordered
// by timestamp ascending, ties broken by arrival order from the source.
type Result struct {
	// Entries are the normalized records.
	Entries []models.LogEntry

	// Skipped counts records that could not be normalized. Skips never
	// abort the batch and are always reported.
	Skipped int

	// Truncated is set when the fetch hit the result cap or was cut short.
	Truncated bool

	// Filter is the filter expression that was sent to the source.
	Filter string
}

// Collector runs the fetch + normalize stages for one query window.
type Collector struct {
	source Source
	logger *zap.Logger
}

// New creates a collector over the given source.
func New(source Source, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = triagelog.L()
	}
	return &Collector{
		source: source,
		logger: logger.With(zap.String("component", "collector")),
	}
}

// Collect fetches the window's records and normalizes them. When the source
// fails fatally the partial result collected so far is still returned
// alongside the error, with Truncated set.
func (c *Collector) Collect(ctx context.Context, w window.Window) (*Result, error) {
	filter := w.Filter()
	c.logger.Info("collection_started",
		triagelog.Filter(filter),
		zap.Int("max_entries", w.MaxEntries),
	)

	fetched, fetchErr := c.source.Fetch(ctx, filter, w.Start, w.End, w.MaxEntries)

	result := &Result{
		Entries:   make([]models.LogEntry, 0, len(fetched.Records)),
		Truncated: fetched.Truncated,
		Filter:    filter,
	}
	for _, rec := range fetched.Records {
		entry, err := NormalizeRecord(rec)
		if err != nil {
			result.Skipped++
			c.logger.Debug("record_skipped", zap.Error(err))
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	c.logger.Info("collection_finished",
		triagelog.Count(len(result.Entries)),
		triagelog.Skipped(result.Skipped),
		zap.Bool("truncated", result.Truncated),
	)
	return result, fetchErr
}
