// Package collector retrieves raw log records from a log store and
// normalizes them into LogEntry values. The store itself sits behind the
// Source interface so the pipeline never depends on a concrete backend.
package collector

import (
	"context"
	"sort"
	"time"

	"logtriage/internal/models"
)

// RawRecord is one unparsed record as returned by a log source. Exactly one
// of TextPayload and JSONPayload is normally set; both may be empty.
type RawRecord struct {
	Timestamp      time.Time
	Severity       string
	LogName        string
	InsertID       string
	ResourceType   string
	ResourceLabels map[string]string
	Labels         map[string]string
	TextPayload    string
	JSONPayload    map[string]any
	TraceID        string
	SpanID         string
	HTTPRequest    *models.HTTPRequest
}

// FetchResult is a bounded batch of raw records. Truncated is set when the
// fetch hit maxEntries, or when cancellation or a fatal source error cut
// pagination short; in the latter cases Records holds whatever was collected
// before the interruption.
type FetchResult struct {
	Records   []RawRecord
	Truncated bool
}

// Source is a paginated log-retrieval capability keyed by filter string,
// time range and result cap. Implementations authenticate and paginate
// internally; callers only see the assembled batch.
type Source interface {
	// Fetch returns up to maxEntries records matching the filter within
	// [start, end]. A partial FetchResult accompanies any error.
	Fetch(ctx context.Context, filter string, start, end time.Time, maxEntries int) (FetchResult, error)

	// Name returns a human-readable name for this source.
	Name() string

	// Close releases any resources held by the source.
	Close() error
}

// sortByTimestamp orders records by timestamp ascending. The sort is stable
// so records with equal timestamps keep their arrival order.
func sortByTimestamp(records []RawRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
