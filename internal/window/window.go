// Package window derives an absolute query window and resource filter from
// either explicit lookback parameters or a parsed incident descriptor.
package window

import (
	"fmt"
	"sort"
	"strings"
	"time"

	triageerrors "logtriage/internal/errors"
	"logtriage/internal/incident"
	"logtriage/internal/models"
)

// Clock supplies the current time. All "now" reads in window math go through
// it so tests can pin a fixed instant and assert exact boundaries.
type Clock func() time.Time

// Window is a resolved absolute time range plus the resource filter that
// bounds a single log query.
type Window struct {
	Start          time.Time
	End            time.Time
	ResourceType   string
	ResourceLabels map[string]string
	TextSearch     string
	SeverityFloor  models.Severity
	MaxEntries     int
}

// DefaultMaxEntries caps a query when the caller does not set a limit.
const DefaultMaxEntries = 10000

// Severity floors per operation. Collection defaults to everything so raw
// exports stay complete; triage looks at warnings and above.
const (
	CollectFloor       = models.SeverityDefault
	CollectErrorsFloor = models.SeverityError
	TriageFloor        = models.SeverityWarning
)

// ParseFloor folds a raw severity string onto the known levels for use as a
// query floor. Empty input yields the unspecified severity, which the filter
// renderer treats as "no floor".
func ParseFloor(raw string) models.Severity {
	return models.ParseSeverity(raw)
}

// Builder constructs Windows. The zero value is not usable; call NewBuilder.
type Builder struct {
	// Clock is the injected time source.
	Clock Clock
	// MinutesBefore widens the window before an incident's start.
	MinutesBefore int
	// MinutesAfter widens the window after an incident's end (or now, for
	// open incidents).
	MinutesAfter int
	// SeverityFloor is the minimum severity to query. SeverityDefault (or
	// unspecified) captures all severities.
	SeverityFloor models.Severity
	// MaxEntries bounds the result set. Must be positive.
	MaxEntries int
	// TextSearch is an optional free-text payload filter.
	TextSearch string
}

// NewBuilder returns a Builder with the standard buffers (5 minutes each
// side) and limits.
func NewBuilder() *Builder {
	return &Builder{
		Clock:         time.Now,
		MinutesBefore: 5,
		MinutesAfter:  5,
		SeverityFloor: models.SeverityWarning,
		MaxEntries:    DefaultMaxEntries,
	}
}

func (b *Builder) validate() error {
	if b.Clock == nil {
		return triageerrors.NewWindowBoundsError("clock", nil, "is required")
	}
	if b.MinutesBefore < 0 {
		return triageerrors.NewWindowBoundsError("minutes_before", b.MinutesBefore, "must be non-negative")
	}
	if b.MinutesAfter < 0 {
		return triageerrors.NewWindowBoundsError("minutes_after", b.MinutesAfter, "must be non-negative")
	}
	if b.MaxEntries <= 0 {
		return triageerrors.NewWindowBoundsError("max_entries", b.MaxEntries, "must be positive")
	}
	return nil
}

// FromLookback builds a window covering the last hoursBack hours for the
// given resource. Labels with empty values are dropped from the filter, never
// matched as wildcards.
func (b *Builder) FromLookback(hoursBack int, resourceType string, resourceLabels map[string]string) (Window, error) {
	if err := b.validate(); err != nil {
		return Window{}, err
	}
	if hoursBack <= 0 {
		return Window{}, triageerrors.NewWindowBoundsError("hours_back", hoursBack, "must be positive")
	}
	if resourceType == "" {
		return Window{}, triageerrors.NewWindowNoResourceError()
	}

	now := b.Clock().UTC()
	w := Window{
		Start:          now.Add(-time.Duration(hoursBack) * time.Hour),
		End:            now,
		ResourceType:   resourceType,
		ResourceLabels: pruneLabels(resourceLabels),
		TextSearch:     b.TextSearch,
		SeverityFloor:  b.SeverityFloor,
		MaxEntries:     b.MaxEntries,
	}
	return w, nil
}

// FromIncident builds a window around an incident's reported span, widened by
// the configured buffers. An open incident extends to now plus the after
// buffer.
func (b *Builder) FromIncident(inc *incident.Incident) (Window, error) {
	if err := b.validate(); err != nil {
		return Window{}, err
	}
	if inc == nil {
		return Window{}, triageerrors.NewWindowNoResourceError()
	}

	start := inc.StartedAt.Add(-time.Duration(b.MinutesBefore) * time.Minute)

	var end time.Time
	if inc.EndedAt != nil {
		end = *inc.EndedAt
	} else {
		end = b.Clock().UTC()
	}
	end = end.Add(time.Duration(b.MinutesAfter) * time.Minute)

	if start.After(end) {
		return Window{}, triageerrors.NewWindowInvertedError(
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	w := Window{
		Start:          start,
		End:            end,
		ResourceType:   inc.Resource.Type,
		ResourceLabels: pruneLabels(inc.Resource.Labels),
		TextSearch:     b.TextSearch,
		SeverityFloor:  b.SeverityFloor,
		MaxEntries:     b.MaxEntries,
	}
	return w, nil
}

// pruneLabels copies a label map, dropping keys with empty values.
func pruneLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Filter renders the window as a Cloud Logging filter expression: a
// newline-joined conjunction of resource, label, timestamp, severity and
// free-text predicates. Label predicates are emitted in sorted key order so
// the expression is deterministic.
func (w Window) Filter() string {
	clauses := []string{
		fmt.Sprintf("resource.type=%q", w.ResourceType),
	}

	keys := make([]string, 0, len(w.ResourceLabels))
	for k := range w.ResourceLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("resource.labels.%s=%q", k, w.ResourceLabels[k]))
	}

	clauses = append(clauses,
		fmt.Sprintf("timestamp>=%q", w.Start.UTC().Format(time.RFC3339Nano)),
		fmt.Sprintf("timestamp<=%q", w.End.UTC().Format(time.RFC3339Nano)),
	)

	if w.SeverityFloor != models.SeverityUnspecified && w.SeverityFloor != models.SeverityDefault {
		clauses = append(clauses, fmt.Sprintf("severity>=%s", w.SeverityFloor))
	}
	if w.TextSearch != "" {
		clauses = append(clauses, fmt.Sprintf("%q", w.TextSearch))
	}

	return strings.Join(clauses, "\n")
}
