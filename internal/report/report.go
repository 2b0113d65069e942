// Package report assembles the JSON payloads emitted by the collect and
// triage commands.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"logtriage/internal/analyze"
	"logtriage/internal/collector"
	"logtriage/internal/incident"
	"logtriage/internal/models"
	"logtriage/internal/recommend"
	"logtriage/internal/window"
)

// CollectionMetadata describes how and when the entries in a report were
// gathered.
type CollectionMetadata struct {
	CollectedAt  time.Time `json:"collected_at"`
	ProjectID    string    `json:"project_id,omitempty"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	FilterUsed   string    `json:"filter_used"`
	TotalEntries int       `json:"total_entries"`
	Skipped      int       `json:"skipped"`
	Truncated    bool      `json:"truncated"`
}

// IncidentMetadata is the incident passthrough block carried on reports that
// were driven by an incident file. Timestamps are unix seconds, matching the
// alerting webhook format the incident was parsed from.
type IncidentMetadata struct {
	IncidentID    string `json:"incident_id"`
	StartedAt     int64  `json:"started_at"`
	EndedAt       *int64 `json:"ended_at,omitempty"`
	State         string `json:"state,omitempty"`
	PolicyName    string `json:"policy_name,omitempty"`
	ConditionName string `json:"condition_name,omitempty"`
	Summary       string `json:"summary,omitempty"`
	ResourceType  string `json:"resource_type"`
	URL           string `json:"url,omitempty"`
}

// TimeRange is the observed span of the collected entries, which can be
// narrower than the queried window.
type TimeRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Stats are aggregate counts over a collected entry set. The "(none)" bucket
// in BySeverity counts entries whose records carried no severity.
type Stats struct {
	BySeverity      map[string]int `json:"by_severity"`
	ByLogName       map[string]int `json:"by_log_name"`
	TimeRange       *TimeRange     `json:"time_range,omitempty"`
	UniqueTraces    int            `json:"unique_traces"`
	HTTPStatusCodes map[string]int `json:"http_status_codes,omitempty"`
}

// CollectReport is the output of the collect operation: raw normalized
// entries plus provenance.
type CollectReport struct {
	Collection CollectionMetadata `json:"collection_metadata"`
	Incident   *IncidentMetadata  `json:"incident_metadata,omitempty"`
	Stats      *Stats             `json:"stats,omitempty"`
	Logs       []models.LogEntry  `json:"logs"`
}

// TriageReport is the output of the triage operation: classification summary
// and recommendations, without the raw entries unless requested.
type TriageReport struct {
	Collection      CollectionMetadata         `json:"collection_metadata"`
	Incident        *IncidentMetadata          `json:"incident_metadata,omitempty"`
	Summary         *analyze.Summary           `json:"summary"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Logs            []models.LogEntry          `json:"logs,omitempty"`
}

// NewCollectionMetadata fills the provenance block from a collection result.
func NewCollectionMetadata(now time.Time, projectID string, w window.Window, res *collector.Result) CollectionMetadata {
	return CollectionMetadata{
		CollectedAt:  now.UTC(),
		ProjectID:    projectID,
		WindowStart:  w.Start.UTC(),
		WindowEnd:    w.End.UTC(),
		FilterUsed:   res.Filter,
		TotalEntries: len(res.Entries),
		Skipped:      res.Skipped,
		Truncated:    res.Truncated,
	}
}

// NewIncidentMetadata converts a parsed incident back to the report block.
// Returns nil for a nil incident so callers can pass it through unchecked.
func NewIncidentMetadata(inc *incident.Incident) *IncidentMetadata {
	if inc == nil {
		return nil
	}
	meta := &IncidentMetadata{
		IncidentID:    inc.IncidentID,
		StartedAt:     inc.StartedAt.Unix(),
		State:         inc.State,
		PolicyName:    inc.PolicyName,
		ConditionName: inc.ConditionName,
		Summary:       inc.Summary,
		ResourceType:  inc.Resource.Type,
		URL:           inc.URL,
	}
	if inc.EndedAt != nil {
		ended := inc.EndedAt.Unix()
		meta.EndedAt = &ended
	}
	return meta
}

// BuildStats computes aggregate counts over the entries. Returns nil for an
// empty slice.
func BuildStats(entries []models.LogEntry) *Stats {
	if len(entries) == 0 {
		return nil
	}

	s := &Stats{
		BySeverity: make(map[string]int),
		ByLogName:  make(map[string]int),
	}
	traces := make(map[string]struct{})
	statuses := make(map[string]int)

	earliest := entries[0].Timestamp
	latest := entries[0].Timestamp
	for _, e := range entries {
		sev := string(e.Severity)
		if sev == "" {
			sev = "(none)"
		}
		s.BySeverity[sev]++
		if e.LogName != "" {
			s.ByLogName[e.LogName]++
		}
		if e.TraceID != "" {
			traces[e.TraceID] = struct{}{}
		}
		if e.HTTPRequest != nil && e.HTTPRequest.Status != 0 {
			statuses[strconv.Itoa(e.HTTPRequest.Status)]++
		}
		if e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}

	s.TimeRange = &TimeRange{Earliest: earliest, Latest: latest}
	s.UniqueTraces = len(traces)
	if len(statuses) > 0 {
		s.HTTPStatusCodes = statuses
	}
	return s
}

// StripMetadata clears the per-entry fields that only matter for correlation,
// leaving timestamp, severity and message.
func StripMetadata(entries []models.LogEntry) []models.LogEntry {
	out := make([]models.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = models.LogEntry{
			Timestamp: e.Timestamp,
			Severity:  e.Severity,
			Message:   e.Message,
		}
	}
	return out
}

// FilterEntries returns the entries whose severity is at or above the floor.
// A Default (or unspecified) floor keeps everything.
func FilterEntries(entries []models.LogEntry, floor models.Severity) []models.LogEntry {
	if floor == models.SeverityUnspecified || floor == models.SeverityDefault {
		return entries
	}
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Severity.Rank() >= floor.Rank() {
			out = append(out, e)
		}
	}
	return out
}

// WriteJSON renders any report value as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// SortedKeys returns the keys of a count map in sorted order, for stable text
// rendering.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
