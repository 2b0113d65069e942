// Package models defines the core data structures shared across the triage pipeline.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Severity is a Cloud Logging severity level. The empty string means the
// source record carried no severity at all; it is preserved as-is so that
// statistics can report an explicit unclassified bucket.
type Severity string

// Known severity levels, lowest to highest.
const (
	SeverityUnspecified Severity = ""
	SeverityDefault     Severity = "DEFAULT"
	SeverityDebug       Severity = "DEBUG"
	SeverityInfo        Severity = "INFO"
	SeverityNotice      Severity = "NOTICE"
	SeverityWarning     Severity = "WARNING"
	SeverityError       Severity = "ERROR"
	SeverityCritical    Severity = "CRITICAL"
	SeverityAlert       Severity = "ALERT"
	SeverityEmergency   Severity = "EMERGENCY"
)

var severityRanks = map[Severity]int{
	SeverityDefault:   0,
	SeverityDebug:     100,
	SeverityInfo:      200,
	SeverityNotice:    300,
	SeverityWarning:   400,
	SeverityError:     500,
	SeverityCritical:  600,
	SeverityAlert:     700,
	SeverityEmergency: 800,
}

// Rank returns the numeric ordering of the severity. Unspecified ranks below
// DEFAULT so an absent severity never passes a severity floor.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// Known reports whether the severity is one of the defined levels.
func (s Severity) Known() bool {
	_, ok := severityRanks[s]
	return ok
}

// ParseSeverity folds a raw severity string onto the known levels. Common
// aliases are normalized (WARN -> WARNING, FATAL -> CRITICAL). An empty input
// stays unspecified; an unrecognized value is kept upper-cased so it still
// round-trips through reports.
func ParseSeverity(raw string) Severity {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case "WARN":
		return SeverityWarning
	case "FATAL":
		return SeverityCritical
	case "ERR":
		return SeverityError
	}
	return s
}

// HTTPRequest holds the HTTP fields of a request-scoped log entry.
type HTTPRequest struct {
	Method       string        `json:"request_method,omitempty"`
	URL          string        `json:"request_url,omitempty"`
	Status       int           `json:"status,omitempty"`
	Latency      time.Duration `json:"latency,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	RemoteIP     string        `json:"remote_ip,omitempty"`
	ServerIP     string        `json:"server_ip,omitempty"`
	Protocol     string        `json:"protocol,omitempty"`
	CacheHit     bool          `json:"cache_hit,omitempty"`
	RequestSize  int64         `json:"request_size,omitempty"`
	ResponseSize int64         `json:"response_size,omitempty"`
}

// LogEntry is one normalized unit of observability data. It is created once
// per fetched record and never mutated afterwards.
type LogEntry struct {
	// Timestamp of the entry in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Severity of the entry; empty when the record carried none.
	Severity Severity `json:"severity,omitempty"`

	// Message is the extracted text of the entry. An unextractable payload
	// yields "".
	Message string `json:"message"`

	// LogName is the fully qualified log the record was written to.
	LogName string `json:"log_name,omitempty"`

	// ResourceType identifies the monitored resource (e.g. cloud_run_revision).
	ResourceType string `json:"resource_type,omitempty"`

	// ResourceLabels identify the concrete resource instance.
	ResourceLabels map[string]string `json:"resource_labels,omitempty"`

	// Labels are the user labels attached to the record.
	Labels map[string]string `json:"labels,omitempty"`

	// TraceID is the opaque trace identifier, if any.
	TraceID string `json:"trace,omitempty"`

	// SpanID is the opaque span identifier, if any.
	SpanID string `json:"span_id,omitempty"`

	// HTTPRequest carries HTTP fields when the entry is request-scoped.
	HTTPRequest *HTTPRequest `json:"http_request,omitempty"`

	// InsertID is an opaque identifier used only for reporting.
	InsertID string `json:"insert_id,omitempty"`
}

// ToJSON serializes the LogEntry to JSON bytes.
func (e *LogEntry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryFromJSON deserializes a LogEntry from JSON bytes.
func EntryFromJSON(data []byte) (*LogEntry, error) {
	var entry LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
