package collector

import (
	"fmt"
	"sort"
	"strings"

	triageerrors "logtriage/internal/errors"
	"logtriage/internal/models"
)

// NormalizeRecord maps one raw record into the internal LogEntry shape.
//
// Message extraction precedence: text payload, then the flattened structured
// payload, then the empty string. An absent severity stays absent rather than
// being coerced to a default level, so statistics can report an explicit
// unclassified bucket.
func NormalizeRecord(rec RawRecord) (models.LogEntry, error) {
	if rec.Timestamp.IsZero() {
		return models.LogEntry{}, triageerrors.NewRecordParseError(rec.InsertID, "record has no timestamp")
	}

	entry := models.LogEntry{
		Timestamp:      rec.Timestamp.UTC(),
		Severity:       models.ParseSeverity(rec.Severity),
		Message:        extractMessage(rec),
		LogName:        rec.LogName,
		ResourceType:   rec.ResourceType,
		ResourceLabels: rec.ResourceLabels,
		Labels:         rec.Labels,
		TraceID:        rec.TraceID,
		SpanID:         rec.SpanID,
		HTTPRequest:    rec.HTTPRequest,
		InsertID:       rec.InsertID,
	}
	return entry, nil
}

// extractMessage picks the record's message text. Structured payloads are
// flattened to "key:value" pairs in sorted key order so the result is stable
// across runs.
func extractMessage(rec RawRecord) string {
	if rec.TextPayload != "" {
		return rec.TextPayload
	}
	if len(rec.JSONPayload) > 0 {
		return flattenPayload(rec.JSONPayload)
	}
	return ""
}

func flattenPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k, payload[k]))
	}
	return strings.Join(parts, " ")
}
