// Package analyze aggregates classified log entries into error groups, a
// coarse timeline and per-type counts.
package analyze

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"logtriage/internal/classify"
	"logtriage/internal/models"
	"logtriage/internal/window"
)

// maxSamples caps the verbatim sample messages kept per group. The first
// samples encountered are kept, not a random selection, so output is
// deterministic.
const maxSamples = 3

// signatureMaxLen truncates signatures so pathological messages cannot blow
// up the group table.
const signatureMaxLen = 200

var (
	reTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[t\s]\d{2}:\d{2}:\d{2}(\.\d+)?(z|[+-]\d{2}:?\d{2})?`)
	reUUID      = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reQuoted    = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	rePath      = regexp.MustCompile(`(?:/[\w.-]+){2,}|[a-z]:\\[\w\\.-]+`)
	reDigits    = regexp.MustCompile(`\d+`)
	reSpace     = regexp.MustCompile(`\s+`)
)

// Signature normalizes a message for grouping: lower-case, variable data
// (timestamps, uuids, quoted literals, paths, digit runs) replaced with
// placeholder tokens, whitespace collapsed. Normalization is idempotent:
// applying it to its own output changes nothing.
func Signature(message string) string {
	s := strings.ToLower(message)
	s = reTimestamp.ReplaceAllString(s, "<ts>")
	s = reUUID.ReplaceAllString(s, "<uuid>")
	s = reQuoted.ReplaceAllString(s, "<str>")
	s = rePath.ReplaceAllString(s, "<path>")
	s = reDigits.ReplaceAllString(s, "<num>")
	s = reSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > signatureMaxLen {
		s = strings.TrimSpace(s[:signatureMaxLen])
	}
	return s
}

// Classified is a log entry together with its assigned error type.
type Classified struct {
	Entry models.LogEntry
	Type  classify.ErrorType
}

// Group is a cluster of entries sharing a normalized message signature.
type Group struct {
	// Signature is the representative normalized message.
	Signature string `json:"signature"`

	// Type is the error type shared by the group's members.
	Type classify.ErrorType `json:"error_type"`

	// Count is the number of member entries.
	Count int `json:"count"`

	// FirstSeen and LastSeen bound the group's occurrences.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Samples holds up to three verbatim member messages.
	Samples []string `json:"samples,omitempty"`
}

// Bucket is one fixed-width timeline interval. Intervals are half-open:
// [Start, Start+width).
type Bucket struct {
	Start time.Time `json:"bucket_start"`
	Count int       `json:"count"`
}

// Summary aggregates one invocation's classified entries.
type Summary struct {
	// TotalEntries is the number of classified entries.
	TotalEntries int `json:"total_entries"`

	// CountsByType maps each observed error type to its entry count.
	CountsByType map[classify.ErrorType]int `json:"counts_by_type"`

	// Groups is ordered by count descending, ties broken by most recent
	// last-seen first.
	Groups []Group `json:"groups"`

	// Timeline is the ordered bucket sequence; bucket counts sum exactly
	// to TotalEntries.
	Timeline []Bucket `json:"timeline"`
}

// Analyzer classifies and aggregates log entries.
type Analyzer struct {
	classifier *classify.Classifier
}

// New creates an analyzer over the given classifier. A nil classifier gets
// the default rule table.
func New(classifier *classify.Classifier) *Analyzer {
	if classifier == nil {
		classifier = classify.New(nil)
	}
	return &Analyzer{classifier: classifier}
}

// Label classifies each entry's message. Classification precedes grouping so
// every member of a group carries the same outcome.
func (a *Analyzer) Label(entries []models.LogEntry) []Classified {
	labeled := make([]Classified, len(entries))
	for i, entry := range entries {
		labeled[i] = Classified{
			Entry: entry,
			Type:  a.classifier.Classify(entry.Message),
		}
	}
	return labeled
}

// Summarize groups labeled entries by signature and builds the timeline for
// the given window.
func (a *Analyzer) Summarize(labeled []Classified, w window.Window) *Summary {
	summary := &Summary{
		TotalEntries: len(labeled),
		CountsByType: make(map[classify.ErrorType]int),
	}

	groups := make(map[string]*Group)
	order := make([]string, 0)
	for _, item := range labeled {
		summary.CountsByType[item.Type]++

		sig := Signature(item.Entry.Message)
		g, ok := groups[sig]
		if !ok {
			g = &Group{
				Signature: sig,
				Type:      item.Type,
				FirstSeen: item.Entry.Timestamp,
				LastSeen:  item.Entry.Timestamp,
			}
			groups[sig] = g
			order = append(order, sig)
		}
		g.Count++
		if item.Entry.Timestamp.Before(g.FirstSeen) {
			g.FirstSeen = item.Entry.Timestamp
		}
		if item.Entry.Timestamp.After(g.LastSeen) {
			g.LastSeen = item.Entry.Timestamp
		}
		if len(g.Samples) < maxSamples {
			g.Samples = append(g.Samples, item.Entry.Message)
		}
	}

	summary.Groups = make([]Group, 0, len(groups))
	for _, sig := range order {
		summary.Groups = append(summary.Groups, *groups[sig])
	}
	sort.SliceStable(summary.Groups, func(i, j int) bool {
		if summary.Groups[i].Count != summary.Groups[j].Count {
			return summary.Groups[i].Count > summary.Groups[j].Count
		}
		return summary.Groups[i].LastSeen.After(summary.Groups[j].LastSeen)
	})

	summary.Timeline = buildTimeline(labeled, w)
	return summary
}

// defaultBucketCount slices the window into twenty intervals unless that
// would drop below the one-minute minimum width.
const defaultBucketCount = 20

// minBucketWidth is the smallest timeline resolution.
const minBucketWidth = time.Minute

// buildTimeline counts entries into fixed-width half-open buckets. Entries on
// or past the final boundary are counted into the last bucket so the bucket
// counts always sum to the entry total.
func buildTimeline(labeled []Classified, w window.Window) []Bucket {
	if len(labeled) == 0 {
		return nil
	}

	width := w.Duration() / defaultBucketCount
	if width < minBucketWidth {
		width = minBucketWidth
	}

	count := int(w.Duration() / width)
	if count < 1 {
		count = 1
	}
	if time.Duration(count)*width < w.Duration() {
		count++
	}

	buckets := make([]Bucket, count)
	for i := range buckets {
		buckets[i].Start = w.Start.Add(time.Duration(i) * width)
	}
	for _, item := range labeled {
		idx := int(item.Entry.Timestamp.Sub(w.Start) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= count {
			idx = count - 1
		}
		buckets[idx].Count++
	}
	return buckets
}
