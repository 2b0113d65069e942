package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtriage/internal/classify"
	"logtriage/internal/models"
	"logtriage/internal/window"
)

func TestSignature(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "digits replaced",
			message: "worker 42 failed after 3 retries",
			want:    "worker <num> failed after <num> retries",
		},
		{
			name:    "timestamp replaced",
			message: "at 2024-03-15T11:02:30Z job aborted",
			want:    "at <ts> job aborted",
		},
		{
			name:    "uuid replaced",
			message: "request 550e8400-e29b-41d4-a716-446655440000 rejected",
			want:    "request <uuid> rejected",
		},
		{
			name:    "quoted strings replaced",
			message: `column "user_id" missing in table 'accounts'`,
			want:    "column <str> missing in table <str>",
		},
		{
			name:    "paths replaced",
			message: "cannot open /data/input/file.csv for reading",
			want:    "cannot open <path> for reading",
		},
		{
			name:    "whitespace collapsed",
			message: "too   many\t\tspaces   here",
			want:    "too many spaces here",
		},
		{
			name:    "lower cased",
			message: "TimeoutError CONNECTING upstream",
			want:    "timeouterror connecting upstream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Signature(tt.message)
			assert.Equal(t, tt.want, got)

			// Normalizing a signature must be a no-op.
			assert.Equal(t, got, Signature(got))
		})
	}
}

func TestSignatureTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "repeatedp "
	}
	got := Signature(long)
	assert.LessOrEqual(t, len(got), 200)
	assert.Equal(t, got, Signature(got))
}

func TestSignatureGroupsVariants(t *testing.T) {
	a := Signature("FileNotFoundError: /data/reports/2024/q1.csv not found (attempt 1)")
	b := Signature("FileNotFoundError: /data/reports/2023/q4.csv not found (attempt 7)")
	assert.Equal(t, a, b)
}

func TestLabel(t *testing.T) {
	analyzer := New(nil)
	entries := []models.LogEntry{
		{Message: "FileNotFoundError: input.csv not found"},
		{Message: "request timed out"},
		{Message: "all quiet"},
	}

	labeled := analyzer.Label(entries)
	require.Len(t, labeled, 3)
	assert.Equal(t, classify.FileNotFound, labeled[0].Type)
	assert.Equal(t, classify.Timeout, labeled[1].Type)
	assert.Equal(t, classify.Unknown, labeled[2].Type)
}

func summaryWindow() window.Window {
	return window.Window{
		Start: time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 15, 11, 40, 0, 0, time.UTC),
	}
}

func entryAt(ts time.Time, msg string) models.LogEntry {
	return models.LogEntry{Timestamp: ts, Message: msg}
}

func TestSummarize(t *testing.T) {
	analyzer := New(nil)
	w := summaryWindow()
	base := w.Start

	entries := []models.LogEntry{
		entryAt(base.Add(1*time.Minute), "timeout connecting to db after 30s"),
		entryAt(base.Add(2*time.Minute), "timeout connecting to db after 45s"),
		entryAt(base.Add(3*time.Minute), "timeout connecting to db after 60s"),
		entryAt(base.Add(5*time.Minute), "FileNotFoundError: /data/a/b.csv not found"),
		entryAt(base.Add(6*time.Minute), "FileNotFoundError: /data/c/d.csv not found"),
		entryAt(base.Add(30*time.Minute), "something odd happened"),
	}

	summary := analyzer.Summarize(analyzer.Label(entries), w)

	t.Run("totals and counts by type", func(t *testing.T) {
		assert.Equal(t, 6, summary.TotalEntries)
		assert.Equal(t, 3, summary.CountsByType[classify.Timeout])
		assert.Equal(t, 2, summary.CountsByType[classify.FileNotFound])
		assert.Equal(t, 1, summary.CountsByType[classify.Unknown])
	})

	t.Run("groups ordered by count descending", func(t *testing.T) {
		require.Len(t, summary.Groups, 3)
		assert.Equal(t, 3, summary.Groups[0].Count)
		assert.Equal(t, classify.Timeout, summary.Groups[0].Type)
		assert.Equal(t, 2, summary.Groups[1].Count)
		assert.Equal(t, classify.FileNotFound, summary.Groups[1].Type)
		assert.Equal(t, 1, summary.Groups[2].Count)
	})

	t.Run("group bounds and samples", func(t *testing.T) {
		g := summary.Groups[0]
		assert.Equal(t, base.Add(1*time.Minute), g.FirstSeen)
		assert.Equal(t, base.Add(3*time.Minute), g.LastSeen)
		require.Len(t, g.Samples, 3)
		assert.Equal(t, "timeout connecting to db after 30s", g.Samples[0])
	})

	t.Run("timeline sums to total", func(t *testing.T) {
		total := 0
		for _, b := range summary.Timeline {
			total += b.Count
		}
		assert.Equal(t, summary.TotalEntries, total)
	})
}

func TestSummarizeRegroupSignatures(t *testing.T) {
	analyzer := New(nil)
	w := summaryWindow()
	base := w.Start

	entries := []models.LogEntry{
		entryAt(base.Add(1*time.Minute), "timeout connecting to db after 30s"),
		entryAt(base.Add(2*time.Minute), "timeout connecting to db after 45s"),
		entryAt(base.Add(5*time.Minute), "FileNotFoundError: /data/a/b.csv not found"),
	}
	first := analyzer.Summarize(analyzer.Label(entries), w)

	// Feeding each group's signature back in as a message reproduces the
	// same signatures, one singleton group apiece.
	var reruns []models.LogEntry
	for i, g := range first.Groups {
		reruns = append(reruns, entryAt(base.Add(time.Duration(i)*time.Minute), g.Signature))
	}
	second := analyzer.Summarize(analyzer.Label(reruns), w)

	require.Len(t, second.Groups, len(first.Groups))
	seen := make(map[string]bool, len(second.Groups))
	for _, g := range second.Groups {
		assert.Equal(t, 1, g.Count)
		seen[g.Signature] = true
	}
	for _, g := range first.Groups {
		assert.True(t, seen[g.Signature], "signature %q lost on regroup", g.Signature)
	}
}

func TestSummarizeTieBreakByRecency(t *testing.T) {
	analyzer := New(nil)
	w := summaryWindow()
	base := w.Start

	entries := []models.LogEntry{
		entryAt(base.Add(1*time.Minute), "older group message alpha"),
		entryAt(base.Add(20*time.Minute), "newer group message beta"),
	}

	summary := analyzer.Summarize(analyzer.Label(entries), w)
	require.Len(t, summary.Groups, 2)
	// Equal counts: the more recently seen group comes first.
	assert.Equal(t, "newer group message beta", summary.Groups[0].Signature)
}

func TestSummarizeSampleCap(t *testing.T) {
	analyzer := New(nil)
	w := summaryWindow()

	var entries []models.LogEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entryAt(w.Start.Add(time.Duration(i)*time.Minute), "repeated failure"))
	}

	summary := analyzer.Summarize(analyzer.Label(entries), w)
	require.Len(t, summary.Groups, 1)
	assert.Equal(t, 10, summary.Groups[0].Count)
	assert.Len(t, summary.Groups[0].Samples, 3)
}

func TestSummarizeEmpty(t *testing.T) {
	analyzer := New(nil)
	summary := analyzer.Summarize(nil, summaryWindow())

	assert.Equal(t, 0, summary.TotalEntries)
	assert.Empty(t, summary.Groups)
	assert.Nil(t, summary.Timeline)
}

func TestBuildTimeline(t *testing.T) {
	t.Run("forty minute window yields two-minute buckets", func(t *testing.T) {
		w := summaryWindow()
		labeled := []Classified{
			{Entry: entryAt(w.Start, "a")},
			{Entry: entryAt(w.Start.Add(39*time.Minute), "b")},
		}

		buckets := buildTimeline(labeled, w)
		require.Len(t, buckets, 20)
		assert.Equal(t, w.Start, buckets[0].Start)
		assert.Equal(t, w.Start.Add(2*time.Minute), buckets[1].Start)
		assert.Equal(t, 1, buckets[0].Count)
		assert.Equal(t, 1, buckets[19].Count)
	})

	t.Run("short window uses one-minute floor", func(t *testing.T) {
		w := window.Window{
			Start: time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 15, 11, 5, 0, 0, time.UTC),
		}
		labeled := []Classified{{Entry: entryAt(w.Start.Add(90 * time.Second), "a")}}

		buckets := buildTimeline(labeled, w)
		require.Len(t, buckets, 5)
		assert.Equal(t, 1, buckets[1].Count)
	})

	t.Run("out of range entries clamp to edge buckets", func(t *testing.T) {
		w := summaryWindow()
		labeled := []Classified{
			{Entry: entryAt(w.Start.Add(-time.Hour), "early")},
			{Entry: entryAt(w.End.Add(time.Hour), "late")},
		}

		buckets := buildTimeline(labeled, w)
		total := 0
		for _, b := range buckets {
			total += b.Count
		}
		assert.Equal(t, 2, total)
		assert.Equal(t, 1, buckets[0].Count)
		assert.Equal(t, 1, buckets[len(buckets)-1].Count)
	})

	t.Run("entry on the end boundary lands in the last bucket", func(t *testing.T) {
		w := summaryWindow()
		labeled := []Classified{{Entry: entryAt(w.End, "boundary")}}

		buckets := buildTimeline(labeled, w)
		assert.Equal(t, 1, buckets[len(buckets)-1].Count)
	})
}
