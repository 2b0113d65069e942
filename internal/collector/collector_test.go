package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	triageerrors "logtriage/internal/errors"
	"logtriage/internal/models"
	"logtriage/internal/window"
)

// fakeSource returns a canned batch, optionally with an error, and records
// the filter it was queried with.
type fakeSource struct {
	result     FetchResult
	err        error
	lastFilter string
}

func (f *fakeSource) Fetch(_ context.Context, filter string, _, _ time.Time, _ int) (FetchResult, error) {
	f.lastFilter = filter
	return f.result, f.err
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Close() error { return nil }

func testWindow() window.Window {
	return window.Window{
		Start:         time.Date(2024, 3, 15, 10, 55, 0, 0, time.UTC),
		End:           time.Date(2024, 3, 15, 11, 20, 0, 0, time.UTC),
		ResourceType:  "cloud_run_revision",
		SeverityFloor: models.SeverityWarning,
		MaxEntries:    100,
	}
}

func TestCollect(t *testing.T) {
	ts := time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)

	t.Run("normalizes all records", func(t *testing.T) {
		source := &fakeSource{result: FetchResult{Records: []RawRecord{
			{Timestamp: ts, Severity: "ERROR", TextPayload: "first"},
			{Timestamp: ts.Add(time.Second), Severity: "WARNING", TextPayload: "second"},
		}}}

		c := New(source, zap.NewNop())
		res, err := c.Collect(context.Background(), testWindow())
		require.NoError(t, err)

		assert.Len(t, res.Entries, 2)
		assert.Equal(t, 0, res.Skipped)
		assert.False(t, res.Truncated)
		assert.Equal(t, "first", res.Entries[0].Message)
	})

	t.Run("filter is rendered from the window", func(t *testing.T) {
		source := &fakeSource{}
		c := New(source, zap.NewNop())

		res, err := c.Collect(context.Background(), testWindow())
		require.NoError(t, err)

		assert.Equal(t, testWindow().Filter(), source.lastFilter)
		assert.Equal(t, source.lastFilter, res.Filter)
	})

	t.Run("bad records are skipped and counted", func(t *testing.T) {
		source := &fakeSource{result: FetchResult{Records: []RawRecord{
			{Timestamp: ts, TextPayload: "good"},
			{TextPayload: "no timestamp"},
			{Timestamp: ts.Add(time.Second), TextPayload: "also good"},
			{TextPayload: "also no timestamp"},
		}}}

		c := New(source, zap.NewNop())
		res, err := c.Collect(context.Background(), testWindow())
		require.NoError(t, err)

		assert.Len(t, res.Entries, 2)
		assert.Equal(t, 2, res.Skipped)
	})

	t.Run("zero records is success", func(t *testing.T) {
		c := New(&fakeSource{}, zap.NewNop())
		res, err := c.Collect(context.Background(), testWindow())
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
	})

	t.Run("source error keeps partial batch", func(t *testing.T) {
		source := &fakeSource{
			result: FetchResult{
				Records:   []RawRecord{{Timestamp: ts, TextPayload: "partial"}},
				Truncated: true,
			},
			err: triageerrors.NewAdapterError("fetch", context.DeadlineExceeded),
		}

		c := New(source, zap.NewNop())
		res, err := c.Collect(context.Background(), testWindow())
		require.Error(t, err)
		assert.True(t, triageerrors.IsRetryableError(err))

		require.NotNil(t, res)
		assert.Len(t, res.Entries, 1)
		assert.True(t, res.Truncated)
	})

	t.Run("truncation propagates", func(t *testing.T) {
		source := &fakeSource{result: FetchResult{
			Records:   []RawRecord{{Timestamp: ts, TextPayload: "one"}},
			Truncated: true,
		}}

		c := New(source, zap.NewNop())
		res, err := c.Collect(context.Background(), testWindow())
		require.NoError(t, err)
		assert.True(t, res.Truncated)
	})
}

func TestSortByTimestamp(t *testing.T) {
	base := time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)
	records := []RawRecord{
		{Timestamp: base.Add(2 * time.Second), InsertID: "c"},
		{Timestamp: base, InsertID: "a"},
		{Timestamp: base.Add(time.Second), InsertID: "b1"},
		{Timestamp: base.Add(time.Second), InsertID: "b2"},
	}

	sortByTimestamp(records)

	got := make([]string, len(records))
	for i, r := range records {
		got[i] = r.InsertID
	}
	// Equal timestamps keep arrival order.
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, got)
}
