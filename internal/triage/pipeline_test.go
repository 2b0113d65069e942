package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtriage/internal/classify"
	"logtriage/internal/collector"
	triageerrors "logtriage/internal/errors"
	"logtriage/internal/incident"
	"logtriage/internal/window"
)

type fakeSource struct {
	result collector.FetchResult
	err    error
}

func (f *fakeSource) Fetch(context.Context, string, time.Time, time.Time, int) (collector.FetchResult, error) {
	return f.result, f.err
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Close() error { return nil }

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testPipeline(source collector.Source) *Pipeline {
	return New(Config{
		Source:    source,
		Clock:     func() time.Time { return testNow },
		ProjectID: "my-project",
	})
}

func testWindow() window.Window {
	return window.Window{
		Start:        testNow.Add(-40 * time.Minute),
		End:          testNow,
		ResourceType: "cloud_run_revision",
		MaxEntries:   100,
	}
}

func incidentScenario() *fakeSource {
	base := testNow.Add(-30 * time.Minute)
	records := []collector.RawRecord{
		{Timestamp: base.Add(1 * time.Minute), Severity: "ERROR", TextPayload: "ZeroDivisionError: division by zero in step 4"},
		{Timestamp: base.Add(2 * time.Minute), Severity: "ERROR", TextPayload: "ZeroDivisionError: division by zero in step 7"},
		{Timestamp: base.Add(3 * time.Minute), Severity: "ERROR", TextPayload: "ZeroDivisionError: division by zero in step 9"},
		{Timestamp: base.Add(4 * time.Minute), Severity: "ERROR", TextPayload: "ZeroDivisionError: division by zero in step 12"},
		{Timestamp: base.Add(5 * time.Minute), Severity: "WARNING", TextPayload: "request timed out after 30s"},
		{Timestamp: base.Add(6 * time.Minute), Severity: "WARNING", TextPayload: "request timed out after 45s"},
		{Timestamp: base.Add(7 * time.Minute), Severity: "WARNING", TextPayload: "request timed out after 60s"},
		{Timestamp: base.Add(8 * time.Minute), Severity: "ERROR", TextPayload: "weird state flag 17"},
		{Timestamp: base.Add(9 * time.Minute), Severity: "ERROR", TextPayload: "weird state flag 23"},
		{Timestamp: base.Add(10 * time.Minute), Severity: "ERROR", TextPayload: "weird state flag 31"},
	}
	return &fakeSource{result: collector.FetchResult{Records: records}}
}

func TestTriage(t *testing.T) {
	p := testPipeline(incidentScenario())

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{})
	require.NoError(t, err)

	t.Run("collection metadata", func(t *testing.T) {
		assert.Equal(t, testNow, rep.Collection.CollectedAt)
		assert.Equal(t, "my-project", rep.Collection.ProjectID)
		assert.Equal(t, 10, rep.Collection.TotalEntries)
		assert.False(t, rep.Collection.Truncated)
	})

	t.Run("summary counts", func(t *testing.T) {
		require.NotNil(t, rep.Summary)
		assert.Equal(t, 10, rep.Summary.TotalEntries)
		assert.Equal(t, 4, rep.Summary.CountsByType[classify.CalculationError])
		assert.Equal(t, 3, rep.Summary.CountsByType[classify.Timeout])
		assert.Equal(t, 3, rep.Summary.CountsByType[classify.Unknown])
	})

	t.Run("recommendations ordered by count then priority", func(t *testing.T) {
		require.Len(t, rep.Recommendations, 3)
		assert.Equal(t, classify.CalculationError, rep.Recommendations[0].Type)
		assert.Equal(t, classify.Timeout, rep.Recommendations[1].Type)
		assert.Equal(t, classify.Unknown, rep.Recommendations[2].Type)
	})

	t.Run("timeline sums to total", func(t *testing.T) {
		total := 0
		for _, b := range rep.Summary.Timeline {
			total += b.Count
		}
		assert.Equal(t, 10, total)
	})

	t.Run("raw entries omitted by default", func(t *testing.T) {
		assert.Empty(t, rep.Logs)
	})
}

func TestTriageDetailed(t *testing.T) {
	p := testPipeline(incidentScenario())

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{Detailed: true})
	require.NoError(t, err)
	assert.Len(t, rep.Logs, 10)
}

func TestTriageErrorTypeFilter(t *testing.T) {
	p := testPipeline(incidentScenario())

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{
		ErrorType: classify.Timeout,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Summary.TotalEntries)
	assert.Equal(t, map[classify.ErrorType]int{classify.Timeout: 3}, rep.Summary.CountsByType)
	require.Len(t, rep.Summary.Groups, 1)
	assert.Equal(t, classify.Timeout, rep.Summary.Groups[0].Type)
}

func TestTriageMaxGroups(t *testing.T) {
	p := testPipeline(incidentScenario())

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{MaxGroups: 1})
	require.NoError(t, err)

	require.Len(t, rep.Summary.Groups, 1)
	// The biggest group survives the cap.
	assert.Equal(t, 4, rep.Summary.Groups[0].Count)
}

func TestTriageEmptyWindow(t *testing.T) {
	p := testPipeline(&fakeSource{})

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Summary.TotalEntries)
	assert.Empty(t, rep.Summary.Groups)
	require.Len(t, rep.Recommendations, 1)
	assert.Equal(t, "no errors found in window", rep.Recommendations[0].Action)
}

func TestTriagePartialResults(t *testing.T) {
	ts := testNow.Add(-10 * time.Minute)
	source := &fakeSource{
		result: collector.FetchResult{
			Records:   []collector.RawRecord{{Timestamp: ts, TextPayload: "connection refused"}},
			Truncated: true,
		},
		err: triageerrors.NewAdapterError("fetch", assert.AnError),
	}
	p := testPipeline(source)

	rep, err := p.Triage(context.Background(), testWindow(), nil, TriageOptions{})
	require.Error(t, err)

	require.NotNil(t, rep)
	assert.True(t, rep.Collection.Truncated)
	assert.Equal(t, 1, rep.Summary.TotalEntries)
	assert.Equal(t, 1, rep.Summary.CountsByType[classify.NetworkError])
}

func TestCollect(t *testing.T) {
	ended := testNow.Add(-20 * time.Minute)
	inc := &incident.Incident{
		IncidentID: "0.abc",
		StartedAt:  testNow.Add(-35 * time.Minute),
		EndedAt:    &ended,
		Resource:   incident.Resource{Type: "cloud_run_revision", Labels: map[string]string{"project_id": "my-project"}},
	}

	t.Run("full report", func(t *testing.T) {
		p := testPipeline(incidentScenario())
		rep, err := p.Collect(context.Background(), testWindow(), inc, CollectOptions{Stats: true})
		require.NoError(t, err)

		assert.Len(t, rep.Logs, 10)
		require.NotNil(t, rep.Incident)
		assert.Equal(t, "0.abc", rep.Incident.IncidentID)
		require.NotNil(t, rep.Stats)
		assert.Equal(t, 7, rep.Stats.BySeverity["ERROR"])
		assert.Equal(t, 3, rep.Stats.BySeverity["WARNING"])
	})

	t.Run("no metadata strips entries", func(t *testing.T) {
		p := testPipeline(incidentScenario())
		rep, err := p.Collect(context.Background(), testWindow(), nil, CollectOptions{NoMetadata: true})
		require.NoError(t, err)

		require.NotEmpty(t, rep.Logs)
		for _, e := range rep.Logs {
			assert.Empty(t, e.InsertID)
			assert.NotEmpty(t, e.Message)
		}
	})

	t.Run("zero entries is success", func(t *testing.T) {
		p := testPipeline(&fakeSource{})
		rep, err := p.Collect(context.Background(), testWindow(), nil, CollectOptions{})
		require.NoError(t, err)
		assert.Empty(t, rep.Logs)
		assert.Nil(t, rep.Stats)
	})
}
