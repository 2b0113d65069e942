package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtriage/internal/models"
	"logtriage/internal/window"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "empty",
			pairs: nil,
			want:  nil,
		},
		{
			name:  "single pair",
			pairs: []string{"service_name=api"},
			want:  map[string]string{"service_name": "api"},
		},
		{
			name:  "multiple pairs",
			pairs: []string{"service_name=api", "location=us-central1"},
			want:  map[string]string{"service_name": "api", "location": "us-central1"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"query=a=b"},
			want:  map[string]string{"query": "a=b"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"service_name"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=api"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabels(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowOptionsResolve(t *testing.T) {
	t.Run("lookback", func(t *testing.T) {
		opts := WindowOptions{
			HoursBack:     2,
			ResourceType:  "gce_instance",
			MinutesBefore: 5,
			MinutesAfter:  5,
			MaxEntries:    50,
		}
		inc, win, err := opts.resolve(window.TriageFloor)
		require.NoError(t, err)
		assert.Nil(t, inc)
		assert.Equal(t, "gce_instance", win.ResourceType)
		assert.Equal(t, 50, win.MaxEntries)
		assert.Equal(t, models.SeverityWarning, win.SeverityFloor)
	})

	t.Run("incident file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "incident.json")
		data := `{
  "incident": {
    "incident_id": "0.abc",
    "started_at": 1710500400,
    "scoping_project_id": "my-project",
    "resource": {"type": "cloud_run_revision", "labels": {"service_name": "api"}}
  }
}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		opts := WindowOptions{
			IncidentFile:  path,
			MinutesBefore: 5,
			MinutesAfter:  5,
		}
		inc, win, err := opts.resolve(window.CollectFloor)
		require.NoError(t, err)
		require.NotNil(t, inc)
		assert.Equal(t, "0.abc", inc.IncidentID)
		assert.Equal(t, "cloud_run_revision", win.ResourceType)
		assert.Equal(t, "my-project", opts.projectID(inc))
	})

	t.Run("explicit project flag wins", func(t *testing.T) {
		opts := WindowOptions{Project: "flag-project"}
		assert.Equal(t, "flag-project", opts.projectID(nil))
	})

	t.Run("invalid lookback", func(t *testing.T) {
		opts := WindowOptions{HoursBack: 0, ResourceType: "gce_instance"}
		_, _, err := opts.resolve(window.TriageFloor)
		require.Error(t, err)
	})
}

func TestLoadClassifier(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		c, err := loadClassifier("")
		require.NoError(t, err)
		assert.NotEmpty(t, c.Rules())
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := loadClassifier(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
