package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		name    string
		message string
		want    ErrorType
	}{
		{
			name:    "file not found",
			message: "FileNotFoundError: /data/input.csv not found",
			want:    FileNotFound,
		},
		{
			name:    "no such file",
			message: "open config.yaml: no such file or directory",
			want:    FileNotFound,
		},
		{
			name:    "division by zero",
			message: "ZeroDivisionError: division by zero in aggregate step",
			want:    CalculationError,
		},
		{
			name:    "timeout",
			message: "request to upstream timed out after 30s",
			want:    Timeout,
		},
		{
			name:    "memory",
			message: "container killed: out of memory",
			want:    MemoryError,
		},
		{
			name:    "network",
			message: "connection refused: upstream unreachable",
			want:    NetworkError,
		},
		{
			name:    "permission",
			message: "permission denied on bucket gs://reports",
			want:    PermissionError,
		},
		{
			name:    "validation",
			message: "invalid value for field amount",
			want:    ValidationError,
		},
		{
			name:    "generic exception",
			message: "Traceback (most recent call last):",
			want:    Exception,
		},
		{
			name:    "bare error keyword",
			message: "error: something broke",
			want:    Exception,
		},
		{
			name:    "no match",
			message: "request completed with status 200",
			want:    Unknown,
		},
		{
			name:    "empty message",
			message: "",
			want:    Unknown,
		},
		{
			name:    "case insensitive",
			message: "PERMISSION DENIED for user svc@proj",
			want:    PermissionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message))
		})
	}
}

// Rule order decides ambiguous messages: the first matching rule wins in both
// directions.
func TestClassifyRuleOrder(t *testing.T) {
	c := New(DefaultRules())

	// "timed out" appears before "memory" in the default table.
	assert.Equal(t, Timeout, c.Classify("allocation timed out due to memory pressure"))

	// Swap the two rules and the same message classifies the other way.
	swapped := New([]Rule{
		{Type: MemoryError, Keywords: []string{"memory"}},
		{Type: Timeout, Keywords: []string{"timed out"}},
	})
	assert.Equal(t, MemoryError, swapped.Classify("allocation timed out due to memory pressure"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(DefaultRules())
	msg := "connection timed out: no such file"
	first := c.Classify(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(msg))
	}
}

func TestAppend(t *testing.T) {
	c := New(nil)
	c.Append(Rule{Type: "QUOTA_ERROR", Keywords: []string{"Quota Exceeded"}})

	assert.Equal(t, ErrorType("QUOTA_ERROR"), c.Classify("429 quota exceeded for project"))
	assert.Equal(t, Unknown, c.Classify("all good"))
}

func TestLoadRules(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := `rules:
  - type: DISK_ERROR
    keywords: ["disk full", "no space left"]
  - type: TIMEOUT
    keywords: ["timeout"]
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		require.Len(t, rules, 2)

		c := New(rules)
		assert.Equal(t, ErrorType("DISK_ERROR"), c.Classify("write failed: no space left on device"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("rule without keywords", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := `rules:
  - type: EMPTY
    keywords: []
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		_, err := LoadRules(path)
		require.Error(t, err)
	})
}
