package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewIsolatedLogger(path)

	l.Info("Session", "document loaded", map[string]interface{}{"pages": 12, "session_id": "s-1"})
	l.Error("LLM", "stream failed", map[string]interface{}{"error": "timeout"})
	l.Warn("Segment", "degraded", nil)
	require.NoError(t, l.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Session", lines[0]["module"])
	assert.Equal(t, "document loaded", lines[0]["message"])
	assert.Equal(t, "s-1", lines[0]["session_id"])
	assert.Equal(t, "timeout", lines[1]["error_ref"])
	_, promoted := lines[2]["session_id"]
	assert.False(t, promoted)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x", "y", nil)
		l.Error("x", "y", map[string]interface{}{"error": "z"})
	})
}
