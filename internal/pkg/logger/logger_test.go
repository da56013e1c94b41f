package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr); SetLevel(INFO); SetRedactPII(true) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLogEmitsJSON(t *testing.T) {
	buf := captureOutput(t)

	Info("dataset loaded", "dataset_id", "ds-1", "rows", 1200)

	entry := lastEntry(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "dataset loaded", entry["msg"])
	assert.Equal(t, "ds-1", entry["dataset_id"])
	assert.Equal(t, float64(1200), entry["rows"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WARN)

	Info("suppressed")
	Warn("kept")

	entry := lastEntry(t, buf)
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestEmailRedaction(t *testing.T) {
	buf := captureOutput(t)

	Info("cleaning candidate", "email", "john.doe@example.com")
	entry := lastEntry(t, buf)
	assert.Equal(t, "jo***@example.com", entry["email"])

	// Embedded emails in generic fields are masked too.
	Warn("parse failure", "detail", "row for alice@example.com is malformed")
	entry = lastEntry(t, buf)
	assert.Equal(t, "row for al***@example.com is malformed", entry["detail"])
}

func TestRedactionDisabled(t *testing.T) {
	buf := captureOutput(t)
	SetRedactPII(false)

	Info("debugging", "email", "john.doe@example.com")
	entry := lastEntry(t, buf)
	assert.Equal(t, "john.doe@example.com", entry["email"])
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"trailing@", "***@***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in), "input %q", tt.in)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("anything else"))
}
