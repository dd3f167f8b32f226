package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(format string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.Format = format
	cfg.Colorize = false
	return New(cfg), &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", DEBUG, true},
		{" Warning ", WARN, true},
		{"ERROR", ERROR, true},
		{"verbose", INFO, false},
		{"", INFO, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger("console")
	l.SetLevel(WARN)

	l.Info("hidden")
	l.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Warnf("cursor for %q not saved", "Airhorn")
	assert.Contains(t, buf.String(), `cursor for "Airhorn" not saved`)
}

func TestJSONFormatWithComponent(t *testing.T) {
	l, buf := newBufferLogger("json")
	l.With("playback").Error("device lost")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "device lost", entry["message"])
	assert.Equal(t, "playback", entry["component"])
}

func TestFatalCallsExit(t *testing.T) {
	l, buf := newBufferLogger("console")
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatalf("no output device: %s", "Speakers")
	assert.Equal(t, 1, code)
	assert.True(t, strings.Contains(buf.String(), "no output device: Speakers"))
}
