package internal

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"ERROR", LogLevelError, true},
		{"warn", LogLevelWarn, true},
		{" debug ", LogLevelDebug, true},
		{"TRACE", LogLevelTrace, true},
		{"", LogLevelInfo, false},
		{"verbose", LogLevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := captureLog(t)
	l := NewLogger(LogLevelWarn)

	l.Info("hidden")
	l.Debug("hidden")
	l.Warn("shown %d", 1)
	l.Error("shown %d", 2)

	assert.Equal(t, "[WARN] shown 1\n[ERROR] shown 2\n", buf.String())
}

func TestWithComponentPrefix(t *testing.T) {
	buf := captureLog(t)
	l := NewLogger(LogLevelDebug).WithComponent("Scoring")

	l.Debug("miss for %s", "35|1500000")

	assert.Equal(t, "[DEBUG] [Scoring] miss for 35|1500000\n", buf.String())
}

func TestTraceNeedsTraceLevel(t *testing.T) {
	buf := captureLog(t)
	NewLogger(LogLevelDebug).Trace("hidden")
	NewLogger(LogLevelTrace).WithComponent("Scoring").Trace("predict %s", "hit")

	assert.Equal(t, "[TRACE] [Scoring] predict hit\n", buf.String())
}
