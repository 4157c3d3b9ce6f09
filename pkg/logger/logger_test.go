package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestNewWithOptions_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Level: "warn", Output: zapcore.AddSync(&buf)})

	l.Info("dropped")
	l.Warn("Dataset max time is in the future", "dataset", "pageviews", "rawMaxTime", 4102444800000)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Dataset max time is in the future", entry["message"])
	assert.Equal(t, "pageviews", entry["dataset"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNewWithOptions_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Level: "debug", Format: FormatConsole, Output: zapcore.AddSync(&buf)})
	l.Debug("resolving", "dataset", "pageviews")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "resolving")
	assert.Contains(t, out, `{"dataset": "pageviews"}`)
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("dropped", "k", "v")
	zl, ok := l.(interface{ ZapLogger() *zap.Logger })
	assert.True(t, ok)
	assert.NotNil(t, zl.ZapLogger())
}

func TestMockLogger_Records(t *testing.T) {
	m := NewMockLogger()
	m.Warn("dataset max time too big", "dataset", "pageviews")
	m.Info("ok")
	m.Warn("again")

	assert.Equal(t, 2, m.Count("warn"))
	assert.Equal(t, 1, m.Count("info"))
	entries := m.Entries()
	assert.Len(t, entries, 3)
	assert.Equal(t, []interface{}{"dataset", "pageviews"}, entries[0].Fields)
	assert.Contains(t, m.String(), "dataset max time too big")
}
