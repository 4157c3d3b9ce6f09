package logger

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is a single record captured by MockLogger.
type Entry struct {
	Level   string
	Message string
	Fields  []interface{}
}

// MockLogger records log calls in memory so tests can assert on them.
type MockLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(level, msg string, fields []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Message: msg, Fields: fields})
}

func (m *MockLogger) Info(msg string, fields ...interface{})  { m.record("info", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...interface{}) { m.record("error", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...interface{})  { m.record("warn", msg, fields) }
func (m *MockLogger) Debug(msg string, fields ...interface{}) { m.record("debug", msg, fields) }

// Fatal records the entry but does not exit.
func (m *MockLogger) Fatal(msg string, fields ...interface{}) { m.record("fatal", msg, fields) }

// Entries returns a copy of everything recorded so far.
func (m *MockLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Count returns how many entries were recorded at the given level.
func (m *MockLogger) Count(level string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// String renders the captured entries, one per line.
func (m *MockLogger) String() string {
	var b strings.Builder
	for _, e := range m.Entries() {
		fmt.Fprintf(&b, "%s %s %v\n", e.Level, e.Message, e.Fields)
	}
	return b.String()
}
