// Package slog is the structured logger interface used throughout the
// dispatch plane. The default implementation is backed by zap.
package slog

import (
	"tcpjobq/lib/core"
)

// LogRecord holds data for a single log record.
type LogRecord struct {
	Msg        string         // Msg is an optional log message
	Error      error          // Error is an optional error
	Details    any            // Details are optional structured details
	StackTrace string         // StackTrace is optional stack trace
	ClientID   *core.ClientID // ClientID is the id of the client involved, if known.
	Argument   *core.Argument // Argument is the argument involved, if known.
}

// Logger is an abstract log interface for the server and client.
//
// Multiple goroutines may invoke methods on a Logger simultaneously.
type Logger interface {
	Info(record *LogRecord)
	Warn(record *LogRecord)
	Error(record *LogRecord)
}

// RecordingLogger captures all logged events in memory.
// It is designed for use as a test fixture.
type RecordingLogger struct {
	Events []Event
}

type Event struct {
	Level string
	*LogRecord
}

func (l *RecordingLogger) Info(record *LogRecord) {
	l.Events = append(l.Events, Event{Level: "info", LogRecord: record})
}

func (l *RecordingLogger) Warn(record *LogRecord) {
	l.Events = append(l.Events, Event{Level: "warn", LogRecord: record})
}

func (l *RecordingLogger) Error(record *LogRecord) {
	l.Events = append(l.Events, Event{Level: "error", LogRecord: record})
}

var _ Logger = (*RecordingLogger)(nil) // type check
