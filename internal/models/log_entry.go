// Package models contains domain types for the log ingestion service.
package models

import "time"

// Level is the severity of a log entry.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Levels lists the accepted levels in display order.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// Valid reports whether l is one of the accepted levels.
func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// LogEntry represents a single structured log record as submitted by a client.
// The timestamp is kept exactly as received.
type LogEntry struct {
	Level      Level          `json:"level" msgpack:"level"`
	Message    string         `json:"message" msgpack:"message"`
	ResourceID string         `json:"resourceId" msgpack:"resourceId"`
	Timestamp  string         `json:"timestamp" msgpack:"timestamp"`
	TraceID    string         `json:"traceId" msgpack:"traceId"`
	SpanID     string         `json:"spanId" msgpack:"spanId"`
	Commit     string         `json:"commit" msgpack:"commit"`
	Metadata   map[string]any `json:"metadata" msgpack:"metadata"`
}

// Time parses the entry timestamp. ok is false when it cannot be parsed.
func (e LogEntry) Time() (t time.Time, ok bool) {
	return ParseTimestamp(e.Timestamp)
}

// timestampLayouts are tried in order. Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date-time. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
