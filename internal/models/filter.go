package models

import (
	"strings"
	"time"
)

// Filter is a conjunction of optional predicates over log entries.
// An empty field imposes no constraint.
type Filter struct {
	Level          string `json:"level,omitempty"`
	Message        string `json:"message,omitempty"`
	ResourceID     string `json:"resourceId,omitempty"`
	TraceID        string `json:"traceId,omitempty"`
	SpanID         string `json:"spanId,omitempty"`
	Commit         string `json:"commit,omitempty"`
	TimestampStart string `json:"timestamp_start,omitempty"`
	TimestampEnd   string `json:"timestamp_end,omitempty"`
}

// Query parameter names understood by the HTTP layer and the client.
const (
	ParamLevel          = "level"
	ParamMessage        = "message"
	ParamResourceID     = "resourceId"
	ParamTraceID        = "traceId"
	ParamSpanID         = "spanId"
	ParamCommit         = "commit"
	ParamTimestampStart = "timestamp_start"
	ParamTimestampEnd   = "timestamp_end"
)

// Params returns the non-empty filter values keyed by query parameter name.
func (f Filter) Params() map[string]string {
	params := make(map[string]string, 8)
	set := func(k, v string) {
		if v != "" {
			params[k] = v
		}
	}
	set(ParamLevel, f.Level)
	set(ParamMessage, f.Message)
	set(ParamResourceID, f.ResourceID)
	set(ParamTraceID, f.TraceID)
	set(ParamSpanID, f.SpanID)
	set(ParamCommit, f.Commit)
	set(ParamTimestampStart, f.TimestampStart)
	set(ParamTimestampEnd, f.TimestampEnd)
	return params
}

// Matcher is a Filter prepared for repeated evaluation.
type Matcher struct {
	f       Filter
	message string
	start   time.Time
	end     time.Time
	ranged  bool
	hasFrom bool
	hasTo   bool
}

// Compile lowers the message needle and parses the range bounds once.
// A bound that cannot be parsed imposes no constraint at all, so it does not
// exclude entries with an unparsable timestamp either.
func (f Filter) Compile() *Matcher {
	m := &Matcher{f: f, message: strings.ToLower(f.Message)}
	if f.TimestampStart != "" {
		m.start, m.hasFrom = ParseTimestamp(f.TimestampStart)
	}
	if f.TimestampEnd != "" {
		m.end, m.hasTo = ParseTimestamp(f.TimestampEnd)
	}
	m.ranged = m.hasFrom || m.hasTo
	return m
}

// Match reports whether e satisfies every predicate of the filter.
func (f Filter) Match(e LogEntry) bool {
	return f.Compile().Match(e)
}

// Match reports whether e satisfies every predicate.
// Entries with an unparsable timestamp never match a range-bounded filter.
func (m *Matcher) Match(e LogEntry) bool {
	f := m.f
	if f.Level != "" && string(e.Level) != f.Level {
		return false
	}
	if m.message != "" && !strings.Contains(strings.ToLower(e.Message), m.message) {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if f.SpanID != "" && e.SpanID != f.SpanID {
		return false
	}
	if f.Commit != "" && e.Commit != f.Commit {
		return false
	}
	if !m.ranged {
		return true
	}

	ts, ok := e.Time()
	if !ok {
		return false
	}
	if m.hasFrom && ts.Before(m.start) {
		return false
	}
	if m.hasTo && ts.After(m.end) {
		return false
	}
	return true
}
