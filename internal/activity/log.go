// Package activity provides the per-request audit trail returned to users.
//
// A Log is an append-only, insertion-ordered list of entries describing every
// significant step of a generation request: attempts, successes and failures.
// It is owned by one request and returned in full on every exit path.
package activity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status classifies an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// Actions recorded by the continuation flow.
const (
	ActionRequestReceived         = "request_received"
	ActionValidationError         = "validation_error"
	ActionAuthError               = "auth_error"
	ActionConfigError             = "config_error"
	ActionAlreadyComplete         = "already_complete"
	ActionContinuationAttempt     = "continuation_attempt"
	ActionGatewayError            = "gateway_error"
	ActionMalformedOutput         = "malformed_output"
	ActionEmptyContinuation       = "empty_continuation"
	ActionContinuationAppended    = "continuation_appended"
	ActionContinuationComplete    = "continuation_complete"
	ActionMaxContinuationsReached = "max_continuations_reached"
	ActionCancelled               = "cancelled"
	ActionDocumentLoaded          = "document_loaded"
	ActionDocumentSaved           = "document_saved"
	ActionVersionConflict         = "version_conflict"
	ActionEventPublishFailed      = "event_publish_failed"
)

// Entry is one immutable step in the log.
type Entry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Action    string    `json:"action" yaml:"action"`
	Status    Status    `json:"status" yaml:"status"`
	Details   string    `json:"details,omitempty" yaml:"details,omitempty"`
}

// Log is an ordered activity log. The zero value is not usable; use New.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger mirrors every recorded entry to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		entries: make([]Entry, 0, 16),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry. Timestamps never go backwards: a clock that
// regresses is clamped to the previous entry's time.
func (l *Log) Record(action string, status Status, details string) {
	l.mu.Lock()
	ts := l.now().UTC()
	if n := len(l.entries); n > 0 && ts.Before(l.entries[n-1].Timestamp) {
		ts = l.entries[n-1].Timestamp
	}
	entry := Entry{
		Timestamp: ts,
		Action:    action,
		Status:    status,
		Details:   details,
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.mirror(entry)
}

// Recordf appends an entry with formatted details.
func (l *Log) Recordf(action string, status Status, format string, args ...any) {
	l.Record(action, status, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Count returns how many entries have the given action.
func (l *Log) Count(action string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func (l *Log) mirror(e Entry) {
	if l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("activity.action", e.Action),
		zap.String("activity.status", string(e.Status)),
	}
	if e.Details != "" {
		fields = append(fields, zap.String("activity.details", e.Details))
	}
	if e.Status == StatusError {
		l.logger.Warn("activity", fields...)
		return
	}
	l.logger.Debug("activity", fields...)
}

// Count returns how many entries in entries have the given action.
func Count(entries []Entry, action string) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
