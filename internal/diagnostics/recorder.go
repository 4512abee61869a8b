// Package diagnostics surfaces skips, failures, and completions as
// persisted, structured records.
package diagnostics

import (
	"context"

	"github.com/rs/zerolog"

	"pricewatcher/internal/storage"
)

// Severity levels for persisted records.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Recorder accepts diagnostics from the pipeline. Implementations decide
// where records end up; the pipeline never queries them back.
type Recorder interface {
	Info(ctx context.Context, message string)
	Warning(ctx context.Context, message string)
	Error(ctx context.Context, message string, stack string)
}

// DBRecorder persists records through a LogStore and mirrors each one into
// the process log. A failed insert degrades to log-only.
type DBRecorder struct {
	logs   storage.LogStore
	logger zerolog.Logger
}

// NewDBRecorder constructs a database-backed recorder.
func NewDBRecorder(logs storage.LogStore, logger zerolog.Logger) *DBRecorder {
	return &DBRecorder{
		logs:   logs,
		logger: logger.With().Str("component", "diagnostics").Logger(),
	}
}

// Info records an informational message.
func (r *DBRecorder) Info(ctx context.Context, message string) {
	r.logger.Info().Msg(message)
	r.persist(ctx, storage.LogEntry{Message: message, Severity: SeverityInfo})
}

// Warning records a recoverable skip.
func (r *DBRecorder) Warning(ctx context.Context, message string) {
	r.logger.Warn().Msg(message)
	r.persist(ctx, storage.LogEntry{Message: message, Severity: SeverityWarning})
}

// Error records a failure, optionally with a stack trace.
func (r *DBRecorder) Error(ctx context.Context, message string, stack string) {
	r.logger.Error().Msg(message)
	entry := storage.LogEntry{Message: message, Severity: SeverityError}
	if stack != "" {
		entry.Stack = &stack
	}
	r.persist(ctx, entry)
}

func (r *DBRecorder) persist(ctx context.Context, entry storage.LogEntry) {
	if r.logs == nil {
		return
	}
	if err := r.logs.InsertLog(ctx, entry); err != nil {
		r.logger.Error().Err(err).Msg("failed to persist diagnostics record")
	}
}

// Nop discards every record. Useful in tests.
type Nop struct{}

func (Nop) Info(context.Context, string)          {}
func (Nop) Warning(context.Context, string)       {}
func (Nop) Error(context.Context, string, string) {}

var (
	_ Recorder = (*DBRecorder)(nil)
	_ Recorder = Nop{}
)
