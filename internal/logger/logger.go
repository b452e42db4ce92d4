package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys used in logging
type ContextKey string

const (
	// LeadIDKey is the context key for lead_id
	LeadIDKey ContextKey = "lead_id"
	// CorrelationIDKey is the context key for correlation_id
	CorrelationIDKey ContextKey = "correlation_id"
)

var defaultLogger = newLogger(os.Stdout, logrus.InfoLevel, "json")

// newLogger builds a logrus logger writing to out
func newLogger(out io.Writer, level logrus.Level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "msg",
			},
		})
	}
	return l
}

// Init initializes the global structured logger with JSON output at info level
func Init() {
	Configure("info", "json")
}

// Configure sets the global logger level ("debug", "info", "warn", "error") and format ("json" or "text")
func Configure(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	defaultLogger = newLogger(os.Stdout, lvl, format)
}

// WithContext creates a log entry with context values (lead_id, correlation_id)
func WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(defaultLogger)
	if ctx == nil {
		return entry
	}

	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		entry = entry.WithField("lead_id", leadID)
	}

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok && correlationID != "" {
		entry = entry.WithField("correlation_id", correlationID)
	}

	return entry
}

// WithLeadID returns a context that tags log lines with lead_id
func WithLeadID(ctx context.Context, leadID string) context.Context {
	return context.WithValue(ctx, LeadIDKey, leadID)
}

// fields turns alternating key/value args into logrus fields
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			f["!BADKEY"] = key
			break
		}
		f[key] = args[i+1]
	}
	return f
}

// Info logs an info message with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WithFields(fields(args)).Info(msg)
}

// Error logs an error message with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WithFields(fields(args)).Error(msg)
}

// Warn logs a warning message with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WithFields(fields(args)).Warn(msg)
}

// Debug logs a debug message with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WithFields(fields(args)).Debug(msg)
}

// LogStageTransition logs a lead moving between pipeline stages
func LogStageTransition(ctx context.Context, leadID string, oldStage, newStage string) {
	WithContext(ctx).WithFields(logrus.Fields{
		"lead_id":   leadID,
		"old_stage": oldStage,
		"new_stage": newStage,
		"timestamp": time.Now().UTC(),
	}).Info("Lead stage transition")
}

// LogSlowOperation logs operations that exceed the threshold
func LogSlowOperation(ctx context.Context, operation string, duration time.Duration) {
	if duration > time.Second {
		WithContext(ctx).WithFields(logrus.Fields{
			"operation":   operation,
			"duration_ms": duration.Milliseconds(),
		}).Warn("Slow operation detected")
	}
}

// LogError logs an error with its message under the error key
func LogError(ctx context.Context, msg string, err error, args ...any) {
	entry := WithContext(ctx).WithFields(fields(args))
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Error(msg)
}
