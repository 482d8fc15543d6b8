package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLogSubjectPrefix is the subject prefix component log entries are
// published under: <prefix>.<component>.
const DefaultLogSubjectPrefix = "rtkit.logs"

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	// LogLevelDebug represents debug-level logs
	LogLevelDebug LogLevel = "DEBUG"
	// LogLevelInfo represents informational logs
	LogLevelInfo LogLevel = "INFO"
	// LogLevelWarn represents warning logs
	LogLevelWarn LogLevel = "WARN"
	// LogLevelError represents error logs
	LogLevelError LogLevel = "ERROR"
)

// LogEntry represents a structured log entry published for remote consumers
// such as a monitoring console.
type LogEntry struct {
	Timestamp string   `json:"timestamp"` // RFC3339 format
	Level     LogLevel `json:"level"`
	Component string   `json:"component"`
	Context   string   `json:"context,omitempty"` // execution context id
	Message   string   `json:"message"`
	Error     string   `json:"error,omitempty"`
}

// LogPublisher sends encoded log entries to a subject.
// *natsclient.Client satisfies it.
type LogPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Logger provides structured logging for a component. It wraps a slog.Logger
// for local output and, when a publisher is configured, also publishes every
// entry so hook failures can be watched remotely.
type Logger struct {
	componentName string
	subject       string
	pub           LogPublisher
	logger        *slog.Logger
	enabled       bool // whether remote publishing is enabled
}

// NewLogger creates a component logger. pub may be nil for local-only logging.
func NewLogger(componentName string, pub LogPublisher, prefix string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultLogSubjectPrefix
	}
	return &Logger{
		componentName: componentName,
		subject:       fmt.Sprintf("%s.%s", prefix, componentName),
		pub:           pub,
		logger:        logger.With("component", componentName),
		enabled:       pub != nil,
	}
}

// Slog returns the local logger carrying the component attribute.
func (cl *Logger) Slog() *slog.Logger {
	return cl.logger
}

// Subject returns the subject entries are published on.
func (cl *Logger) Subject() string {
	return cl.subject
}

// Debug logs a debug-level message
func (cl *Logger) Debug(msg string, args ...any) {
	cl.logger.Debug(msg, args...)
	cl.publish(context.Background(), LogLevelDebug, "", msg, nil)
}

// Info logs an info-level message
func (cl *Logger) Info(msg string, args ...any) {
	cl.logger.Info(msg, args...)
	cl.publish(context.Background(), LogLevelInfo, "", msg, nil)
}

// Warn logs a warning-level message
func (cl *Logger) Warn(msg string, args ...any) {
	cl.logger.Warn(msg, args...)
	cl.publish(context.Background(), LogLevelWarn, "", msg, nil)
}

// Error logs an error-level message with optional error details
func (cl *Logger) Error(msg string, err error, args ...any) {
	cl.logger.Error(msg, append([]any{"error", err}, args...)...)
	cl.publish(context.Background(), LogLevelError, "", msg, err)
}

// ContextError logs a failure attributed to one execution context.
func (cl *Logger) ContextError(ctx context.Context, ecID, msg string, err error, args ...any) {
	cl.logger.ErrorContext(ctx, msg, append([]any{"ec", ecID, "error", err}, args...)...)
	cl.publish(ctx, LogLevelError, ecID, msg, err)
}

// publish sends a log entry with context cancellation support
func (cl *Logger) publish(ctx context.Context, level LogLevel, ecID, message string, err error) {
	if !cl.enabled {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: cl.componentName,
		Context:   ecID,
		Message:   message,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	data, mErr := json.Marshal(entry)
	if mErr != nil {
		cl.logger.Error("Failed to marshal log entry", "error", mErr)
		return
	}

	if pErr := cl.pub.Publish(ctx, cl.subject, data); pErr != nil {
		// Publishing failures stay local; logging must never fail the caller.
		cl.logger.Debug("Failed to publish log entry", "error", pErr, "subject", cl.subject)
	}
}
