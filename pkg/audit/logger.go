package audit

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campusgate/pkg/observability"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

type contextKey string

// AuditLoggerKey is the context key for the audit logger
const AuditLoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOpLogger{}
}

// Emit records event on logger. A sink failure is logged and otherwise
// ignored so auditing never fails the request it describes.
func Emit(ctx context.Context, logger Logger, event *Event) {
	if logger == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithField("event_type", string(event.Type)).
			Warn("audit event dropped")
	}
}

// NoOpLogger discards every event
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *Event) error { return nil }
func (NoOpLogger) Close() error                      { return nil }

// LogrusLogger writes each event as one JSON line through logrus
type LogrusLogger struct {
	log    *logrus.Logger
	closer io.Closer
}

// NewLogrusLogger writes events to out
func NewLogrusLogger(out io.Writer) *LogrusLogger {
	if out == nil {
		out = os.Stdout
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	l := &LogrusLogger{log: log}
	if c, ok := out.(io.Closer); ok && out != os.Stdout && out != os.Stderr {
		l.closer = c
	}
	return l
}

// OpenFileLogger appends events to the file at path
func OpenFileLogger(path string) (*LogrusLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return NewLogrusLogger(f), nil
}

// Log implements Logger
func (l *LogrusLogger) Log(_ context.Context, e *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_id":   e.ID,
		"event_type": string(e.Type),
		"status":     string(e.Status),
	}
	setIf := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	setIf("user_id", e.UserID)
	setIf("email", e.Email)
	setIf("role", string(e.Role))
	setIf("resource_id", e.ResourceID)
	setIf("ip_address", e.IPAddress)
	setIf("user_agent", e.UserAgent)
	setIf("request_id", e.RequestID)
	setIf("method", e.Method)
	setIf("path", e.Path)
	if len(e.Metadata) > 0 {
		fields["metadata"] = e.Metadata
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	l.log.WithTime(e.Timestamp).WithFields(fields).Info(msg)
	return nil
}

// Close closes the underlying file, if any
func (l *LogrusLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
