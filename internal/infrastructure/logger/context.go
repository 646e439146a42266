package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/migrator/internal/domain/migration"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	runIDKey      contextKey = "run_id"
	entityKindKey contextKey = "entity_kind"
	remoteIDKey   contextKey = "remote_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID tags the context with the id of the current migration run
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithEntity tags the context with the entity being processed
func WithEntity(ctx context.Context, kind migration.EntityKind, remoteID string) context.Context {
	ctx = context.WithValue(ctx, entityKindKey, kind)
	return context.WithValue(ctx, remoteIDKey, remoteID)
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// GetRemoteID retrieves the remote id of the entity being processed
func GetRemoteID(ctx context.Context) string {
	id, _ := ctx.Value(remoteIDKey).(string)
	return id
}

// GetEntityKind retrieves the kind of the entity being processed
func GetEntityKind(ctx context.Context) migration.EntityKind {
	kind, _ := ctx.Value(entityKindKey).(migration.EntityKind)
	return kind
}

// GetTraceID extracts the trace ID from the context's span
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// ContextLogger injects run, entity and trace fields from the context into
// every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger from the given context.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

func (cl *ContextLogger) enrichedLogger() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(cl.ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if runID := GetRunID(cl.ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if kind := GetEntityKind(cl.ctx); kind != "" {
		fields = append(fields, zap.String("entity_kind", kind.String()))
	}
	if remoteID := GetRemoteID(cl.ctx); remoteID != "" {
		fields = append(fields, zap.String("remote_id", remoteID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

// Debug logs a debug level message
func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Debug(msg, fields...)
}

// Info logs an info level message
func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Info(msg, fields...)
}

// Warn logs a warning level message
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Warn(msg, fields...)
}

// Error logs an error level message
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Error(msg, fields...)
}

// Advisory logs a compatibility advisory at the level it carries
func (cl *ContextLogger) Advisory(adv migration.Advisory, fields ...zap.Field) {
	level := zapcore.InfoLevel
	switch adv.Level {
	case migration.AdvisoryWarning:
		level = zapcore.WarnLevel
	case migration.AdvisoryError:
		level = zapcore.ErrorLevel
	}
	fields = append(fields, zap.String("advisory", string(adv.Level)))
	if ce := cl.enrichedLogger().WithOptions(zap.AddCallerSkip(1)).Check(level, adv.Message); ce != nil {
		ce.Write(fields...)
	}
}

// Zap returns the underlying zap.Logger enriched with context fields
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enrichedLogger()
}
