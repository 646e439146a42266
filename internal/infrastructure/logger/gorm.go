package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger implements GORM's logger interface using zap
type GormLogger struct {
	logger                    *zap.Logger
	logLevel                  gormlogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// NewGormLogger creates a new GORM logger backed by zap.
// Record-not-found is never logged; the entity store turns it into a sentinel.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:                    zapLogger.Named("gorm"),
		logLevel:                  level,
		slowThreshold:             200 * time.Millisecond,
		ignoreRecordNotFoundError: true,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		l.forRun(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		l.forRun(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		l.forRun(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// forRun tags entries with the run and the entity being migrated, so store
// statements can be matched with the importer log lines
func (l *GormLogger) forRun(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if kind := GetEntityKind(ctx); kind != "" {
		fields = append(fields, zap.String("entity_kind", kind.String()))
	}
	if remoteID := GetRemoteID(ctx); remoteID != "" {
		fields = append(fields, zap.String("remote_id", remoteID))
	}
	if len(fields) == 0 {
		return l.logger
	}
	return l.logger.With(fields...)
}

// Trace implements gormlogger.Interface. Lookups that find nothing are
// expected during identity resolution and are not logged.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.forRun(ctx)
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		if l.ignoreRecordNotFoundError && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		log.Error("Entity store statement failed", append(fields, zap.Error(err))...)

	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		log.Warn("Slow entity store statement", append(fields, zap.Duration("threshold", l.slowThreshold))...)

	case l.logLevel >= gormlogger.Info:
		log.Debug("Entity store statement", fields...)
	}
}

// MapGormLogLevel maps the application log level to a GORM log level.
// SQL statements are only traced at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
