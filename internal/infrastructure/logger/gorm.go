package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold applies when GormLoggerConfig leaves it unset
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GormLoggerConfig controls what GormLogger writes
type GormLoggerConfig struct {
	Level gormlogger.LogLevel
	// SlowQueryThreshold is the duration above which a statement is logged
	// at Warn. Negative disables slow query logging.
	SlowQueryThreshold time.Duration
	// LogNotFound also logs gorm.ErrRecordNotFound. Repositories turn it
	// into shared.ErrNotFound, so it is usually noise.
	LogNotFound bool
}

// GormLogger routes GORM statements through zap. Statements run while a
// punch is processed carry its event and employee IDs, plus the trace and
// span of the current OTel span.
type GormLogger struct {
	logger *zap.Logger
	cfg    GormLoggerConfig
}

// NewGormLogger creates a GORM logger backed by zapLogger
func NewGormLogger(zapLogger *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	return &GormLogger{logger: zapLogger.Named("gorm"), cfg: cfg}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.contextual(ctx).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.contextual(ctx).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.contextual(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface. Failed statements log at Error,
// slow ones at Warn and the rest at Debug when the level is Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		if !l.cfg.LogNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		l.contextual(ctx).Error("SQL failed", append(statementFields(fc, elapsed), zap.Error(err))...)
	case l.slow(elapsed) && l.cfg.Level >= gormlogger.Warn:
		l.contextual(ctx).Warn("Slow SQL",
			append(statementFields(fc, elapsed), zap.Duration("threshold", l.cfg.SlowQueryThreshold))...)
	case l.cfg.Level >= gormlogger.Info:
		l.contextual(ctx).Debug("SQL", statementFields(fc, elapsed)...)
	}
}

func (l *GormLogger) slow(elapsed time.Duration) bool {
	return l.cfg.SlowQueryThreshold > 0 && elapsed > l.cfg.SlowQueryThreshold
}

func (l *GormLogger) contextual(ctx context.Context) *zap.Logger {
	log := WithTraceContext(ctx, l.logger)
	if id := GetEventID(ctx); id != "" {
		log = log.With(zap.String("event_id", id))
	}
	if id := GetEmployeeID(ctx); id != "" {
		log = log.With(zap.String("employee_id", id))
	}
	return log
}

func statementFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	return []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
}

// MapGormLogLevel maps a configured log level to the GORM level. Debug and
// info show every statement; anything unknown keeps warnings and errors.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
