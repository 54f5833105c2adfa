package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends gorm's SQL tracing to slog.
type GormLogger struct {
	log           *slog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger builds a gorm logger at the given textual level
// ("silent", "error", "warn", "info").
func NewGormLogger(l *slog.Logger, level string) *GormLogger {
	return &GormLogger{
		log:           l.With("subsystem", "sql"),
		level:         parseGormLevel(level),
		slowThreshold: 200 * time.Millisecond,
	}
}

func parseGormLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.ErrorContext(ctx, "query failed", "err", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.WarnContext(ctx, "slow query", "elapsed", elapsed, "rows", rows, "sql", sql)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.log.DebugContext(ctx, "query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
