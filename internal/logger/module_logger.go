package logger

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"
)

type contextKey int

const (
	traceIDContextKey contextKey = iota
	jobContextKey
)

const (
	moduleKey  = "module"
	traceIDKey = "trace_id"
)

// jobRef names the job a context belongs to.
type jobRef struct {
	kind string // "file" or "session"
	id   string
}

// WithTraceID returns a context carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey, traceID)
}

// WithJob returns a context naming the job being processed. Loggers derived
// through WithContext tag every line with job_kind and job_id.
func WithJob(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, jobContextKey, jobRef{kind: kind, id: id})
}

// levelResolver looks up the configured level of a module.
type levelResolver interface {
	levelFor(module string) slog.Level
}

// moduleLogger implements Logger for one module.
type moduleLogger struct {
	module   string
	logger   *slog.Logger
	level    slog.Level
	timezone *time.Location
	fields   []Field
	levels   levelResolver // nil for standalone loggers
}

// Module returns a child logger named parent.name. Under a CentralLogger the
// child gets its own configured level.
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	child := m.clone(m.fields)
	if m.module != "" {
		child.module = m.module + "." + name
	} else {
		child.module = name
	}
	if m.levels != nil {
		child.level = m.levels.levelFor(child.module)
	}
	return child
}

func (m *moduleLogger) clone(fields []Field) *moduleLogger {
	c := *m
	c.fields = slices.Clone(fields)
	return &c
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.emit(traceLevelValue, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.emit(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.emit(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.emit(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.emit(slog.LevelError, msg, fields) }

// Log logs at an explicit level.
func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.emit(parseSlogLevel(level), msg, fields)
}

// With returns a logger that adds fields to every record.
func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return m.clone(slices.Concat(m.fields, fields))
}

// WithContext adds the trace id and job found in ctx. It returns m itself
// when ctx carries neither.
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil || ctx == nil {
		return m
	}
	var extra []Field
	if id, ok := ctx.Value(traceIDContextKey).(string); ok && id != "" {
		extra = append(extra, String(traceIDKey, id))
	}
	if job, ok := ctx.Value(jobContextKey).(jobRef); ok {
		extra = append(extra, String("job_kind", job.kind), String("job_id", job.id))
	}
	if len(extra) == 0 {
		return m
	}
	return m.With(extra...)
}

func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) emit(level slog.Level, msg string, fields []Field) {
	if m == nil || (level < m.level && level < slog.LevelError) {
		return
	}
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for _, f := range m.fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// fieldToAttr converts a Field; floats are rounded to three decimals.
func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, round3(float64(v)))
	case float64:
		return slog.Float64(f.Key, round3(v))
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
