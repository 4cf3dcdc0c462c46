package core

import (
	"context"
	"time"
)

// Logger receives diagnostic events from the editor. Implementations must be
// safe for concurrent use. Arguments follow the key/value convention of
// structured loggers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes editor operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan terminates a trace started via Tracer.Start.
type TraceSpan interface {
	End(err error)
}

// Tracer creates spans around editor operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus classifies an audited operation outcome.
type AuditStatus string

// Audit outcome values.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records one applied (or refused) edit batch.
type AuditEntry struct {
	Operation string
	Status    AuditStatus
	EditCount int
	Details   string
	At        time.Time
}

// AuditRecorder receives audit entries for applied edit batches.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}
