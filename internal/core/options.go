package core

// Option customizes an Editor at construction time.
type Option func(*Editor)

// WithLogger installs a structured logger. A nil logger restores the default
// no-op logger.
func WithLogger(logger Logger) Option {
	return func(e *Editor) {
		if logger == nil {
			logger = noopLogger{}
		}
		e.logger = logger
	}
}

// WithClock installs an alternative time source.
func WithClock(clock Clock) Option {
	return func(e *Editor) {
		if clock == nil {
			clock = systemClock{}
		}
		e.clock = clock
	}
}

// WithMetricsRecorder installs a metrics sink for editor operations.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(e *Editor) {
		e.metrics = recorder
	}
}

// WithTracer installs a tracer wrapping edit batch application.
func WithTracer(tracer Tracer) Option {
	return func(e *Editor) {
		if tracer == nil {
			tracer = noopTracer{}
		}
		e.tracer = tracer
	}
}

// WithAuditRecorder installs an audit sink receiving one entry per applied
// batch.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(e *Editor) {
		e.audit = recorder
	}
}

// WithQueueDepth sets the publish queue capacity. Publish blocks once the
// queue is full.
func WithQueueDepth(depth int) Option {
	return func(e *Editor) {
		if depth > 0 {
			e.queueDepth = depth
		}
	}
}
