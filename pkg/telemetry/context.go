package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes the tracer and writes the metrics textfile, if one is
// configured.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Metrics.WriteTextfile(t.Config.Metrics.TextfilePath); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// runSpanKey is the context key for run spans.
type runSpanKey struct{}

// WithRunContext creates a context enriched with run-specific telemetry.
func WithRunContext(ctx context.Context, runID, server string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartRunSpan(ctx, runID, server)

	logger := tel.Logger.WithRunID(runID).WithServer(server)
	spanCtx = logger.WithContext(spanCtx)

	return context.WithValue(spanCtx, runSpanKey{}, span)
}

// EndRunContext completes the run span.
func EndRunContext(ctx context.Context, err error) {
	if span, ok := ctx.Value(runSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}
}

// documentSpanKey is the context key for document spans.
type documentSpanKey struct{}

// documentTimerKey is the context key for document timers.
type documentTimerKey struct{}

// WithDocumentContext creates a context enriched with document-specific
// telemetry.
func WithDocumentContext(ctx context.Context, kind, path string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return context.WithValue(ctx, documentTimerKey{}, NewTimer())
	}

	spanCtx, span := tel.Tracer.StartDocumentSpan(ctx, kind, path)

	logger := FromContext(ctx).WithDocument(kind, path)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, documentSpanKey{}, span)
	return context.WithValue(spanCtx, documentTimerKey{}, NewTimer())
}

// EndDocumentContext completes the document context, recording its span
// and metrics. It returns the elapsed time.
func EndDocumentContext(ctx context.Context, kind, status string, err error) time.Duration {
	if span, ok := ctx.Value(documentSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(documentTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	if tel := FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordDocument(kind, status, duration)
	}
	return duration
}

// SetDocumentPath records the output path of the current document once it
// is known.
func SetDocumentPath(ctx context.Context, path string) {
	if span, ok := ctx.Value(documentSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrDocumentPath.String(path))
	}
}
