package tracing

import (
	"context"

	"tariffsync/internal/platform/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes every ended span as one structured log line
type LogExporter struct {
	log *logger.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter returns an exporter writing to log
func NewLogExporter(log *logger.Logger) *LogExporter { return &LogExporter{log: log} }

// ExportSpans implements sdktrace.SpanExporter
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		ev := e.log.Info().
			Str("span", s.Name()).
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Dur("duration", s.EndTime().Sub(s.StartTime())).
			Str("status", s.Status().Code.String())
		if p := s.Parent(); p.IsValid() {
			ev = ev.Str("parent_id", p.SpanID().String())
		}
		if d := s.Status().Description; d != "" {
			ev = ev.Str("status_message", d)
		}
		for _, kv := range s.Attributes() {
			ev = ev.Str(string(kv.Key), kv.Value.Emit())
		}
		ev.Msg("span")
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter
func (e *LogExporter) Shutdown(context.Context) error { return nil }
