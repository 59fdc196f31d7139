// Package tracing installs the process tracer provider behind the otel global API
package tracing

import (
	"context"
	"os"
	"strings"

	"tariffsync/internal/core/version"
	"tariffsync/internal/platform/config"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted in TRACING_EXPORTER
const (
	ExporterNone   = "none"
	ExporterLog    = "log"
	ExporterStdout = "stdout"
)

// Options selects the exporter and sampling
type Options struct {
	Exporter    string
	SampleRatio float64
	Service     string
}

// FromConfig reads TRACING_EXPORTER (none|log|stdout) and TRACING_SAMPLE_PERCENT (0..100)
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("TRACING_")
	ratio := 1.0
	if pct := c.MayInt("SAMPLE_PERCENT", 100); pct >= 0 && pct < 100 {
		ratio = float64(pct) / 100
	}
	return Options{
		Exporter:    strings.ToLower(c.MayString("EXPORTER", ExporterNone)),
		SampleRatio: ratio,
		Service:     version.Info().Service,
	}
}

// Shutdown flushes and stops the provider
type Shutdown func(context.Context) error

func nop(context.Context) error { return nil }

// Setup builds the exporter named in o and installs a batching provider as the otel global.
// With ExporterNone the global no-op provider stays in place
func Setup(o Options) (Shutdown, error) {
	exp, err := newExporter(o.Exporter)
	if err != nil || exp == nil {
		return nop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))),
		sdktrace.WithResource(sdkresource.NewSchemaless(attribute.String("service.name", o.Service))),
	)
	otel.SetTracerProvider(tp)
	logger.Named("tracing").Info().Str("exporter", o.Exporter).Float64("sample_ratio", o.SampleRatio).Msg("tracing enabled")
	return tp.Shutdown, nil
}

func newExporter(name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "", ExporterNone:
		return nil, nil
	case ExporterLog:
		return NewLogExporter(logger.Named("tracing")), nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	default:
		return nil, perr.WithField(perr.Configurationf("unknown trace exporter %q", name), "TRACING_EXPORTER")
	}
}
