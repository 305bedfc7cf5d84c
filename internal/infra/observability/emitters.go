package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-agent/agent"
)

// SlogEmitter writes pipeline events to the structured log at debug level.
type SlogEmitter struct {
	log *slog.Logger
}

func NewSlogEmitter(log *slog.Logger) *SlogEmitter {
	return &SlogEmitter{log: log}
}

// Emit implements agent.Telemetry.
func (e *SlogEmitter) Emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	if !e.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := make([]any, 0, len(measurements)+len(metadata))
	for k, v := range measurements {
		attrs = append(attrs, slog.Float64(k, v))
	}
	for k, v := range metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	e.log.DebugContext(ctx, name, attrs...)
}

// OTelEmitter records pipeline events as span events on the active span, so
// stage timings line up with the request trace.
type OTelEmitter struct{}

func NewOTelEmitter() *OTelEmitter {
	return &OTelEmitter{}
}

// Emit implements agent.Telemetry.
func (e *OTelEmitter) Emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(measurements)+len(metadata))
	for k, v := range measurements {
		attrs = append(attrs, attribute.Float64(k, v))
	}
	for k, v := range metadata {
		attrs = append(attrs, metadataAttr(k, v))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func metadataAttr(k string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case bool:
		return attribute.Bool(k, val)
	case int:
		return attribute.Int(k, val)
	case float64:
		return attribute.Float64(k, val)
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}

// MultiEmitter fans one event out to several sinks in order.
type MultiEmitter []agent.Telemetry

// Emit implements agent.Telemetry.
func (m MultiEmitter) Emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	for _, t := range m {
		t.Emit(ctx, name, measurements, metadata)
	}
}
