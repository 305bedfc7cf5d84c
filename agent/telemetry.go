package agent

import (
	"context"
	"log/slog"
)

// Telemetry receives pipeline instrumentation events. Names are
// hierarchical (agent.<stage>.<start|stop>), measurements carry numeric
// values such as durations and counts, and metadata carries domain fields.
// Implementations must be cheap and must never block: the pipeline isolates
// sink panics but does not run emitters asynchronously.
type Telemetry interface {
	Emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any)
}

// TelemetryFunc adapts a plain function to Telemetry.
type TelemetryFunc func(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any)

// Emit implements Telemetry.
func (f TelemetryFunc) Emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	f(ctx, name, measurements, metadata)
}

// NopTelemetry drops every event.
type NopTelemetry struct{}

// Emit implements Telemetry.
func (NopTelemetry) Emit(context.Context, string, map[string]float64, map[string]any) {}

// Event names emitted by the pipeline stages.
const (
	EventRewriteStart = "agent.rewrite.start"
	EventRewriteStop  = "agent.rewrite.stop"

	EventExpandStart = "agent.expand.start"
	EventExpandStop  = "agent.expand.stop"

	EventDecomposeStart = "agent.decompose.start"
	EventDecomposeStop  = "agent.decompose.stop"

	EventSelectStart = "agent.select.start"
	EventSelectStop  = "agent.select.stop"

	EventSearchStart = "agent.search.start"
	EventSearchStop  = "agent.search.stop"

	EventSearchSelfCorrectStart = "agent.search.self_correct.start"
	EventSearchSelfCorrectStop  = "agent.search.self_correct.stop"

	EventRerankStart = "agent.rerank.start"
	EventRerankStop  = "agent.rerank.stop"

	EventAnswerStart = "agent.answer.start"
	EventAnswerStop  = "agent.answer.stop"

	EventAnswerSelfCorrectStart = "agent.answer.self_correct.start"
	EventAnswerSelfCorrectStop  = "agent.answer.self_correct.stop"
)

// Self-correction outcomes reported in the "result" metadata field of the
// answer loop's stop event.
const (
	SelfCorrectAccepted  = "accepted"
	SelfCorrectCorrected = "corrected"
	SelfCorrectExhausted = "exhausted"
)

// emit forwards an event to the configured sink, isolating the pipeline
// from sink panics. Emission never fails a stage.
func (a *Agent) emit(ctx context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	if a.telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("telemetry_emit_panicked",
				slog.String("event", name),
				slog.Any("panic", r))
		}
	}()
	a.telemetry.Emit(ctx, name, measurements, metadata)
}
