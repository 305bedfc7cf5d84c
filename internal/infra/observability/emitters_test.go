package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/agent"
	"rag-agent/internal/infra/observability"
)

func TestSlogEmitter_Emit(t *testing.T) {
	t.Run("Writes event with fields at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		observability.NewSlogEmitter(log).Emit(context.Background(), agent.EventSearchStop,
			map[string]float64{"result_count": 3},
			map[string]any{"question": "q"})

		out := buf.String()
		assert.Contains(t, out, agent.EventSearchStop)
		assert.Contains(t, out, "result_count")
		assert.Contains(t, out, "question")
	})

	t.Run("Skips work when debug is disabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

		observability.NewSlogEmitter(log).Emit(context.Background(), agent.EventSearchStop, nil, nil)

		assert.Empty(t, buf.String())
	})
}

func TestMultiEmitter_Emit(t *testing.T) {
	var first, second []string
	m := observability.MultiEmitter{
		agent.TelemetryFunc(func(_ context.Context, name string, _ map[string]float64, _ map[string]any) {
			first = append(first, name)
		}),
		agent.TelemetryFunc(func(_ context.Context, name string, _ map[string]float64, _ map[string]any) {
			second = append(second, name)
		}),
	}

	m.Emit(context.Background(), agent.EventRewriteStart, nil, nil)
	m.Emit(context.Background(), agent.EventRewriteStop, nil, nil)

	assert.Equal(t, []string{agent.EventRewriteStart, agent.EventRewriteStop}, first)
	assert.Equal(t, []string{agent.EventRewriteStart, agent.EventRewriteStop}, second)
}

func TestPromEmitter_Emit(t *testing.T) {
	ctx := context.Background()
	m := observability.NewPromEmitter()

	m.Emit(ctx, agent.EventRewriteStop, map[string]float64{"duration_ms": 120}, nil)
	m.Emit(ctx, agent.EventSearchStop,
		map[string]float64{"duration_ms": 250, "total_iterations": 2, "result_count": 5}, nil)
	m.Emit(ctx, agent.EventAnswerSelfCorrectStart, map[string]float64{"attempt": 1}, nil)
	m.Emit(ctx, agent.EventAnswerSelfCorrectStart, map[string]float64{"attempt": 2}, nil)
	m.Emit(ctx, agent.EventAnswerStop, map[string]float64{"duration_ms": 900}, nil)
	m.Emit(ctx, agent.EventAnswerStop, map[string]float64{"duration_ms": 30}, map[string]any{"failed": true})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `rag_answers_total{result="ok"} 1`)
	assert.Contains(t, body, `rag_answers_total{result="failed"} 1`)
	assert.Contains(t, body, "rag_search_iterations_total 2")
	assert.Contains(t, body, "rag_answer_corrections_total 1")
	assert.Contains(t, body, `rag_stage_duration_seconds_count{stage="rewrite"} 1`)
	assert.Contains(t, body, `rag_stage_duration_seconds_count{stage="search"} 1`)
	assert.Contains(t, body, `rag_stage_duration_seconds_count{stage="answer"} 2`)
}

func TestOTelEmitter_NoActiveSpan(t *testing.T) {
	e := observability.NewOTelEmitter()
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), agent.EventAnswerStop,
			map[string]float64{"duration_ms": 1}, map[string]any{"failed": false})
	})
}

var (
	_ agent.Telemetry = (*observability.SlogEmitter)(nil)
	_ agent.Telemetry = (*observability.PromEmitter)(nil)
	_ agent.Telemetry = (*observability.OTelEmitter)(nil)
	_ agent.Telemetry = (observability.MultiEmitter)(nil)
)
