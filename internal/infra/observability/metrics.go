package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rag-agent/agent"
)

// PromEmitter turns pipeline events into Prometheus metrics on its own
// registry. Mount Handler on the metrics route to expose them.
type PromEmitter struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	searchIterations  prometheus.Counter
	answerCorrections prometheus.Counter
	answersTotal      *prometheus.CounterVec
}

func NewPromEmitter() *PromEmitter {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	searchIterations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "search_iterations_total",
			Help:      "Total search iterations across all requests.",
		},
	)
	answerCorrections := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "answer_corrections_total",
			Help:      "Total answer regenerations triggered by the groundedness judge.",
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "answers_total",
			Help:      "Total answer stage completions by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		stageDuration,
		searchIterations,
		answerCorrections,
		answersTotal,
	)

	return &PromEmitter{
		registry:          registry,
		stageDuration:     stageDuration,
		searchIterations:  searchIterations,
		answerCorrections: answerCorrections,
		answersTotal:      answersTotal,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *PromEmitter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Emit implements agent.Telemetry.
func (m *PromEmitter) Emit(_ context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	if d, ok := measurements["duration_ms"]; ok && strings.HasSuffix(name, ".stop") {
		m.stageDuration.WithLabelValues(stageOf(name)).Observe(d / 1000)
	}

	switch name {
	case agent.EventSearchStop:
		if n, ok := measurements["total_iterations"]; ok && n > 0 {
			m.searchIterations.Add(n)
		}
	case agent.EventAnswerSelfCorrectStart:
		// Attempt 1 is the initial answer; each later attempt means one
		// correction was performed.
		if a, ok := measurements["attempt"]; ok && a >= 2 {
			m.answerCorrections.Inc()
		}
	case agent.EventAnswerStop:
		result := "ok"
		if failed, _ := metadata["failed"].(bool); failed {
			result = "failed"
		}
		m.answersTotal.WithLabelValues(result).Inc()
	}
}

func stageOf(name string) string {
	name = strings.TrimPrefix(name, "agent.")
	return strings.TrimSuffix(name, ".stop")
}
