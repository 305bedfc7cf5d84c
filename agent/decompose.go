package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Decompose splits the most refined query into independently searchable
// sub-questions. The decomposer sees the expanded query when expansion ran
// earlier. Fail-soft: on decomposer failure or an unusable response the
// sub-questions fall back to the single current query, so search always has
// a query set to work with. No-op when the context has already failed.
func (a *Agent) Decompose(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)
	decomposer := a.resolveDecomposer(st)
	if decomposer == nil {
		a.log.Debug("decompose_skipped_no_implementation")
		return c
	}

	query := c.effectiveQuery()
	a.emit(ctx, EventDecomposeStart, nil, map[string]any{"question": c.Question, "query": query})
	start := time.Now()

	subs, err := decomposer.Decompose(ctx, query)
	subs = cleanSubQuestions(subs)
	if err != nil || len(subs) == 0 {
		if err != nil {
			a.log.Warn("decomposition_failed_using_single_query",
				slog.String("query", query),
				slog.String("error", err.Error()))
		}
		subs = []string{query}
	}
	c.SubQuestions = subs

	a.emit(ctx, EventDecomposeStop,
		map[string]float64{
			"duration_ms":        float64(time.Since(start).Milliseconds()),
			"sub_question_count": float64(len(subs)),
		},
		nil)
	return c
}

// cleanSubQuestions trims whitespace and drops empty entries.
func cleanSubQuestions(subs []string) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// llmDecomposer is the default LLM-backed decomposer.
type llmDecomposer struct {
	llm      LLMClient
	template string
}

func (d *llmDecomposer) Decompose(ctx context.Context, question string) ([]string, error) {
	resp, err := d.llm.Complete(ctx, renderPrompt(d.template, question, question), nil)
	if err != nil {
		return nil, err
	}
	var subs []string
	if err := unmarshalLenient(resp, &subs); err != nil {
		return nil, errors.New("decomposition response is not a json array of strings")
	}
	return subs, nil
}
