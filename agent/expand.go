package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Expand broadens the most refined query with synonyms and related phrasing
// and records it as ExpandedQuery. The expander sees the rewritten query
// when rewriting ran earlier. Fail-soft: on any expander failure the field
// stays empty. No-op when the context has already failed.
func (a *Agent) Expand(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)
	expander := a.resolveExpander(st)
	if expander == nil {
		a.log.Debug("expand_skipped_no_implementation")
		return c
	}

	query := c.effectiveQuery()
	a.emit(ctx, EventExpandStart, nil, map[string]any{"question": c.Question, "query": query})
	start := time.Now()

	expanded, err := expander.Expand(ctx, query)
	if err != nil {
		a.log.Warn("expansion_failed_keeping_current_query",
			slog.String("query", query),
			slog.String("error", err.Error()))
	} else {
		c.ExpandedQuery = expanded
	}

	a.emit(ctx, EventExpandStop,
		map[string]float64{"duration_ms": float64(time.Since(start).Milliseconds())},
		map[string]any{"expanded": err == nil})
	return c
}

// llmExpander is the default LLM-backed expander.
type llmExpander struct {
	llm      LLMClient
	template string
}

func (e *llmExpander) Expand(ctx context.Context, question string) (string, error) {
	resp, err := e.llm.Complete(ctx, renderPrompt(e.template, question, question), nil)
	if err != nil {
		return "", err
	}
	line := firstLine(resp)
	if line == "" {
		return "", errors.New("empty expansion response")
	}
	return line, nil
}
